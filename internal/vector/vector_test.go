package vector

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalParseRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	v := make(Vector, Dim)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}

	s, err := Marshal(v)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(s, "["))
	require.True(t, strings.HasSuffix(s, "]"))
	assert.NotContains(t, s, " ", "wire format carries no whitespace")

	got, err := Parse(s)
	require.NoError(t, err)
	require.Len(t, got, Dim)
	for i := range v {
		if math.Abs(float64(got[i])-float64(v[i])) > 1e-6 {
			t.Fatalf("element %d: got %v want %v", i, got[i], v[i])
		}
	}
}

func TestMarshalRejectsWrongDimension(t *testing.T) {
	_, err := Marshal(make(Vector, Dim-1))
	require.ErrorIs(t, err, ErrDimension)
	assert.Contains(t, err.Error(), fmt.Sprintf("got %d", Dim-1))

	_, err = Marshal(make(Vector, Dim+1))
	require.ErrorIs(t, err, ErrDimension)
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"1,2,3",
		"[",
		"[]",
		"[1,2,3]", // wrong dimension
	}
	for _, c := range cases {
		_, err := Parse(c)
		assert.Error(t, err, "input %q", c)
	}

	bad := "[" + strings.Repeat("x,", Dim-1) + "x]"
	_, err := Parse(bad)
	assert.Error(t, err)
}

func TestParseExactValues(t *testing.T) {
	v := make(Vector, Dim)
	v[0] = 0.5
	v[1] = -1.25
	v[Dim-1] = 3

	s, err := Marshal(v)
	require.NoError(t, err)
	got, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), got[0])
	assert.Equal(t, float32(-1.25), got[1])
	assert.Equal(t, float32(3), got[Dim-1])
}

func TestCosine(t *testing.T) {
	a := make(Vector, Dim)
	b := make(Vector, Dim)
	a[0], b[0] = 1, 1
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-9)

	b[0] = -1
	assert.InDelta(t, -1.0, Cosine(a, b), 1e-9)

	assert.Equal(t, 0.0, Cosine(a, make(Vector, Dim)))
	assert.Equal(t, 0.0, Cosine(a, make(Vector, 3)))
}

func TestScanValue(t *testing.T) {
	v := make(Vector, Dim)
	v[7] = 0.125

	val, err := v.Value()
	require.NoError(t, err)

	var back Vector
	require.NoError(t, back.Scan(val))
	assert.Equal(t, v, back)

	require.NoError(t, back.Scan(nil))
	assert.Nil(t, back)

	assert.Error(t, back.Scan(17))
}
