package vector

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dim is the embedding dimension used across the chunk store. The column
// type, the embeddings request, and the wire codec all share this constant.
const Dim = 1024

// Vector is a fixed-dimension embedding stored in a pgvector column.
//
// The column wire format is the pgvector text form: "[f1,f2,...,fN]",
// comma-separated with no whitespace. The codec is part of the storage
// contract, so it lives here and nowhere else.
type Vector []float32

// ErrDimension is returned, wrapped with the offending length, when a
// vector does not match Dim. Dimension mismatches are hard validation
// errors, never silent truncation or padding.
var ErrDimension = errors.New("vector: dimension mismatch")

// Marshal serializes v to the bracketed comma-separated text form.
func Marshal(v Vector) (string, error) {
	if len(v) != Dim {
		return "", fmt.Errorf("%w: got %d, want %d", ErrDimension, len(v), Dim)
	}
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String(), nil
}

// Parse decodes the bracketed text form back into a Vector.
func Parse(s string) (Vector, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("vector: malformed text %q", truncateForErr(s))
	}
	body := s[1 : len(s)-1]
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: got 0, want %d", ErrDimension, Dim)
	}
	parts := strings.Split(body, ",")
	if len(parts) != Dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(parts), Dim)
	}
	out := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("vector: element %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// Value implements driver.Valuer so GORM writes the text form.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	s, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Scan implements sql.Scanner for reads from the vector column.
func (v *Vector) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}
	var raw string
	switch t := src.(type) {
	case string:
		raw = t
	case []byte:
		raw = string(t)
	default:
		return fmt.Errorf("vector: cannot scan %T", src)
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// GormDataType pins the column type for AutoMigrate.
func (Vector) GormDataType() string {
	return fmt.Sprintf("vector(%d)", Dim)
}

// Cosine returns the cosine similarity of a and b, 0 when either is
// degenerate. Both sides must already be Dim long.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func truncateForErr(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
