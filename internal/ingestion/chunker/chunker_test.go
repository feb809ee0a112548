package chunker

import (
	"fmt"
	"sort"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/ingestion/parser"
)

const contractText = `1 GENERAL

This agreement covers the fitout works.

1.1 Definitions

1.1.1 "Works" means everything described in the scope.
1.1.2 "Practical Completion" has the meaning in clause 9.

2 FIRE SAFETY

2.1 Ratings

2.1.1 All walls must achieve a 60-minute fire rating.
`

func parse(t *testing.T) *parser.Parsed {
	t.Helper()
	return parser.ParseText("contract.txt", contractText)
}

func TestChunkTreeInvariants(t *testing.T) {
	docID := uuid.New()
	chunks, err := Chunk(parse(t), docID, Config{})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Root first, level 0, no parent.
	assert.Equal(t, types.LevelDocument, chunks[0].HierarchyLevel)
	assert.Nil(t, chunks[0].ParentChunkID)

	byID := map[uuid.UUID]*types.DocumentChunk{}
	for i, ch := range chunks {
		assert.Equal(t, docID, ch.DocumentID)

		if ch.ParentChunkID != nil {
			parent, ok := byID[*ch.ParentChunkID]
			require.True(t, ok, "chunk %d parent emitted earlier", i)
			assert.Equal(t, ch.HierarchyLevel-1, parent.HierarchyLevel)
		}
		byID[ch.ID] = ch
	}
}

func TestChunkPathsSortInReadingOrder(t *testing.T) {
	chunks, err := Chunk(parse(t), uuid.New(), Config{})
	require.NoError(t, err)

	emitted := make([]string, len(chunks))
	for i, ch := range chunks {
		emitted[i] = ch.HierarchyPath
	}
	sorted := append([]string(nil), emitted...)
	sort.Strings(sorted)
	assert.Equal(t, emitted, sorted, "pure string sort reconstructs reading order")

	// Unique paths.
	seen := map[string]bool{}
	for _, p := range emitted {
		assert.False(t, seen[p], "path %q duplicated", p)
		seen[p] = true
	}
}

func TestChunkLevelsAndClauses(t *testing.T) {
	chunks, err := Chunk(parse(t), uuid.New(), Config{})
	require.NoError(t, err)

	var clauseChunks []*types.DocumentChunk
	var sections, subsections int
	for _, ch := range chunks {
		switch ch.HierarchyLevel {
		case types.LevelSection:
			sections++
		case types.LevelSubsection:
			subsections++
		case types.LevelClause:
			clauseChunks = append(clauseChunks, ch)
		}
	}
	assert.Equal(t, 2, sections, "GENERAL, FIRE SAFETY")
	assert.Equal(t, 2, subsections, "Definitions, Ratings")
	require.Len(t, clauseChunks, 3)
	assert.Equal(t, "2.1.1", clauseChunks[2].ClauseNumber)
	assert.Contains(t, clauseChunks[2].Content, "60-minute fire rating")
	assert.NotZero(t, clauseChunks[2].TokenCount)
}

func TestChunkParagraphAttachesToSection(t *testing.T) {
	chunks, err := Chunk(parse(t), uuid.New(), Config{})
	require.NoError(t, err)

	var general *types.DocumentChunk
	for _, ch := range chunks {
		if ch.SectionTitle == "GENERAL" {
			general = ch
		}
	}
	require.NotNil(t, general)
	assert.Contains(t, general.Content, "covers the fitout works")
}

func TestChunkEmptyDocument(t *testing.T) {
	chunks, err := Chunk(&parser.Parsed{Filename: "empty.txt"}, uuid.New(), Config{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkRootSummaryCapped(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	p := parser.ParseText("big.txt", long)
	chunks, err := Chunk(p, uuid.New(), Config{RootSummaryChars: 100})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.LessOrEqual(t, len(chunks[0].Content), 110)
}

func TestChunkRootSummaryKeepsRunesIntact(t *testing.T) {
	// Two-byte runes guarantee the byte cap lands mid-rune for odd caps.
	long := strings.Repeat("§", 400)
	p := parser.ParseText("brandschutz.txt", long)
	chunks, err := Chunk(p, uuid.New(), Config{RootSummaryChars: 101})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.True(t, utf8.ValidString(chunks[0].Content), "truncation must not split a rune")
}

func TestChunkLargeClauseCount(t *testing.T) {
	var b strings.Builder
	b.WriteString("1 SPECIFICATION\n\n")
	for i := 1; i <= 120; i++ {
		fmt.Fprintf(&b, "1.1.%d Clause body number %d with enough words to matter.\n", i, i)
	}
	p := parser.ParseText("spec.txt", b.String())

	chunks, err := Chunk(p, uuid.New(), Config{})
	require.NoError(t, err)

	var clauses int
	for _, ch := range chunks {
		if ch.ClauseNumber != "" {
			clauses++
		}
	}
	assert.Equal(t, 120, clauses)
	require.NoError(t, Validate(chunks))
}

func TestValidateCatchesBrokenTrees(t *testing.T) {
	docID := uuid.New()
	root := &types.DocumentChunk{ID: uuid.New(), DocumentID: docID, HierarchyLevel: 0, HierarchyPath: "0000"}

	orphanParent := uuid.New()
	orphan := &types.DocumentChunk{
		ID: uuid.New(), DocumentID: docID,
		ParentChunkID: &orphanParent, HierarchyLevel: 1, HierarchyPath: "0001",
	}
	assert.Error(t, Validate([]*types.DocumentChunk{root, orphan}))

	// Level skip: child at level 2 directly under the root.
	rootID := root.ID
	skip := &types.DocumentChunk{
		ID: uuid.New(), DocumentID: docID,
		ParentChunkID: &rootID, HierarchyLevel: 2, HierarchyPath: "0002",
	}
	assert.Error(t, Validate([]*types.DocumentChunk{root, skip}))

	// Duplicate path.
	dup := &types.DocumentChunk{
		ID: uuid.New(), DocumentID: docID,
		ParentChunkID: &rootID, HierarchyLevel: 1, HierarchyPath: "0000",
	}
	assert.Error(t, Validate([]*types.DocumentChunk{root, dup}))
}
