package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/ingestion/parser"
)

// Config controls chunk sizing. Zero values take the defaults.
type Config struct {
	// RootSummaryChars caps the document-level chunk body.
	RootSummaryChars int
}

const defaultRootSummaryChars = 2000

// Chunk turns a parsed document into an ordered chunk sequence forming a
// tree. Guarantees, checked before returning:
//   - every non-root chunk's parent appears earlier in the sequence
//   - a parent's hierarchy level is exactly one less than its child's
//   - hierarchy paths are unique and lexically sortable in reading order
func Chunk(doc *parser.Parsed, documentID uuid.UUID, cfg Config) ([]*types.DocumentChunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("chunker: nil document")
	}
	if documentID == uuid.Nil {
		return nil, fmt.Errorf("chunker: missing document id")
	}
	if cfg.RootSummaryChars <= 0 {
		cfg.RootSummaryChars = defaultRootSummaryChars
	}

	full := doc.PlainText()
	if strings.TrimSpace(full) == "" && strings.TrimSpace(doc.Title) == "" {
		return []*types.DocumentChunk{}, nil
	}

	b := &builder{documentID: documentID}

	rootContent := doc.Title
	if full != "" {
		summary := truncateAtRune(full, cfg.RootSummaryChars)
		if rootContent != "" {
			rootContent += "\n\n"
		}
		rootContent += summary
	}
	root := b.emit(nil, "", "", rootContent)
	root.SectionTitle = doc.Title

	// current[i] is the open chunk at hierarchy level i.
	current := [4]*types.DocumentChunk{root, nil, nil, nil}

	for _, blk := range doc.Blocks {
		switch blk.Kind {
		case parser.BlockHeading:
			parentLevel := 0
			if blk.Level >= 2 && current[1] != nil {
				parentLevel = 1
			}
			ch := b.emit(current[parentLevel], blk.Title, "", headingContent(blk))
			current[ch.HierarchyLevel] = ch
			for i := ch.HierarchyLevel + 1; i < len(current); i++ {
				current[i] = nil
			}
		case parser.BlockClause:
			// Clauses are siblings under the deepest open heading; they
			// never nest under each other.
			b.emit(deepest(current), "", blk.Number, blk.Text)
		case parser.BlockParagraph:
			target := deepest(current)
			if target == root {
				// Body text before any heading stands alone as a section
				// chunk; the root stays a capped summary.
				b.emit(root, "", "", blk.Text)
				continue
			}
			if target.Content != "" {
				target.Content += "\n\n"
			}
			target.Content += blk.Text
			target.TokenCount = estimateTokens(target.Content)
		}
	}

	if err := Validate(b.chunks); err != nil {
		return nil, err
	}
	return b.chunks, nil
}

type builder struct {
	documentID uuid.UUID
	chunks     []*types.DocumentChunk
	// childCount tracks sibling numbering per parent for path assignment.
	childCount map[uuid.UUID]int
}

// emit appends a chunk under parent (nil for the root) and assigns its
// hierarchy path. Child level is always parent level + 1, capped at the
// clause level; the source's own numbering depth is a hint, not a position.
func (b *builder) emit(parent *types.DocumentChunk, title, clauseNumber, content string) *types.DocumentChunk {
	if b.childCount == nil {
		b.childCount = make(map[uuid.UUID]int)
	}

	ch := &types.DocumentChunk{
		ID:           uuid.New(),
		DocumentID:   b.documentID,
		SectionTitle: title,
		ClauseNumber: clauseNumber,
		Content:      content,
	}
	if parent == nil {
		ch.HierarchyLevel = types.LevelDocument
		ch.HierarchyPath = "0000"
	} else {
		level := parent.HierarchyLevel + 1
		if level > types.LevelClause {
			level = types.LevelClause
		}
		ch.HierarchyLevel = level
		pid := parent.ID
		ch.ParentChunkID = &pid
		b.childCount[pid]++
		ch.HierarchyPath = fmt.Sprintf("%s.%04d", parent.HierarchyPath, b.childCount[pid])
	}
	ch.TokenCount = estimateTokens(content)
	b.chunks = append(b.chunks, ch)
	return ch
}

func deepest(current [4]*types.DocumentChunk) *types.DocumentChunk {
	for i := len(current) - 1; i >= 0; i-- {
		if current[i] != nil {
			return current[i]
		}
	}
	return current[0]
}

func headingContent(blk parser.Block) string {
	if blk.Number != "" {
		return blk.Number + " " + blk.Title
	}
	return blk.Title
}

// Validate checks the structural invariants of a chunk sequence: forward
// parent references, strict level increments, and unique paths. The worker
// runs it again before persisting so a chunker bug can never reach the
// store.
func Validate(chunks []*types.DocumentChunk) error {
	seen := make(map[uuid.UUID]int, len(chunks))
	paths := make(map[string]struct{}, len(chunks))

	for i, ch := range chunks {
		if ch == nil {
			return fmt.Errorf("chunker: nil chunk at %d", i)
		}
		if _, dup := paths[ch.HierarchyPath]; dup {
			return fmt.Errorf("chunker: duplicate hierarchy path %q", ch.HierarchyPath)
		}
		paths[ch.HierarchyPath] = struct{}{}

		if ch.ParentChunkID == nil {
			if ch.HierarchyLevel != types.LevelDocument {
				return fmt.Errorf("chunker: chunk %s has level %d without a parent", ch.ID, ch.HierarchyLevel)
			}
		} else {
			parentLevel, ok := seen[*ch.ParentChunkID]
			if !ok {
				return fmt.Errorf("chunker: chunk %s references parent %s not emitted earlier", ch.ID, *ch.ParentChunkID)
			}
			if parentLevel != ch.HierarchyLevel-1 {
				return fmt.Errorf("chunker: chunk %s at level %d has parent at level %d", ch.ID, ch.HierarchyLevel, parentLevel)
			}
		}
		seen[ch.ID] = ch.HierarchyLevel
	}
	return nil
}

// estimateTokens approximates the tokenizer at ~4 characters per token,
// which is close enough for cost and size accounting.
func estimateTokens(content string) int {
	n := len(strings.TrimSpace(content))
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// truncateAtRune caps s at max bytes without splitting a multi-byte rune.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
