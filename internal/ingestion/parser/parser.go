package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat marks files no configured parser can handle. This is
// a terminal condition: retrying the job cannot succeed.
var ErrUnsupportedFormat = errors.New("unsupported document format")

type BlockKind int

const (
	BlockHeading BlockKind = iota
	BlockClause
	BlockParagraph
)

// Block is one structural element of a parsed document, in reading order.
type Block struct {
	Kind   BlockKind
	Level  int    // heading depth, 1 or 2
	Number string // dotted numbering when the source carries it, e.g. "3.2" or "3.2.1"
	Title  string
	Text   string
}

// Parsed is the structured text a document resolves to: a flat, ordered
// block sequence with heading/clause hints. The chunker builds the tree.
type Parsed struct {
	Filename string
	Title    string
	Blocks   []Block
}

// PlainText reassembles the full body, used for the document-level chunk.
func (p *Parsed) PlainText() string {
	var b strings.Builder
	for _, blk := range p.Blocks {
		switch blk.Kind {
		case BlockHeading:
			b.WriteString(blk.Title)
		default:
			b.WriteString(blk.Text)
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// Parser converts raw uploaded bytes plus the original filename into
// structured text. Extraction internals for binary formats live behind
// this interface.
type Parser interface {
	Parse(ctx context.Context, filename string, data []byte) (*Parsed, error)
}

// TextExtractor pulls plain text out of a binary format (PDF, DOCX). The
// Document AI client satisfies this; structure detection stays local.
type TextExtractor interface {
	ExtractText(ctx context.Context, filename, mimeType string, data []byte) (string, error)
}

type parser struct {
	extractor TextExtractor
}

// New builds the default parser. extractor may be nil, in which case only
// plain-text formats are supported.
func New(extractor TextExtractor) Parser {
	return &parser{extractor: extractor}
}

func (p *parser) Parse(ctx context.Context, filename string, data []byte) (*Parsed, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".md", ".markdown":
		return ParseText(filename, string(data)), nil
	case ".pdf", ".docx", ".doc":
		if p.extractor == nil {
			return nil, fmt.Errorf("%w: %s (no text extractor configured)", ErrUnsupportedFormat, ext)
		}
		text, err := p.extractor.ExtractText(ctx, filename, mimeTypeFor(ext), data)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", ext, err)
		}
		return ParseText(filename, text), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func mimeTypeFor(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	default:
		return "application/octet-stream"
	}
}
