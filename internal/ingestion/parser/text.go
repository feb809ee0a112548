package parser

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// Dotted numeric prefix: "3.2 Title" or "3.2.1 body...".
	numberedLine = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(.+)$`)
	mdHeading    = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
)

// ParseText runs heading/clause detection over plain text. Construction
// specs and contracts are dominated by dotted clause numbering; a single
// number ("3") or two-part number ("3.2") over a short line reads as a
// heading, deeper numbering reads as a clause.
func ParseText(filename, text string) *Parsed {
	out := &Parsed{
		Filename: filename,
		Title:    titleFromFilename(filename),
	}

	var para []string
	flush := func() {
		if len(para) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(para, " "))
		para = para[:0]
		if joined == "" {
			return
		}
		out.Blocks = append(out.Blocks, Block{Kind: BlockParagraph, Text: joined})
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			continue
		}

		if m := mdHeading.FindStringSubmatch(line); m != nil {
			flush()
			level := len(m[1])
			if level > 2 {
				level = 2
			}
			out.Blocks = append(out.Blocks, Block{
				Kind:  BlockHeading,
				Level: level,
				Title: strings.TrimSpace(m[2]),
			})
			continue
		}

		if m := numberedLine.FindStringSubmatch(line); m != nil {
			number := m[1]
			rest := strings.TrimSpace(m[2])
			depth := strings.Count(number, ".") + 1
			if depth <= 2 && looksLikeHeading(rest) {
				flush()
				out.Blocks = append(out.Blocks, Block{
					Kind:   BlockHeading,
					Level:  depth,
					Number: number,
					Title:  rest,
				})
				continue
			}
			if depth >= 3 {
				flush()
				out.Blocks = append(out.Blocks, Block{
					Kind:   BlockClause,
					Number: number,
					Text:   rest,
				})
				continue
			}
		}

		para = append(para, line)
	}
	flush()

	if out.Title == "" && len(out.Blocks) > 0 && out.Blocks[0].Kind == BlockHeading {
		out.Title = out.Blocks[0].Title
	}
	return out
}

// looksLikeHeading: short, no terminal punctuation, not a running sentence.
func looksLikeHeading(s string) bool {
	if len(s) > 120 {
		return false
	}
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, ";") || strings.HasSuffix(s, ",") {
		return false
	}
	words := strings.Fields(s)
	return len(words) > 0 && len(words) <= 12
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.TrimSpace(base)
}
