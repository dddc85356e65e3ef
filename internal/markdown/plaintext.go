// Package markdown turns note bodies written in markdown into the plain text
// that is sent to the embedding model.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Extractor renders markdown to plain text. It is safe for concurrent use.
type Extractor struct {
	parser goldmark.Markdown
}

// NewExtractor creates an Extractor with GFM tables and strikethrough enabled.
func NewExtractor() *Extractor {
	return &Extractor{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
		),
	}
}

// PlainText drops markup, link targets and raw HTML, and keeps the readable
// text of every block on its own line. Code blocks are kept verbatim.
func (e *Extractor) PlainText(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	content := []byte(src)
	doc := e.parser.Parser().Parse(text.NewReader(content))

	var b strings.Builder
	cells := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch v := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(v.Segment.Value(content))
				if v.SoftLineBreak() || v.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(v.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(v.Label(content))
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(content))
				}
				newline(&b)
			}
			return ast.WalkSkipChildren, nil
		case *extast.TableRow, *extast.TableHeader:
			if entering {
				cells = 0
			} else {
				newline(&b)
			}
		case *extast.TableCell:
			if entering && cells > 0 {
				b.WriteString(" | ")
			}
			if entering {
				cells++
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				newline(&b)
			}
		}
		return ast.WalkContinue, nil
	})

	return collapseBlankLines(b.String())
}

func newline(b *strings.Builder) {
	s := b.String()
	if len(s) > 0 && !strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
