package markup

import (
	"bytes"
	"path"
	"strings"

	"github.com/dgallion1/docgallery/internal/doctree"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type proseFormat int

const (
	formatMarkdown proseFormat = iota
	formatText
)

// SupportedExtensions lists source extensions the parser can build.
var SupportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// IsSupported reports whether a document path has a buildable extension.
func IsSupported(name string) bool {
	return SupportedExtensions[strings.ToLower(path.Ext(name))]
}

func formatFor(docPath string) proseFormat {
	if strings.ToLower(path.Ext(docPath)) == ".txt" {
		return formatText
	}
	return formatMarkdown
}

func (st *State) parseProse(lines []string, offset int, s *sink) {
	if strings.TrimSpace(strings.Join(lines, "")) == "" {
		return
	}
	switch st.format {
	case formatText:
		parseTextProse(lines, offset, s)
	default:
		st.parseMarkdown(lines, offset, s)
	}
}

// parseMarkdown walks the goldmark AST of a prose run. Headings open
// sections, code blocks become literal blocks and every other block keeps
// both its plain text and rendered HTML.
func (st *State) parseMarkdown(lines []string, offset int, s *sink) {
	src := []byte(rewriteRoles(strings.Join(lines, "\n"), st.env.Label))
	doc := st.parser.md.Parser().Parse(text.NewReader(src))

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		line := offset + lineOf(n, src) + 1
		switch node := n.(type) {
		case *ast.Heading:
			s.openSection(node.Level, string(node.Text(src)), line)

		case *ast.FencedCodeBlock:
			lit := doctree.NewLiteralBlock(codeText(node, src))
			lit.Line = line
			if lang := node.Language(src); lang != nil {
				lit.SetAttr("language", string(lang))
			}
			s.add(lit)

		case *ast.CodeBlock:
			lit := doctree.NewLiteralBlock(codeText(node, src))
			lit.Line = line
			s.add(lit)

		default:
			para := &doctree.DocNode{
				Kind: doctree.KindParagraph,
				Text: extractText(n, src),
				Line: line,
			}
			var buf bytes.Buffer
			if err := st.parser.md.Renderer().Render(&buf, src, n); err == nil {
				para.SetAttr("html", strings.TrimSpace(buf.String()))
			}
			s.add(para)
		}
	}
}

// parseTextProse splits plain text into paragraphs on blank lines.
func parseTextProse(lines []string, offset int, s *sink) {
	var current strings.Builder
	start := 0

	flush := func() {
		if current.Len() > 0 {
			s.add(&doctree.DocNode{
				Kind: doctree.KindParagraph,
				Text: current.String(),
				Line: offset + start + 1,
			})
			current.Reset()
		}
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		} else {
			start = i
		}
		current.WriteString(line)
	}
	flush()
}

func codeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return buf.String()
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

// lineOf returns the 0-based line of a block within src.
func lineOf(n ast.Node, src []byte) int {
	for c := n; c != nil; c = c.FirstChild() {
		if c.Type() != ast.TypeBlock {
			break
		}
		if lines := c.Lines(); lines.Len() > 0 {
			return bytes.Count(src[:lines.At(0).Start], []byte("\n"))
		}
	}
	return 0
}
