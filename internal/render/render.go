// Package render writes document trees as HTML pages.
package render

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/docgallery/internal/doctree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StylesheetPath is the root-relative stylesheet every page links.
const StylesheetPath = "/_static/gallery.css"

var rootRefRe = regexp.MustCompile(`(href|src)="/([^/"][^"]*)?"`)

// OutputPath maps a source document to its page path.
func OutputPath(docPath string) string {
	return strings.TrimSuffix(docPath, path.Ext(docPath)) + ".html"
}

// Page renders a complete HTML page for tree.
func Page(tree *doctree.DocTree) ([]byte, error) {
	prefix := rootPrefix(tree.Source)

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, html.Attribute{Key: "charset", Val: "utf-8"}))
	title := element(atom.Title)
	title.AppendChild(&html.Node{Type: html.TextNode, Data: tree.Title})
	head.AppendChild(title)
	head.AppendChild(element(atom.Link,
		html.Attribute{Key: "rel", Val: "stylesheet"},
		html.Attribute{Key: "href", Val: relURI(StylesheetPath, prefix)},
	))

	body := element(atom.Body)
	content := element(atom.Main, html.Attribute{Key: "class", Val: "document"})
	content.AppendChild(&html.Node{Type: html.RawNode, Data: Body(tree)})
	body.AppendChild(content)

	root.AppendChild(head)
	root.AppendChild(body)
	doc.AppendChild(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render %s: %w", tree.Source, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Body renders only the document content.
func Body(tree *doctree.DocTree) string {
	w := &writer{prefix: rootPrefix(tree.Source)}
	for _, n := range tree.Children {
		w.node(n)
	}
	return w.buf.String()
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

// rootPrefix returns the relative path from a page back to the site root.
func rootPrefix(docPath string) string {
	depth := strings.Count(path.Clean(docPath), "/")
	return strings.Repeat("../", depth)
}

// relURI rewrites root-relative URIs so pages work from any directory.
func relURI(uri, prefix string) string {
	if !strings.HasPrefix(uri, "/") || strings.HasPrefix(uri, "//") {
		return uri
	}
	if rel := prefix + strings.TrimPrefix(uri, "/"); rel != "" {
		return rel
	}
	return "./"
}

type writer struct {
	buf    strings.Builder
	prefix string
}

func (w *writer) printf(format string, args ...any) {
	fmt.Fprintf(&w.buf, format, args...)
}

func (w *writer) children(n *doctree.DocNode) {
	for _, c := range n.Children {
		w.node(c)
	}
}

func (w *writer) node(n *doctree.DocNode) {
	switch n.Kind {
	case doctree.KindSection:
		level, _ := strconv.Atoi(n.Attr("level"))
		level = min(max(level, 1), 6)
		w.printf("<section id=\"%s\">\n<h%d>%s</h%d>\n", Slug(n.Title), level, html.EscapeString(n.Title), level)
		w.children(n)
		w.printf("</section>\n")

	case doctree.KindParagraph:
		if h := n.Attr("html"); h != "" {
			w.printf("%s\n", rootRefRe.ReplaceAllStringFunc(h, func(m string) string {
				sub := rootRefRe.FindStringSubmatch(m)
				return fmt.Sprintf(`%s="%s"`, sub[1], relURI("/"+sub[2], w.prefix))
			}))
			return
		}
		w.printf("<p>%s</p>\n", html.EscapeString(n.Text))

	case doctree.KindLiteralBlock:
		class := "literal-block"
		if lang := n.Attr("language"); lang != "" {
			class += " language-" + lang
		}
		w.printf("<pre class=\"%s\">%s</pre>\n", html.EscapeString(class), html.EscapeString(n.Text))

	case doctree.KindContainer:
		if class := n.Attr("class"); class != "" {
			w.printf("<div class=\"%s\">\n", html.EscapeString(class))
		} else {
			w.printf("<div>\n")
		}
		w.children(n)
		w.printf("</div>\n")

	case doctree.KindFigure:
		class := "figure"
		if a := n.Attr("align"); a != "" {
			class += " align-" + a
		}
		if c := n.Attr("class"); c != "" {
			class += " " + c
		}
		w.printf("<figure class=\"%s\"", html.EscapeString(class))
		if width := n.Attr("width"); width != "" {
			w.printf(" style=\"width: %s\"", html.EscapeString(width))
		}
		w.printf(">\n")
		w.children(n)
		w.printf("</figure>\n")

	case doctree.KindImage:
		img := fmt.Sprintf("<img src=\"%s\" alt=\"%s\"",
			html.EscapeString(relURI(n.Attr("uri"), w.prefix)), html.EscapeString(n.Attr("alt")))
		for _, k := range []string{"width", "height", "class"} {
			if v := n.Attr(k); v != "" {
				img += fmt.Sprintf(" %s=\"%s\"", k, html.EscapeString(v))
			}
		}
		img += ">"
		if target := n.Attr("target"); target != "" {
			img = fmt.Sprintf("<a href=\"%s\">%s</a>", html.EscapeString(relURI(target, w.prefix)), img)
		}
		w.printf("%s\n", img)

	case doctree.KindCaption:
		w.printf("<figcaption>\n")
		w.children(n)
		w.printf("</figcaption>\n")

	case doctree.KindRaw:
		if n.Attr("format") == "html" {
			w.printf("%s\n", n.Text)
		}
	}
}

// Slug is the HTML id of a section with the given title.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
