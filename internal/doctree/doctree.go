package doctree

import "strings"

// Kind identifies what a DocNode represents.
type Kind string

const (
	KindSection      Kind = "section"
	KindParagraph    Kind = "paragraph"
	KindLiteralBlock Kind = "literal_block"
	KindContainer    Kind = "container"
	KindFigure       Kind = "figure"
	KindImage        Kind = "image"
	KindCaption      Kind = "caption"
	KindRaw          Kind = "raw"
)

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (first heading or filename)
	Source   string     // Source path relative to the source root
	Children []*DocNode // Top-level nodes
}

// DocNode is a recursive node in the document tree.
type DocNode struct {
	Kind     Kind
	Title    string            // Section heading (sections only)
	Text     string            // Text content (paragraph markdown, literal text, raw markup)
	Attrs    map[string]string // Node attributes (uri, alt, format, level, ...)
	Line     int               // Source line (0 if N/A)
	Children []*DocNode
}

// NewLiteralBlock wraps text in a verbatim block.
func NewLiteralBlock(text string) *DocNode {
	return &DocNode{Kind: KindLiteralBlock, Text: text}
}

// NewContainer returns an empty container node.
func NewContainer() *DocNode {
	return &DocNode{Kind: KindContainer}
}

// Append adds children in order.
func (n *DocNode) Append(children ...*DocNode) {
	n.Children = append(n.Children, children...)
}

// Attr returns an attribute or "" when unset.
func (n *DocNode) Attr(key string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[key]
}

// SetAttr sets an attribute, allocating the map on first use.
func (n *DocNode) SetAttr(key, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func Walk(n *DocNode, fn func(*DocNode) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Find returns every node of the given kind under the tree.
func (t *DocTree) Find(kind Kind) []*DocNode {
	var out []*DocNode
	for _, c := range t.Children {
		Walk(c, func(n *DocNode) bool {
			if n.Kind == kind {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}

// PlainText joins the text of all nodes under the tree, skipping raw markup.
func (t *DocTree) PlainText() string {
	var parts []string
	for _, c := range t.Children {
		Walk(c, func(n *DocNode) bool {
			if n.Kind == KindRaw {
				return false
			}
			if n.Title != "" {
				parts = append(parts, n.Title)
			}
			if n.Text != "" {
				parts = append(parts, n.Text)
			}
			return true
		})
	}
	return strings.Join(parts, "\n\n")
}
