package markup

import (
	"strings"

	"github.com/dgallion1/docgallery/internal/doctree"
)

var imageOptions = map[string]OptionKind{
	"alt":    OptionUnchanged,
	"width":  OptionUnchanged,
	"height": OptionUnchanged,
	"align":  OptionUnchanged,
	"target": OptionPath,
	"class":  OptionUnchanged,
}

func registerBuiltins(r *Registry) {
	r.Register("raw", DirectiveFunc{
		S:  Spec{RequiredArgs: 1, FinalArgWhitespace: true, HasContent: true},
		Fn: runRaw,
	})
	r.Register("only", DirectiveFunc{
		S:  Spec{RequiredArgs: 1, FinalArgWhitespace: true, HasContent: true},
		Fn: runOnly,
	})
	r.Register("image", DirectiveFunc{
		S:  Spec{RequiredArgs: 1, FinalArgWhitespace: true, Options: imageOptions},
		Fn: runImage,
	})

	figureOptions := map[string]OptionKind{"figwidth": OptionUnchanged, "figclass": OptionUnchanged}
	for k, v := range imageOptions {
		figureOptions[k] = v
	}
	r.Register("figure", DirectiveFunc{
		S:  Spec{RequiredArgs: 1, FinalArgWhitespace: true, HasContent: true, Options: figureOptions},
		Fn: runFigure,
	})
}

func runRaw(inv *Invocation, st *State) ([]*doctree.DocNode, error) {
	if len(inv.Content) == 0 {
		return nil, st.errorf(inv.Line, "raw directive: content required")
	}
	n := &doctree.DocNode{
		Kind: doctree.KindRaw,
		Text: strings.Join(inv.Content, "\n"),
		Line: inv.Line,
	}
	n.SetAttr("format", strings.ToLower(strings.Join(strings.Fields(inv.Args[0]), " ")))
	return []*doctree.DocNode{n}, nil
}

func runOnly(inv *Invocation, st *State) ([]*doctree.DocNode, error) {
	if !evalTagExpr(inv.Args[0], st.HasTag) {
		return nil, nil
	}
	c := doctree.NewContainer()
	c.Line = inv.Line
	c.SetAttr("only", inv.Args[0])
	if err := st.NestedParse(inv.Content, inv.ContentOffset, c); err != nil {
		return nil, err
	}
	return []*doctree.DocNode{c}, nil
}

func imageNode(inv *Invocation) *doctree.DocNode {
	img := &doctree.DocNode{Kind: doctree.KindImage, Line: inv.Line}
	img.SetAttr("uri", strings.Join(strings.Fields(inv.Args[0]), ""))
	for _, k := range []string{"alt", "width", "height", "align", "target", "class"} {
		if v, ok := inv.Option(k); ok {
			img.SetAttr(k, v)
		}
	}
	return img
}

func runImage(inv *Invocation, st *State) ([]*doctree.DocNode, error) {
	return []*doctree.DocNode{imageNode(inv)}, nil
}

func runFigure(inv *Invocation, st *State) ([]*doctree.DocNode, error) {
	fig := &doctree.DocNode{Kind: doctree.KindFigure, Line: inv.Line}
	if v, ok := inv.Option("figwidth"); ok {
		fig.SetAttr("width", v)
	}
	if v, ok := inv.Option("figclass"); ok {
		fig.SetAttr("class", v)
	}
	if v, ok := inv.Option("align"); ok {
		fig.SetAttr("align", v)
	}
	fig.Append(imageNode(inv))

	if len(inv.Content) > 0 {
		caption := &doctree.DocNode{Kind: doctree.KindCaption, Line: inv.ContentOffset + 1}
		if err := st.NestedParse(inv.Content, inv.ContentOffset, caption); err != nil {
			return nil, err
		}
		fig.Append(caption)
	}
	return []*doctree.DocNode{fig}, nil
}

// evalTagExpr evaluates "a", "not a", "a and b", "a or b" style expressions.
// Parentheses are not supported.
func evalTagExpr(expr string, has func(string) bool) bool {
	result := false
	for _, clause := range splitOn(strings.Fields(expr), "or") {
		ok := len(clause) > 0
		for _, term := range splitOn(clause, "and") {
			neg := false
			for len(term) > 0 && term[0] == "not" {
				neg = !neg
				term = term[1:]
			}
			v := len(term) == 1 && has(term[0])
			if neg {
				v = !v
			}
			ok = ok && v
		}
		result = result || ok
	}
	return result
}

func splitOn(words []string, sep string) [][]string {
	var out [][]string
	var cur []string
	for _, w := range words {
		if w == sep {
			out = append(out, cur)
			cur = nil
			continue
		}
		cur = append(cur, w)
	}
	return append(out, cur)
}
