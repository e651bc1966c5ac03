// Package directive holds the custom documentation directives: a source
// includer that drops the leading docstring and a gallery item renderer.
package directive

import (
	"github.com/dgallion1/docgallery/internal/doctree"
	"github.com/dgallion1/docgallery/internal/markup"
	"github.com/dgallion1/docgallery/internal/source"
)

// IncludeName is the registered name of the source includer.
const IncludeName = "includenodoc"

// RenderInclude reads a source file and returns its contents, minus the
// first docstring block, as a literal block.
func RenderInclude(path string) (*doctree.DocNode, error) {
	text, err := source.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return doctree.NewLiteralBlock(source.StripDocstring(text)), nil
}

// Include is the includenodoc directive.
type Include struct{}

func (Include) Spec() markup.Spec {
	return markup.Spec{RequiredArgs: 1, FinalArgWhitespace: true}
}

func (Include) Run(inv *markup.Invocation, st *markup.State) ([]*doctree.DocNode, error) {
	_, abs, err := st.Env().Resolve(inv.Args[0])
	if err != nil {
		return nil, err
	}
	lit, err := RenderInclude(abs)
	if err != nil {
		return nil, err
	}
	lit.Line = inv.Line
	return []*doctree.DocNode{lit}, nil
}
