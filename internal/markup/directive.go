package markup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/docgallery/internal/doctree"
)

// OptionKind controls how an option value is normalized.
type OptionKind int

const (
	// OptionUnchanged keeps the value as written (continuation lines joined by spaces).
	OptionUnchanged OptionKind = iota
	// OptionPath removes all whitespace from the value.
	OptionPath
	// OptionFlag takes no value.
	OptionFlag
)

// Spec declares what a directive accepts.
type Spec struct {
	RequiredArgs       int
	OptionalArgs       int
	FinalArgWhitespace bool
	HasContent         bool
	Options            map[string]OptionKind
}

// Invocation is one occurrence of a directive in a document.
type Invocation struct {
	Name    string
	Args    []string
	Options map[string]string
	Content []string
	Line    int // 1-based line of the directive marker
	// ContentOffset is the 0-based document line of Content[0].
	ContentOffset int
}

// Option returns an option value and whether it was given.
func (inv *Invocation) Option(name string) (string, bool) {
	v, ok := inv.Options[name]
	return v, ok
}

// Directive turns an invocation into document nodes.
type Directive interface {
	Spec() Spec
	Run(inv *Invocation, st *State) ([]*doctree.DocNode, error)
}

// DirectiveFunc adapts a function with a fixed Spec to the Directive interface.
type DirectiveFunc struct {
	S  Spec
	Fn func(inv *Invocation, st *State) ([]*doctree.DocNode, error)
}

func (d DirectiveFunc) Spec() Spec { return d.S }

func (d DirectiveFunc) Run(inv *Invocation, st *State) ([]*doctree.DocNode, error) {
	return d.Fn(inv, st)
}

// Registry maps directive names to implementations.
type Registry struct {
	directives map[string]Directive
}

// NewRegistry returns a registry holding the built-in directives.
func NewRegistry() *Registry {
	r := &Registry{directives: make(map[string]Directive)}
	registerBuiltins(r)
	return r
}

// Register adds or replaces a directive.
func (r *Registry) Register(name string, d Directive) {
	r.directives[strings.ToLower(name)] = d
}

// Lookup finds a directive by name.
func (r *Registry) Lookup(name string) (Directive, bool) {
	d, ok := r.directives[strings.ToLower(name)]
	return d, ok
}

// Names lists registered directive names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.directives))
	for n := range r.directives {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseError reports markup that could not be parsed into nodes.
type ParseError struct {
	Doc  string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Doc, e.Line, e.Msg)
}
