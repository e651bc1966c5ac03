package markup

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/docgallery/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// DefaultMaxDepth bounds how deeply directives may nest parsed content.
const DefaultMaxDepth = 8

var (
	listItemRe = regexp.MustCompile(`^ {0,3}([-*+]|[0-9]{1,9}[.)])([ \t]|$)`)
	markerRe   = regexp.MustCompile(`^([ \t]*)\.\. +([A-Za-z][A-Za-z0-9_+.-]*)::(?:[ \t]+(.*))?$`)
	optionRe   = regexp.MustCompile(`^:([^:\s][^:]*):(?:\s+(.*))?$`)
)

// Parser turns directive-augmented Markdown into a DocTree.
type Parser struct {
	registry *Registry
	md       goldmark.Markdown
	tags     map[string]bool
	maxDepth int
}

// Option configures a Parser.
type Option func(*Parser)

// WithTags replaces the build tags consulted by the "only" directive.
func WithTags(tags ...string) Option {
	return func(p *Parser) {
		p.tags = make(map[string]bool, len(tags))
		for _, t := range tags {
			p.tags[strings.TrimSpace(t)] = true
		}
	}
}

// WithMaxDepth sets the nesting limit for NestedParse.
func WithMaxDepth(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxDepth = n
		}
	}
}

func NewParser(reg *Registry, opts ...Option) *Parser {
	p := &Parser{
		registry: reg,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.TaskList),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		tags:     map[string]bool{"html": true},
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Markdown exposes the goldmark instance used for prose.
func (p *Parser) Markdown() goldmark.Markdown {
	return p.md
}

// Parse builds the tree for one document.
func (p *Parser) Parse(src []byte, env *Env) (*doctree.DocTree, error) {
	st := &State{parser: p, env: env, format: formatFor(env.DocPath)}
	root := doctree.NewContainer()
	if err := st.parseLines(splitLines(string(src)), 0, root); err != nil {
		return nil, err
	}

	tree := &doctree.DocTree{
		Title:    titleFromPath(env.DocPath),
		Source:   env.DocPath,
		Children: root.Children,
	}
	for _, n := range root.Children {
		if n.Kind == doctree.KindSection {
			tree.Title = n.Title
			break
		}
	}
	return tree, nil
}

// State is the parser state visible to a running directive.
type State struct {
	parser *Parser
	env    *Env
	format proseFormat
	depth  int
}

// Env returns the environment of the document being parsed.
func (st *State) Env() *Env {
	return st.env
}

// HasTag reports whether a build tag is set.
func (st *State) HasTag(tag string) bool {
	return st.parser.tags[tag]
}

// NestedParse parses lines as markup and appends the resulting nodes to
// parent. offset is the 0-based document line of lines[0].
func (st *State) NestedParse(lines []string, offset int, parent *doctree.DocNode) error {
	if st.depth >= st.parser.maxDepth {
		return st.errorf(offset+1, "directive nesting exceeds %d levels", st.parser.maxDepth)
	}
	child := *st
	child.depth++
	// Fragments produced by directives are always Markdown, whatever the
	// host document is.
	child.format = formatMarkdown
	return child.parseLines(lines, offset, parent)
}

func (st *State) errorf(line int, format string, args ...any) *ParseError {
	return &ParseError{Doc: st.env.DocPath, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (st *State) parseLines(lines []string, offset int, parent *doctree.DocNode) error {
	s := newSink(parent)
	var prose []string
	proseStart := 0
	inFence := false
	inCode := false
	listItem := false // last line at an outer indent opened a list item

	flush := func() {
		if len(prose) > 0 {
			st.parseProse(prose, offset+proseStart, s)
			prose = nil
		}
	}

	for i := 0; i < len(lines); {
		line := lines[i]
		if columns(line) < 4 && isFence(line) {
			inFence = !inFence
		}
		if !isBlank(line) {
			inCode = st.format == formatMarkdown && !inFence && !listItem &&
				columns(line) >= 4 && (inCode || i == 0 || isBlank(lines[i-1]))
			if columns(line) < 4 {
				listItem = listItemRe.MatchString(line)
			}
		}
		m := markerRe.FindStringSubmatch(line)
		if inFence || inCode || m == nil {
			if len(prose) == 0 {
				proseStart = i
			}
			prose = append(prose, line)
			i++
			continue
		}

		flush()
		end := blockEnd(lines, i, indentOf(line))
		nodes, err := st.runDirective(m[2], strings.TrimSpace(m[3]), lines[i+1:end], offset+i)
		if err != nil {
			return err
		}
		s.add(nodes...)
		i = end
		inCode, listItem = false, false
	}
	flush()
	return nil
}

func (st *State) runDirective(name, firstArg string, body []string, lineIdx int) ([]*doctree.DocNode, error) {
	line := lineIdx + 1
	d, ok := st.parser.registry.Lookup(name)
	if !ok {
		return nil, st.errorf(line, "unknown directive type %q", name)
	}
	spec := d.Spec()
	maxArgs := spec.RequiredArgs + spec.OptionalArgs

	body = dedent(body)
	k := 0

	var argLines []string
	if firstArg != "" {
		argLines = append(argLines, firstArg)
	}
	if maxArgs > 0 {
		for k < len(body) && !isBlank(body[k]) && !optionRe.MatchString(body[k]) {
			argLines = append(argLines, strings.TrimSpace(body[k]))
			k++
		}
	}

	args, err := splitArgs(strings.Join(argLines, "\n"), spec)
	if err != nil {
		return nil, st.errorf(line, "%s directive: %v", name, err)
	}

	opts := make(map[string]string)
	for k < len(body) {
		om := optionRe.FindStringSubmatch(body[k])
		if om == nil {
			break
		}
		optName, val := om[1], strings.TrimSpace(om[2])
		k++
		for k < len(body) && !isBlank(body[k]) && indentOf(body[k]) > 0 {
			val += " " + strings.TrimSpace(body[k])
			k++
		}
		kind, known := spec.Options[optName]
		if !known {
			return nil, st.errorf(line, "%s directive: unknown option %q", name, optName)
		}
		if _, dup := opts[optName]; dup {
			return nil, st.errorf(line, "%s directive: duplicate option %q", name, optName)
		}
		switch kind {
		case OptionPath:
			val = strings.Join(strings.Fields(val), "")
		case OptionFlag:
			if val != "" {
				return nil, st.errorf(line, "%s directive: option %q takes no value", name, optName)
			}
		}
		opts[optName] = val
	}

	for k < len(body) && isBlank(body[k]) {
		k++
	}
	content := body[k:]
	if len(content) > 0 && !spec.HasContent {
		return nil, st.errorf(line, "%s directive: no content permitted", name)
	}

	inv := &Invocation{
		Name:          name,
		Args:          args,
		Options:       opts,
		Content:       content,
		Line:          line,
		ContentOffset: lineIdx + 1 + k,
	}
	nodes, err := d.Run(inv, st)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, fmt.Errorf("%s:%d: %s directive: %w", st.env.DocPath, line, name, err)
	}
	return nodes, nil
}

func splitArgs(text string, spec Spec) ([]string, error) {
	maxArgs := spec.RequiredArgs + spec.OptionalArgs
	var args []string
	if strings.TrimSpace(text) != "" {
		if maxArgs == 0 {
			return nil, fmt.Errorf("no arguments permitted")
		}
		args = strings.Fields(text)
		if len(args) > maxArgs {
			if !spec.FinalArgWhitespace {
				return nil, fmt.Errorf("maximum %d argument(s) allowed, %d supplied", maxArgs, len(args))
			}
			args = splitFinal(text, maxArgs)
		}
	}
	if len(args) < spec.RequiredArgs {
		return nil, fmt.Errorf("%d argument(s) required, %d supplied", spec.RequiredArgs, len(args))
	}
	return args, nil
}

// splitFinal splits off n-1 whitespace separated fields and keeps the rest,
// inner whitespace included, as the final field.
func splitFinal(s string, n int) []string {
	var out []string
	rest := strings.TrimSpace(s)
	for len(out) < n-1 {
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i < 0 {
			break
		}
		out = append(out, rest[:i])
		rest = strings.TrimSpace(rest[i:])
	}
	return append(out, rest)
}

// blockEnd returns one past the last non-blank line belonging to the
// directive that starts at lines[start].
func blockEnd(lines []string, start, indent int) int {
	last := start + 1
	for i := start + 1; i < len(lines); i++ {
		if isBlank(lines[i]) {
			continue
		}
		if indentOf(lines[i]) <= indent {
			break
		}
		last = i + 1
	}
	return last
}

func dedent(lines []string) []string {
	minIndent := -1
	for _, l := range lines {
		if isBlank(l) {
			continue
		}
		if n := indentOf(l); minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if isBlank(l) {
			out[i] = ""
			continue
		}
		out[i] = l[minIndent:]
	}
	return out
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// columns is the visual indent of a line with tabs stopping every 4 columns.
func columns(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4 - n%4
		default:
			return n
		}
	}
	return n
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func isFence(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~")
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func titleFromPath(docPath string) string {
	base := path.Base(docPath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// sink appends nodes under the innermost open section.
type sink struct {
	stack []sinkEntry
}

type sinkEntry struct {
	node  *doctree.DocNode
	level int
}

func newSink(parent *doctree.DocNode) *sink {
	return &sink{stack: []sinkEntry{{node: parent, level: 0}}}
}

func (s *sink) top() *doctree.DocNode {
	return s.stack[len(s.stack)-1].node
}

func (s *sink) add(nodes ...*doctree.DocNode) {
	s.top().Append(nodes...)
}

func (s *sink) openSection(level int, title string, line int) {
	// Pop until we find a parent with a lower level.
	for len(s.stack) > 1 && s.stack[len(s.stack)-1].level >= level {
		s.stack = s.stack[:len(s.stack)-1]
	}
	sec := &doctree.DocNode{Kind: doctree.KindSection, Title: title, Line: line}
	sec.SetAttr("level", fmt.Sprint(level))
	s.top().Append(sec)
	s.stack = append(s.stack, sinkEntry{node: sec, level: level})
}
