package markup

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Env is the per-document build environment handed to directives.
type Env struct {
	SrcDir  string // Absolute source root
	DocPath string // Document being processed, slash-separated and relative to SrcDir

	labels map[string]Label
}

// Label is a cross-reference target for :ref: roles.
type Label struct {
	URI   string // Root-relative page URI, e.g. /examples/plot_demo.html
	Title string // Link text when the role gives none
}

// SetLabel makes :ref:`name` in later markup of this document link to l.
func (e *Env) SetLabel(name string, l Label) {
	if e.labels == nil {
		e.labels = make(map[string]Label)
	}
	e.labels[name] = l
}

// Label looks up a cross-reference target.
func (e *Env) Label(name string) (Label, bool) {
	l, ok := e.labels[name]
	return l, ok
}

// NewEnv returns the environment for one document.
func NewEnv(srcDir, docPath string) *Env {
	return &Env{SrcDir: srcDir, DocPath: filepath.ToSlash(docPath)}
}

// ErrOutsideSource marks a document path that climbs above the source root.
var ErrOutsideSource = errors.New("path is outside the source root")

// Resolve maps a path written in a document to its source-relative and
// absolute locations. A leading "/" is relative to the source root, anything
// else to the directory of the current document. Paths that leave the source
// root are rejected.
func (e *Env) Resolve(name string) (rel, abs string, err error) {
	name = filepath.ToSlash(strings.TrimSpace(name))
	if strings.HasPrefix(name, "/") {
		rel = path.Clean(strings.TrimLeft(name, "/"))
	} else {
		rel = path.Clean(path.Join(path.Dir(e.DocPath), name))
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", "", fmt.Errorf("%s: %w", name, ErrOutsideSource)
	}
	abs = filepath.Join(e.SrcDir, filepath.FromSlash(rel))
	return rel, abs, nil
}
