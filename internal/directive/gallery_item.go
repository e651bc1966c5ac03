package directive

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dgallion1/docgallery/internal/doctree"
	"github.com/dgallion1/docgallery/internal/gallery"
	"github.com/dgallion1/docgallery/internal/markup"
	"github.com/dgallion1/docgallery/internal/source"
)

// GalleryItemName is the registered name of the gallery item renderer.
const GalleryItemName = "galleryitem"

// Library is the gallery toolkit the renderer delegates to.
type Library interface {
	ExtractIntro(path string) (string, error)
	ThumbnailMarkup(dir, basename, intro string) string
	RescaleImage(src, dst string, width, height int) error
}

// ThumbConfig controls where and how figure overrides are rescaled.
type ThumbConfig struct {
	OutputRoot string // Build output root the thumbnail dir lives under
	Dir        string // Thumbnail dir relative to OutputRoot, slash-separated
	Width      int
	Height     int
	IntroLimit int // Characters kept from an intro override
}

// DefaultThumbConfig returns the stock thumbnail settings.
func DefaultThumbConfig(outputRoot string) ThumbConfig {
	return ThumbConfig{
		OutputRoot: outputRoot,
		Dir:        "_static/thumbs",
		Width:      400,
		Height:     280,
		IntroLimit: 195,
	}
}

// DirectoryCreationError reports a thumbnail directory that could not be created.
type DirectoryCreationError struct {
	Path string
	Err  error
}

func (e *DirectoryCreationError) Error() string {
	return fmt.Sprintf("cannot create directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryCreationError) Unwrap() error { return e.Err }

var figureLineRe = regexp.MustCompile(`\.\.\sfigure::\s.*\.png`)

// TruncateIntro keeps the first limit characters of an intro override and
// always appends "...", whether or not anything was cut.
func TruncateIntro(intro string, limit int) string {
	r := []rune(intro)
	if len(r) > limit {
		r = r[:limit]
	}
	return string(r) + "..."
}

// GalleryItem is the galleryitem directive.
type GalleryItem struct {
	lib Library
	cfg ThumbConfig
}

func NewGalleryItem(lib Library, cfg ThumbConfig) *GalleryItem {
	return &GalleryItem{lib: lib, cfg: cfg}
}

func (g *GalleryItem) Spec() markup.Spec {
	return markup.Spec{
		RequiredArgs:       1,
		FinalArgWhitespace: true,
		Options: map[string]markup.OptionKind{
			"figure": markup.OptionPath,
			"intro":  markup.OptionUnchanged,
		},
	}
}

func (g *GalleryItem) Run(inv *markup.Invocation, st *markup.State) ([]*doctree.DocNode, error) {
	req := Request{ExamplePath: inv.Args[0]}
	if v, ok := inv.Option("figure"); ok {
		req.Figure = &v
	}
	if v, ok := inv.Option("intro"); ok {
		req.Intro = &v
	}

	lines, err := g.Markup(st.Env(), req)
	if err != nil {
		return nil, err
	}

	container := doctree.NewContainer()
	container.Line = inv.Line
	container.SetAttr("class", "gallery-item")
	if err := st.NestedParse(lines, inv.Line-1, container); err != nil {
		return nil, err
	}
	return []*doctree.DocNode{container}, nil
}

// Request is one gallery item. Nil options were not given.
type Request struct {
	ExamplePath string
	Figure      *string
	Intro       *string
}

// Markup resolves the intro, builds the thumbnail fragment and applies a
// figure override. It returns the fragment split into lines. When the
// example can be read and an output root is set, the example page is
// written and the fragment's :ref: label is bound to it in env.
func (g *GalleryItem) Markup(env *markup.Env, req Request) ([]string, error) {
	examplePath := strings.TrimSpace(req.ExamplePath)
	dir := path.Dir(filepath.ToSlash(examplePath))
	if dir == "." {
		dir = ""
	}
	basename := path.Base(filepath.ToSlash(examplePath))

	rel, abs, err := env.Resolve(examplePath)
	if err != nil {
		return nil, err
	}

	var intro string
	if req.Intro != nil {
		intro = TruncateIntro(*req.Intro, g.cfg.IntroLimit)
	} else if intro, err = g.lib.ExtractIntro(abs); err != nil {
		return nil, err
	}

	fragment := g.lib.ThumbnailMarkup(dir, basename, intro)

	if req.Figure != nil {
		thumb, err := g.scaleFigure(env, *req.Figure)
		if err != nil {
			return nil, err
		}
		fragment = replaceFigureLine(fragment, ".. figure:: /"+thumb)
	}

	if err := g.linkExample(env, rel, abs, gallery.RefName(dir, basename)); err != nil {
		return nil, err
	}
	return strings.Split(fragment, "\n"), nil
}

// linkExample writes the example page and binds label to it. An example
// that cannot be read is only reachable through an intro override and is
// left unlinked.
func (g *GalleryItem) linkExample(env *markup.Env, rel, abs, label string) error {
	if g.cfg.OutputRoot == "" {
		return nil
	}
	text, err := source.ReadFile(abs)
	if err != nil {
		return nil
	}
	l, err := writeExample(g.cfg.OutputRoot, rel, text)
	if err != nil {
		return err
	}
	env.SetLabel(label, l)
	return nil
}

// scaleFigure rescales a figure into the thumbnail dir and returns its
// slash-separated path relative to the output root.
func (g *GalleryItem) scaleFigure(env *markup.Env, figure string) (string, error) {
	_, src, err := env.Resolve(figure)
	if err != nil {
		return "", err
	}
	thumb := path.Join(g.cfg.Dir, gallery.ThumbName(src))

	outDir := filepath.Join(g.cfg.OutputRoot, filepath.FromSlash(g.cfg.Dir))
	if err := os.MkdirAll(outDir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return "", &DirectoryCreationError{Path: outDir, Err: err}
	}

	dst := filepath.Join(g.cfg.OutputRoot, filepath.FromSlash(thumb))
	if err := g.lib.RescaleImage(src, dst, g.cfg.Width, g.cfg.Height); err != nil {
		return "", err
	}
	return thumb, nil
}

func replaceFigureLine(fragment, replacement string) string {
	loc := figureLineRe.FindStringIndex(fragment)
	if loc == nil {
		return fragment
	}
	return fragment[:loc[0]] + replacement + fragment[loc[1]:]
}

// Register adds both directives to a registry.
func Register(reg *markup.Registry, lib Library, cfg ThumbConfig) {
	reg.Register(IncludeName, Include{})
	reg.Register(GalleryItemName, NewGalleryItem(lib, cfg))
}
