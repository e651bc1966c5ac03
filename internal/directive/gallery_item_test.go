package directive

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docgallery/internal/doctree"
	"github.com/dgallion1/docgallery/internal/gallery"
	"github.com/dgallion1/docgallery/internal/markup"
	"github.com/dgallion1/docgallery/internal/render"
)

type rescaleCall struct {
	src, dst      string
	width, height int
}

// fakeLibrary records calls and produces markup in the gallery format.
type fakeLibrary struct {
	intro      string
	introErr   error
	introPaths []string
	markupArgs [][3]string
	rescales   []rescaleCall
	rescaleErr error
}

func (f *fakeLibrary) ExtractIntro(path string) (string, error) {
	f.introPaths = append(f.introPaths, path)
	return f.intro, f.introErr
}

func (f *fakeLibrary) ThumbnailMarkup(dir, basename, intro string) string {
	f.markupArgs = append(f.markupArgs, [3]string{dir, basename, intro})
	return gallery.New().ThumbnailMarkup(dir, basename, intro)
}

func (f *fakeLibrary) RescaleImage(src, dst string, width, height int) error {
	f.rescales = append(f.rescales, rescaleCall{src, dst, width, height})
	return f.rescaleErr
}

func strPtr(s string) *string { return &s }

func TestTruncateIntro(t *testing.T) {
	tests := []struct {
		name  string
		intro string
		want  string
	}{
		{"long", strings.Repeat("A", 300), strings.Repeat("A", 195) + "..."},
		{"exact limit", strings.Repeat("B", 195), strings.Repeat("B", 195) + "..."},
		{"short still gets suffix", "Short intro", "Short intro..."},
		{"empty", "", "..."},
		{"runes not bytes", strings.Repeat("é", 200), strings.Repeat("é", 195) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateIntro(tt.intro, 195)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
	if n := len(TruncateIntro(strings.Repeat("A", 300), 195)); n != 198 {
		t.Errorf("expected total length 198, got %d", n)
	}
}

func TestGalleryItemMarkup_IntroOverride(t *testing.T) {
	lib := &fakeLibrary{}
	g := NewGalleryItem(lib, DefaultThumbConfig(t.TempDir()))

	lines, err := g.Markup(markup.NewEnv("/src", "index.md"), Request{
		ExamplePath: "examples/plot_basics.py",
		Intro:       strPtr(strings.Repeat("A", 300)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lib.introPaths) != 0 {
		t.Error("intro override should skip extraction")
	}
	want := [3]string{"examples", "plot_basics.py", strings.Repeat("A", 195) + "..."}
	if len(lib.markupArgs) != 1 || lib.markupArgs[0] != want {
		t.Errorf("unexpected markup args %v", lib.markupArgs)
	}
	if !strings.Contains(strings.Join(lines, "\n"), ".. figure:: /examples/images/thumb/sphx_glr_plot_basics_thumb.png") {
		t.Error("expected default thumbnail figure line")
	}
}

func TestGalleryItemMarkup_ExtractsIntro(t *testing.T) {
	lib := &fakeLibrary{intro: "Draws things."}
	g := NewGalleryItem(lib, DefaultThumbConfig(t.TempDir()))

	_, err := g.Markup(markup.NewEnv("/src", "guide/index.md"), Request{ExamplePath: "plot.py"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantPath := filepath.Join("/src", "guide", "plot.py")
	if len(lib.introPaths) != 1 || lib.introPaths[0] != wantPath {
		t.Errorf("expected extraction from %q, got %v", wantPath, lib.introPaths)
	}
	if lib.markupArgs[0] != [3]string{"", "plot.py", "Draws things."} {
		t.Errorf("unexpected markup args %v", lib.markupArgs[0])
	}
}

func TestGalleryItemMarkup_ExtractErrorSurfaces(t *testing.T) {
	sentinel := errors.New("no such example")
	lib := &fakeLibrary{introErr: sentinel}
	g := NewGalleryItem(lib, DefaultThumbConfig(t.TempDir()))

	lines, err := g.Markup(markup.NewEnv("/src", "index.md"), Request{ExamplePath: "missing.py"})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if lines != nil || len(lib.markupArgs) != 0 {
		t.Error("expected no markup on failure")
	}
}

func TestGalleryItemMarkup_FigureOverride(t *testing.T) {
	out := t.TempDir()
	lib := &fakeLibrary{}
	g := NewGalleryItem(lib, DefaultThumbConfig(out))

	lines, err := g.Markup(markup.NewEnv("/src", "tutorials/index.md"), Request{
		ExamplePath: "examples/plot.py",
		Figure:      strPtr("img/custom.png"),
		Intro:       strPtr("Custom"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info, err := os.Stat(filepath.Join(out, "_static", "thumbs")); err != nil || !info.IsDir() {
		t.Fatalf("expected thumbnail dir to exist: %v", err)
	}
	want := rescaleCall{
		src:    filepath.Join("/src", "tutorials", "img", "custom.png"),
		dst:    filepath.Join(out, "_static", "thumbs", "custom.png"),
		width:  400,
		height: 280,
	}
	if len(lib.rescales) != 1 || lib.rescales[0] != want {
		t.Errorf("unexpected rescale calls %+v", lib.rescales)
	}

	fragment := strings.Join(lines, "\n")
	if !strings.Contains(fragment, "    .. figure:: /_static/thumbs/custom.png\n") {
		t.Errorf("expected rewritten figure line in\n%s", fragment)
	}
	if strings.Contains(fragment, "sphx_glr_plot_thumb.png") {
		t.Error("default thumbnail should be replaced")
	}
}

func TestGalleryItemMarkup_ExistingDirIsFine(t *testing.T) {
	out := t.TempDir()
	if err := os.MkdirAll(filepath.Join(out, "_static", "thumbs"), 0o755); err != nil {
		t.Fatal(err)
	}
	g := NewGalleryItem(&fakeLibrary{}, DefaultThumbConfig(out))
	req := Request{ExamplePath: "plot.py", Figure: strPtr("a.png"), Intro: strPtr("x")}

	for i := 0; i < 2; i++ {
		if _, err := g.Markup(markup.NewEnv("/src", "index.md"), req); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
}

func TestGalleryItemMarkup_DirectoryCreationError(t *testing.T) {
	out := t.TempDir()
	// A file where the static dir should be blocks creation.
	if err := os.WriteFile(filepath.Join(out, "_static"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	lib := &fakeLibrary{}
	g := NewGalleryItem(lib, DefaultThumbConfig(out))

	_, err := g.Markup(markup.NewEnv("/src", "index.md"), Request{
		ExamplePath: "plot.py", Figure: strPtr("a.png"), Intro: strPtr("x"),
	})
	var dce *DirectoryCreationError
	if !errors.As(err, &dce) {
		t.Fatalf("expected *DirectoryCreationError, got %v", err)
	}
	if len(lib.rescales) != 0 {
		t.Error("expected no rescale after directory failure")
	}
}

func TestGalleryItemMarkup_RescaleErrorSurfaces(t *testing.T) {
	sentinel := fmt.Errorf("bad image")
	g := NewGalleryItem(&fakeLibrary{rescaleErr: sentinel}, DefaultThumbConfig(t.TempDir()))

	_, err := g.Markup(markup.NewEnv("/src", "index.md"), Request{
		ExamplePath: "plot.py", Figure: strPtr("a.png"), Intro: strPtr("x"),
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected rescale error, got %v", err)
	}
}

func TestReplaceFigureLine(t *testing.T) {
	in := "a\n    .. figure:: /x/images/thumb/t.png\n\n        caption\n"
	got := replaceFigureLine(in, ".. figure:: /_static/thumbs/n.png")
	want := "a\n    .. figure:: /_static/thumbs/n.png\n\n        caption\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := replaceFigureLine("no figure here", "x"); got != "no figure here" {
		t.Errorf("expected unchanged input, got %q", got)
	}
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, buf.String())
}

// End to end through the parser with the real gallery library.
func TestGalleryItemDirective_WithFigure(t *testing.T) {
	srcDir := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "examples", "plot_demo.py"), "\"\"\"\nDemo\n====\n\nPlots a demo.\n\"\"\"\n")
	writeTestPNG(t, filepath.Join(srcDir, "images", "demo.png"), 1000, 500)

	reg := markup.NewRegistry()
	Register(reg, gallery.New(), DefaultThumbConfig(out))
	parser := markup.NewParser(reg)

	src := "# Gallery\n\n.. galleryitem:: examples/plot_demo.py\n   :figure: /images/demo.png\n"

	var first []byte
	for i := 0; i < 2; i++ {
		tree, err := parser.Parse([]byte(src), markup.NewEnv(srcDir, "index.md"))
		if err != nil {
			t.Fatalf("build %d: unexpected error: %v", i, err)
		}

		thumb := filepath.Join(out, "_static", "thumbs", "demo.png")
		f, err := os.Open(thumb)
		if err != nil {
			t.Fatalf("expected thumbnail: %v", err)
		}
		cfg, err := png.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Width != 400 || cfg.Height != 280 {
			t.Errorf("expected 400x280 thumbnail, got %dx%d", cfg.Width, cfg.Height)
		}

		data, _ := os.ReadFile(thumb)
		if first == nil {
			first = data
		} else if !bytes.Equal(first, data) {
			t.Error("expected identical thumbnail on rebuild")
		}

		items := tree.Find(doctree.KindContainer)
		var item *doctree.DocNode
		for _, c := range items {
			if c.Attr("class") == "gallery-item" {
				item = c
			}
		}
		if item == nil {
			t.Fatal("expected gallery item container")
		}

		figs := tree.Find(doctree.KindFigure)
		if len(figs) != 1 {
			t.Fatalf("expected 1 figure, got %d", len(figs))
		}
		if uri := figs[0].Children[0].Attr("uri"); uri != "/_static/thumbs/demo.png" {
			t.Errorf("expected figure to reference the rescaled thumbnail, got %q", uri)
		}

		raws := tree.Find(doctree.KindRaw)
		if len(raws) != 2 || !strings.Contains(raws[0].Text, `tooltip="Plots a demo."`) {
			t.Errorf("expected tooltip with extracted intro, got %v", raws)
		}

		body := render.Body(tree)
		if !strings.Contains(body, `<a href="examples/plot_demo.html">Demo</a>`) {
			t.Errorf("expected caption to link the example page, got\n%s", body)
		}
		if _, err := os.Stat(filepath.Join(out, "examples", "plot_demo.html")); err != nil {
			t.Errorf("expected example page: %v", err)
		}
	}
}

func TestGalleryItemDirective_MissingExampleFailsDocument(t *testing.T) {
	reg := markup.NewRegistry()
	Register(reg, gallery.New(), DefaultThumbConfig(t.TempDir()))

	_, err := markup.NewParser(reg).Parse([]byte(".. galleryitem:: nowhere.py\n"), markup.NewEnv(t.TempDir(), "index.md"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "galleryitem directive") {
		t.Errorf("expected directive context in %q", err.Error())
	}
}

func TestGalleryItemMarkup_OutsideSourceRoot(t *testing.T) {
	lib := &fakeLibrary{}
	g := NewGalleryItem(lib, DefaultThumbConfig(t.TempDir()))
	env := markup.NewEnv("/src", "index.md")

	_, err := g.Markup(env, Request{ExamplePath: "../plot.py", Intro: strPtr("x")})
	if !errors.Is(err, markup.ErrOutsideSource) {
		t.Errorf("example: expected ErrOutsideSource, got %v", err)
	}
	_, err = g.Markup(env, Request{ExamplePath: "plot.py", Intro: strPtr("x"), Figure: strPtr("/../../etc/img.png")})
	if !errors.Is(err, markup.ErrOutsideSource) {
		t.Errorf("figure: expected ErrOutsideSource, got %v", err)
	}
	if len(lib.rescales) != 0 {
		t.Error("expected no rescale of a figure outside the source root")
	}
}

func TestGalleryItemMarkup_NonPNGFigureKeepsFormatName(t *testing.T) {
	out := t.TempDir()
	lib := &fakeLibrary{}
	g := NewGalleryItem(lib, DefaultThumbConfig(out))

	lines, err := g.Markup(markup.NewEnv("/src", "index.md"), Request{
		ExamplePath: "plot.py", Intro: strPtr("x"), Figure: strPtr("img/photo.webp"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(out, "_static", "thumbs", "photo.png"); len(lib.rescales) != 1 || lib.rescales[0].dst != want {
		t.Errorf("expected rescale to %s, got %+v", want, lib.rescales)
	}
	if !strings.Contains(strings.Join(lines, "\n"), ".. figure:: /_static/thumbs/photo.png") {
		t.Error("expected figure line to name the png thumbnail")
	}
}

func TestGalleryItemMarkup_LinksExamplePage(t *testing.T) {
	srcDir := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "guide", "plot.py"), "\"\"\"\nLines\n=====\n\nDraws lines.\n\"\"\"\nx = 1\n")
	g := NewGalleryItem(&fakeLibrary{intro: "Draws lines."}, DefaultThumbConfig(out))
	env := markup.NewEnv(srcDir, "guide/index.md")

	if _, err := g.Markup(env, Request{ExamplePath: "plot.py"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, ok := env.Label(gallery.RefName("", "plot.py"))
	if !ok {
		t.Fatal("expected the thumbnail label to be bound")
	}
	if label.URI != "/guide/plot.html" || label.Title != "Lines" {
		t.Errorf("unexpected label %+v", label)
	}
	if data, err := os.ReadFile(filepath.Join(out, "guide", "plot.py")); err != nil || !strings.Contains(string(data), "x = 1") {
		t.Errorf("expected copied example source, got %q (%v)", data, err)
	}
}

func TestGalleryItemMarkup_UnreadableExampleStaysUnlinked(t *testing.T) {
	g := NewGalleryItem(&fakeLibrary{}, DefaultThumbConfig(t.TempDir()))
	env := markup.NewEnv(t.TempDir(), "index.md")

	if _, err := g.Markup(env, Request{ExamplePath: "missing.py", Intro: strPtr("x")}); err != nil {
		t.Fatalf("intro override should not need the example: %v", err)
	}
	if _, ok := env.Label(gallery.RefName("", "missing.py")); ok {
		t.Error("expected no label for an unreadable example")
	}
}
