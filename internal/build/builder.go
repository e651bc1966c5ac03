package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docgallery/internal/config"
	"github.com/dgallion1/docgallery/internal/directive"
	"github.com/dgallion1/docgallery/internal/doctree"
	"github.com/dgallion1/docgallery/internal/gallery"
	"github.com/dgallion1/docgallery/internal/markup"
	"github.com/dgallion1/docgallery/internal/render"
	"github.com/dgallion1/docgallery/internal/search"
	"github.com/dgallion1/docgallery/internal/source"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidDocument marks a document path that cannot be built.
var ErrInvalidDocument = errors.New("invalid document")

// Builder turns source documents into HTML pages.
type Builder struct {
	parser  *markup.Parser
	index   *search.Index
	srcDir  string
	outDir  string
	workers int
	log     *slog.Logger
}

// Result describes one built document.
type Result struct {
	Doc      string        `json:"doc"`
	Output   string        `json:"output"`
	Title    string        `json:"title"`
	Duration time.Duration `json:"duration_ns"`
}

// Failure is a document that did not build.
type Failure struct {
	Doc   string `json:"doc"`
	Error string `json:"error"`
}

// Summary collects the outcome of BuildAll.
type Summary struct {
	Built  []Result  `json:"built"`
	Failed []Failure `json:"failed"`
}

// NewBuilder wires the directive registry, gallery library and parser for cfg.
func NewBuilder(cfg config.Config, log *slog.Logger) (*Builder, error) {
	srcDir, err := filepath.Abs(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source dir: %w", err)
	}
	outDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}

	reg := markup.NewRegistry()
	directive.Register(reg, gallery.New(), directive.ThumbConfig{
		OutputRoot: outDir,
		Dir:        cfg.ThumbDir,
		Width:      cfg.ThumbWidth,
		Height:     cfg.ThumbHeight,
		IntroLimit: cfg.IntroLimit,
	})

	index, err := search.Load(filepath.Join(outDir, search.FileName))
	if err != nil {
		log.Warn("discarding search index", "error", err)
	}

	return &Builder{
		parser:  markup.NewParser(reg, markup.WithTags(cfg.Tags...)),
		index:   index,
		srcDir:  srcDir,
		outDir:  outDir,
		workers: max(cfg.WorkerCount, 1),
		log:     log,
	}, nil
}

// SourceDir returns the absolute source root.
func (b *Builder) SourceDir() string { return b.srcDir }

// OutputDir returns the absolute output root.
func (b *Builder) OutputDir() string { return b.outDir }

// Render parses and renders src as if it were the document at docPath,
// without writing its page. Directive side effects such as thumbnails
// still happen.
func (b *Builder) Render(docPath string, src []byte) (*doctree.DocTree, []byte, error) {
	rel, err := b.cleanDocPath(docPath)
	if err != nil {
		return nil, nil, err
	}
	return b.render(rel, src)
}

func (b *Builder) render(rel string, src []byte) (*doctree.DocTree, []byte, error) {
	tree, err := b.parser.Parse(src, markup.NewEnv(b.srcDir, rel))
	if err != nil {
		return nil, nil, err
	}
	page, err := render.Page(tree)
	if err != nil {
		return nil, nil, err
	}
	return tree, page, nil
}

// BuildDocument builds one source document into its HTML page.
func (b *Builder) BuildDocument(ctx context.Context, docPath string) (Result, error) {
	start := time.Now()
	rel, err := b.cleanDocPath(docPath)
	if err != nil {
		return Result{Doc: docPath}, err
	}
	res := Result{Doc: rel}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	text, err := source.ReadFile(filepath.Join(b.srcDir, filepath.FromSlash(rel)))
	if err != nil {
		return res, err
	}
	tree, page, err := b.render(rel, []byte(text))
	if err != nil {
		return res, err
	}

	res.Output = render.OutputPath(rel)
	res.Title = tree.Title
	out := filepath.Join(b.outDir, filepath.FromSlash(res.Output))
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(out, page, 0o644); err != nil {
		return res, fmt.Errorf("write %s: %w", res.Output, err)
	}

	b.index.Set(rel, search.ChunkTree(tree, search.DefaultConfig()))
	res.Duration = time.Since(start)
	b.log.Info("built document", "doc", rel, "output", res.Output, "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

// BuildAll builds docs, or every discovered document when docs is empty,
// with bounded concurrency. A failing document does not stop the others.
// onDone, if set, is called after each document. The search index is
// rewritten at the end; a full build also drops deleted documents from it.
func (b *Builder) BuildAll(ctx context.Context, docs []string, onDone func(Result, error)) (Summary, error) {
	var summary Summary
	full := len(docs) == 0
	if full {
		var err error
		if docs, err = b.Discover(); err != nil {
			return summary, err
		}
	}
	if err := b.writeStatic(); err != nil {
		return summary, err
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(b.workers)
	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := b.BuildDocument(ctx, doc)
			mu.Lock()
			if err != nil {
				b.log.Error("document failed", "doc", doc, "error", err)
				summary.Failed = append(summary.Failed, Failure{Doc: doc, Error: err.Error()})
			} else {
				summary.Built = append(summary.Built, res)
			}
			mu.Unlock()
			if onDone != nil {
				onDone(res, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	if full {
		b.index.Retain(docs)
	}
	if err := b.index.Save(filepath.Join(b.outDir, search.FileName)); err != nil {
		return summary, err
	}

	sort.Slice(summary.Built, func(i, j int) bool { return summary.Built[i].Doc < summary.Built[j].Doc })
	sort.Slice(summary.Failed, func(i, j int) bool { return summary.Failed[i].Doc < summary.Failed[j].Doc })
	if len(summary.Failed) > 0 {
		return summary, fmt.Errorf("%d of %d documents failed", len(summary.Failed), len(docs))
	}
	return summary, nil
}

// Search queries the index of built pages.
func (b *Builder) Search(query string, limit int) []search.Hit {
	return b.index.Search(query, limit)
}

// Discover lists buildable documents under the source root, skipping
// hidden directories and the output tree.
func (b *Builder) Discover() ([]string, error) {
	var docs []string
	err := filepath.WalkDir(b.srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != b.srcDir && b.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !markup.IsSupported(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(b.srcDir, path)
		if err != nil {
			return err
		}
		docs = append(docs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover documents: %w", err)
	}
	sort.Strings(docs)
	return docs, nil
}

func (b *Builder) skipDir(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") || path == b.outDir
}

func (b *Builder) cleanDocPath(docPath string) (string, error) {
	rel := filepath.ToSlash(filepath.Clean(filepath.FromSlash(strings.TrimPrefix(docPath, "/"))))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %q is outside the source dir", ErrInvalidDocument, docPath)
	}
	if !markup.IsSupported(rel) {
		return "", fmt.Errorf("%w: unsupported type %q", ErrInvalidDocument, filepath.Ext(rel))
	}
	return rel, nil
}

func (b *Builder) writeStatic() error {
	path := filepath.Join(b.outDir, filepath.FromSlash(strings.TrimPrefix(render.StylesheetPath, "/")))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create static dir: %w", err)
	}
	if err := os.WriteFile(path, render.Stylesheet, 0o644); err != nil {
		return fmt.Errorf("write stylesheet: %w", err)
	}
	return nil
}
