package build

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dgallion1/docgallery/internal/markup"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for edits to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watcher rebuilds documents when files under the source root change.
type Watcher struct {
	builder  *Builder
	debounce time.Duration

	// rebuilt is called after each rebuild; tests hook it.
	rebuilt func(Summary, error)
}

// NewWatcher returns a watcher for b.
func NewWatcher(b *Builder, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{builder: b, debounce: debounce}
}

// Run builds the whole site once, then rebuilds on change until ctx is done.
// A changed document rebuilds only itself. Any other change (an example
// script or figure) rebuilds everything since any page may include it.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := w.addRecursive(fw, w.builder.srcDir); err != nil {
		return err
	}

	w.rebuild(ctx, nil)

	pending := make(map[string]bool)
	all := false
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := w.addRecursive(fw, event.Name); err != nil {
						w.builder.log.Warn("watch new directory failed", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			rel, err := filepath.Rel(w.builder.srcDir, event.Name)
			if err != nil {
				continue
			}
			if markup.IsSupported(rel) && event.Op&fsnotify.Rename == 0 {
				pending[filepath.ToSlash(rel)] = true
			} else {
				all = true
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			var docs []string
			if !all {
				for d := range pending {
					docs = append(docs, d)
				}
				sort.Strings(docs)
			}
			w.builder.log.Info("change detected, rebuilding", "documents", len(docs), "full", all)
			w.rebuild(ctx, docs)
			clear(pending)
			all = false

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.builder.log.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context, docs []string) {
	summary, err := w.builder.BuildAll(ctx, docs, nil)
	if err != nil {
		w.builder.log.Error("rebuild failed", "error", err)
	}
	if w.rebuilt != nil {
		w.rebuilt(summary, err)
	}
}

// ignored reports whether path is in the output tree or a hidden entry.
func (w *Watcher) ignored(path string) bool {
	if path == w.builder.outDir || strings.HasPrefix(path, w.builder.outDir+string(filepath.Separator)) {
		return true
	}
	return strings.HasPrefix(filepath.Base(path), ".")
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.builder.srcDir && w.builder.skipDir(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
