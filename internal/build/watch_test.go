package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWatcher_RebuildsChangedDocument(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "index.md"), "# First\n")
	writeFile(t, filepath.Join(src, "other.md"), "# Other\n")
	b := newTestBuilder(t, src)

	w := NewWatcher(b, 20*time.Millisecond)
	rebuilt := make(chan Summary, 8)
	w.rebuilt = func(s Summary, _ error) { rebuilt <- s }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	select {
	case s := <-rebuilt:
		if len(s.Built) != 2 {
			t.Fatalf("expected initial full build, got %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no initial build")
	}

	writeFile(t, filepath.Join(src, "index.md"), "# Second\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-rebuilt:
			if len(s.Built) != 1 || s.Built[0].Doc != "index.md" {
				continue
			}
			page, err := os.ReadFile(filepath.Join(b.OutputDir(), "index.html"))
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(page), "<title>Second</title>") {
				t.Errorf("expected rebuilt page, got:\n%s", page)
			}
			return
		case <-deadline:
			t.Fatal("no rebuild after change")
		}
	}
}

func TestWatcher_Ignored(t *testing.T) {
	src := t.TempDir()
	b := newTestBuilder(t, src)
	w := NewWatcher(b, 0)

	if w.debounce != DefaultDebounce {
		t.Errorf("expected default debounce, got %v", w.debounce)
	}
	tests := map[string]bool{
		filepath.Join(b.OutputDir(), "index.html"): true,
		b.OutputDir():                         true,
		filepath.Join(src, ".index.md.swp"):   true,
		filepath.Join(src, "index.md"):        false,
		filepath.Join(src, "_build_notes.md"): false,
	}
	for path, want := range tests {
		if got := w.ignored(path); got != want {
			t.Errorf("ignored(%q) = %v, want %v", path, got, want)
		}
	}
}
