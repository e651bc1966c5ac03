package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileName is the index written at the output root.
const FileName = "searchindex.json"

// DefaultLimit caps Search results when no limit is given.
const DefaultLimit = 20

// Index holds the entries of every built page, keyed by source document.
type Index struct {
	mu   sync.RWMutex
	docs map[string][]Entry
}

// Hit is an entry that matched a query.
type Hit struct {
	Entry
	Score int `json:"score"`
}

type indexFile struct {
	Entries []Entry `json:"entries"`
}

func NewIndex() *Index {
	return &Index{docs: make(map[string][]Entry)}
}

// Load reads an index written by Save. A missing file yields an empty index.
func Load(path string) (*Index, error) {
	x := NewIndex()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return x, nil
	}
	if err != nil {
		return x, fmt.Errorf("read search index: %w", err)
	}
	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return x, fmt.Errorf("decode search index %s: %w", path, err)
	}
	for _, e := range f.Entries {
		x.docs[e.Doc] = append(x.docs[e.Doc], e)
	}
	return x, nil
}

// Set replaces the entries of one document.
func (x *Index) Set(doc string, entries []Entry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.docs[doc] = entries
}

// Retain drops every document not in docs.
func (x *Index) Retain(docs []string) {
	keep := make(map[string]bool, len(docs))
	for _, d := range docs {
		keep[d] = true
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for d := range x.docs {
		if !keep[d] {
			delete(x.docs, d)
		}
	}
}

// Len returns the number of entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, es := range x.docs {
		n += len(es)
	}
	return n
}

// Save writes the index as JSON, ordered by document so rebuilds of an
// unchanged site produce the same file.
func (x *Index) Save(path string) error {
	x.mu.RLock()
	docs := make([]string, 0, len(x.docs))
	for d := range x.docs {
		docs = append(docs, d)
	}
	sort.Strings(docs)
	f := indexFile{Entries: []Entry{}}
	for _, d := range docs {
		f.Entries = append(f.Entries, x.docs[d]...)
	}
	x.mu.RUnlock()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode search index: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".searchindex-*")
	if err != nil {
		return fmt.Errorf("write search index: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write search index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write search index: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write search index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write search index: %w", err)
	}
	return nil
}

// Search returns entries containing every query term, case-insensitively.
// Each occurrence scores one point; a term in the breadcrumb scores five.
func (x *Index) Search(query string, limit int) []Hit {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	x.mu.RLock()
	var hits []Hit
	for _, es := range x.docs {
	entries:
		for _, e := range es {
			text := strings.ToLower(e.Text)
			crumbs := strings.ToLower(strings.Join(e.Breadcrumb, " "))
			score := 0
			for _, t := range terms {
				n := strings.Count(text, t)
				if strings.Contains(crumbs, t) {
					n += 5
				}
				if n == 0 {
					continue entries
				}
				score += n
			}
			hits = append(hits, Hit{Entry: e, Score: score})
		}
	}
	x.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Doc != b.Doc {
			return a.Doc < b.Doc
		}
		return a.Anchor < b.Anchor
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
