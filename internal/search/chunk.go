// Package search builds the site search index: page text cut into
// passages tagged with their section breadcrumb and anchor.
package search

import (
	"strings"

	"github.com/dgallion1/docgallery/internal/doctree"
	"github.com/dgallion1/docgallery/internal/render"
)

// Config controls how page text is cut into entries.
type Config struct {
	ChunkWords   int // Target entry size in words.
	OverlapWords int // Words repeated at the start of the next entry.
	MinWords     int // Entries shorter than this are dropped.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkWords:   120,
		OverlapWords: 15,
		MinWords:     2,
	}
}

// Entry is one searchable passage of a page.
type Entry struct {
	Doc        string   `json:"doc"`
	Page       string   `json:"page"`
	Anchor     string   `json:"anchor,omitempty"`
	Breadcrumb []string `json:"breadcrumb,omitempty"`
	Text       string   `json:"text"`
}

// ChunkTree walks a parsed document and returns its index entries, one or
// more per section.
func ChunkTree(tree *doctree.DocTree, cfg Config) []Entry {
	if cfg.ChunkWords <= 0 {
		cfg.ChunkWords = 120
	}
	if cfg.OverlapWords < 0 || cfg.OverlapWords >= cfg.ChunkWords {
		cfg.OverlapWords = 0
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = 1
	}

	c := &chunker{
		cfg:  cfg,
		doc:  tree.Source,
		page: render.OutputPath(tree.Source),
	}
	c.section(tree.Children, nil, "")
	return c.entries
}

type chunker struct {
	cfg     Config
	doc     string
	page    string
	entries []Entry
}

// section emits the text directly under one section, then recurses into
// its subsections.
func (c *chunker) section(children []*doctree.DocNode, breadcrumb []string, anchor string) {
	var paras []string
	var subs []*doctree.DocNode
	for _, child := range children {
		if child.Kind == doctree.KindSection {
			subs = append(subs, child)
			continue
		}
		doctree.Walk(child, func(n *doctree.DocNode) bool {
			if n.Kind == doctree.KindRaw {
				return false
			}
			if n.Title != "" {
				paras = append(paras, n.Title)
			}
			if t := strings.TrimSpace(n.Text); t != "" {
				paras = append(paras, t)
			}
			return true
		})
	}

	for _, part := range splitText(paras, c.cfg.ChunkWords, c.cfg.OverlapWords) {
		if len(strings.Fields(part)) < c.cfg.MinWords {
			continue
		}
		c.entries = append(c.entries, Entry{
			Doc:        c.doc,
			Page:       c.page,
			Anchor:     anchor,
			Breadcrumb: copyBreadcrumb(breadcrumb),
			Text:       part,
		})
	}

	for _, s := range subs {
		bc := append(copyBreadcrumb(breadcrumb), s.Title)
		c.section(s.Children, bc, render.Slug(s.Title))
	}
}

// splitText packs paragraphs into passages of about target words. A
// paragraph longer than target is split on sentence boundaries.
func splitText(paras []string, target, overlap int) []string {
	var result []string
	var current []string
	words, fresh := 0, 0

	for _, para := range paras {
		n := len(strings.Fields(para))
		if n > target {
			if fresh > 0 {
				result = append(result, strings.Join(current, "\n\n"))
			}
			current, words, fresh = nil, 0, 0
			result = append(result, splitBySentences(para, target, overlap)...)
			continue
		}
		if words+n > target && fresh > 0 {
			text := strings.Join(current, "\n\n")
			result = append(result, text)
			current, words, fresh = nil, 0, 0
			if tail := overlapText(text, overlap); tail != "" {
				current = []string{tail}
				words = len(strings.Fields(tail))
			}
		}
		current = append(current, para)
		words += n
		fresh++
	}
	if fresh > 0 {
		result = append(result, strings.Join(current, "\n\n"))
	}
	return result
}

// splitBySentences breaks a long paragraph into sentence-aligned passages.
func splitBySentences(text string, target, overlap int) []string {
	var result []string
	var current strings.Builder
	words := 0

	for _, sent := range splitSentences(text) {
		n := len(strings.Fields(sent))
		if words+n > target && words > 0 {
			result = append(result, current.String())
			tail := overlapText(current.String(), overlap)
			current.Reset()
			words = 0
			if tail != "" {
				current.WriteString(tail)
				words = len(strings.Fields(tail))
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		words += n
	}
	if words > 0 {
		result = append(result, current.String())
	}
	return result
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// overlapText returns the last n words of text.
func overlapText(text string, n int) string {
	words := strings.Fields(text)
	if n <= 0 || len(words) <= n {
		return ""
	}
	return strings.Join(words[len(words)-n:], " ")
}

func copyBreadcrumb(bc []string) []string {
	if len(bc) == 0 {
		return nil
	}
	out := make([]string, len(bc))
	copy(out, bc)
	return out
}
