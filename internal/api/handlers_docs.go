package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dgallion1/docgallery/internal/render"
	"github.com/dgallion1/docgallery/internal/search"
)

// handleListDocuments lists the source documents and whether each has a page.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.site.Discover()
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		page := render.OutputPath(d)
		_, statErr := os.Stat(filepath.Join(s.site.OutputDir(), filepath.FromSlash(page)))
		out = append(out, map[string]any{
			"doc":   d,
			"page":  page,
			"url":   "/site/" + page,
			"built": statErr == nil,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": out})
}

// handleSearch queries the index of built pages.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		jsonError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	hits := s.site.Search(q, limit)
	if hits == nil {
		hits = []search.Hit{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"query": q, "hits": hits})
}
