package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgallion1/docgallery/internal/build"
)

type renderRequest struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

// handleRender renders a document body posted by the caller as if it lived
// at path in the source tree, and returns the HTML page.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRenderBytes)

	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", s.cfg.MaxRenderBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}

	tree, page, err := s.site.Render(req.Path, []byte(req.Source))
	if err != nil {
		if errors.Is(err, build.ErrInvalidDocument) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Warn("render failed", "doc", req.Path, "error", err)
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Document-Title", tree.Title)
	w.Write(page)
}
