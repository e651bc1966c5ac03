package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docgallery/internal/build"
	"github.com/dgallion1/docgallery/internal/config"
	"github.com/dgallion1/docgallery/internal/doctree"
	"github.com/dgallion1/docgallery/internal/search"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Queue runs build jobs asynchronously.
type Queue interface {
	Submit(job *build.Job) error
	GetJob(id string) *build.Job
	QueueDepth() int
	JobCount() int
}

// Site renders and lists the documents of one source tree.
type Site interface {
	Render(docPath string, src []byte) (*doctree.DocTree, []byte, error)
	Discover() ([]string, error)
	Search(query string, limit int) []search.Hit
	OutputDir() string
}

// Server is the HTTP API server for docgallery.
type Server struct {
	router chi.Router
	queue  Queue
	site   Site
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(queue Queue, site Site, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		queue: queue,
		site:  site,
		log:   log,
		cfg:   cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Handle("/site/*", http.StripPrefix("/site", http.FileServer(http.Dir(s.site.OutputDir()))))

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/builds", s.handleBuild)
		r.Get("/api/builds/{jobID}/status", s.handleBuildStatus)
		r.Post("/api/render", s.handleRender)
		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/search", s.handleSearch)
		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
