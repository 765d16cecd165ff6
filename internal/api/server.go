// Package api exposes the extraction pipeline and the reference corpus over
// HTTP. All /api routes require a Bearer key; /health is public.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cpt-tools/cptgest/internal/config"
	"github.com/cpt-tools/cptgest/internal/corpus"
	"github.com/cpt-tools/cptgest/internal/extract"
	"github.com/cpt-tools/cptgest/internal/pipeline"
)

// Server is the HTTP API server.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	gemini       *extract.GeminiClient
	store        corpus.Store
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. store may be nil when
// no corpus backend is configured; corpus routes then return 503.
func NewServer(orch *pipeline.Orchestrator, gemini *extract.GeminiClient, store corpus.Store, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		gemini:       gemini,
		store:        store,
		log:          log,
		cfg:          cfg,
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

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/extract", s.handleExtract)
		r.Get("/api/extract/{jobID}/status", s.handleExtractStatus)
		r.Get("/api/extract/{jobID}/records", s.handleExtractRecords)
		r.Get("/api/stats/llm", s.handleLLMStats)

		r.Post("/api/corpus/files", s.handleCorpusUpload)
		r.Get("/api/corpus/files", s.handleCorpusList)
		r.Delete("/api/corpus/files/{fileID}", s.handleCorpusDelete)
		r.Get("/api/corpus/search", s.handleCorpusSearch)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
