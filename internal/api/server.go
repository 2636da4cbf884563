package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docx2dita/internal/config"
	"github.com/dgallion1/docx2dita/internal/decide"
	"github.com/dgallion1/docx2dita/internal/pipeline"
	"github.com/dgallion1/docx2dita/internal/substitute"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docx2dita.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	claude       *decide.Claude
	prefs        *substitute.Store
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. claude may be nil when
// no model is configured.
func NewServer(orch *pipeline.Orchestrator, claude *decide.Claude, prefs *substitute.Store, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		claude:       claude,
		prefs:        prefs,
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

		r.Post("/api/convert", s.handleConvert)
		r.Post("/api/convert/batch", s.handleBatchConvert)
		r.Get("/api/convert/{jobID}/status", s.handleConvertStatus)
		r.Get("/api/convert/{jobID}/result", s.handleConvertResult)

		r.Get("/api/preferences", s.handleGetPreferences)
		r.Put("/api/preferences", s.handlePutPreferences)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
