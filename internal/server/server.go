// Package server exposes the qcal REST API: topology management, schedule
// previews, and calibration sessions.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/qcal/internal/config"
	"github.com/me/qcal/internal/parser"
	"github.com/me/qcal/internal/session"
	"github.com/me/qcal/internal/store"
)

// Server is the qcald REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	parser    *parser.Parser
	store     store.Store
	runner    *session.Runner
}

// New creates a Server with all routes registered. runner may be nil when the
// process serves read-only endpoints (e.g. in tests without a backend).
func New(cfg config.ServerConfig, st store.Store, runner *session.Runner, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		parser:    parser.New(logger),
		store:     st,
		runner:    runner,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/topologies", func(r chi.Router) {
			r.Get("/", s.handleListTopologies)
			r.Post("/", s.handleUploadTopology)
			r.Get("/{chipID}", s.handleGetTopology)
		})

		r.Post("/schedule/preview", s.handleSchedulePreview)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleStartSession)
			r.Route("/{executionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Get("/history", s.handleGetSessionHistory)
			})
		})
	})
}
