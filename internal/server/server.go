// Package server provides the HTTP server and routing for turbinewatch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/windfleet/turbinewatch/internal/database"
	"github.com/windfleet/turbinewatch/internal/pipeline"
	"github.com/windfleet/turbinewatch/internal/storage"
)

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool
	DB      *database.DB
	Store   *storage.Store
	Runner  *pipeline.Runner
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	db     *database.DB
	store  *storage.Store
	runner *pipeline.Runner
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		db:     cfg.DB,
		store:  cfg.Store,
		runner: cfg.Runner,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))

	if cfg.DevMode {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 150 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system/status", s.handleSystemStatus)
		r.Get("/turbines/{turbineID}/summaries", s.handleTurbineSummaries)
		r.Get("/anomalies", s.handleAnomalies)
		r.Post("/ingest", s.handleIngest)
	})
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

// Router exposes the router for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
