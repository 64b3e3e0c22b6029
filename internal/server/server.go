// Package server provides the HTTP API for Kioku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/persist"
	"github.com/hyperjump/kioku/internal/search"
	"github.com/hyperjump/kioku/internal/store"
	"go.uber.org/zap"
)

// Server is the HTTP server for the Kioku API.
type Server struct {
	engine    *search.Engine
	store     *store.Store
	persister *persist.Manager
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
	startedAt time.Time
}

// NewServer creates a server with the given dependencies. persister may be
// nil when persistence is disabled.
func NewServer(
	engine *search.Engine,
	st *store.Store,
	persister *persist.Manager,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:    engine,
		store:     st,
		persister: persister,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/search/context", s.handleSearchWithContext)
	r.Post("/api/v1/records", s.handleAddRecord)
	r.Get("/api/v1/records/{id}", s.handleGetRecord)
	r.Delete("/api/v1/records/{id}", s.handleDeleteRecord)
	r.Post("/api/v1/ingest", s.handleIngest)
	r.Post("/api/v1/persist", s.handlePersist)
	r.Post("/api/v1/restore", s.handleRestore)
	r.Get("/api/v1/metrics", s.handleMetrics)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.startedAt = time.Now()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
