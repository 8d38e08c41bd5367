// Package server exposes the HTTP API: the public gallery listing, signed
// item mutations and the signed admin surface. Responses carry a stable
// error kind and never leak internal detail.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/drivehit/gallery-sync/internal/port"
	"github.com/drivehit/gallery-sync/internal/service/catalog"
	"github.com/drivehit/gallery-sync/internal/service/reconciler"
	"github.com/drivehit/gallery-sync/internal/util/ratelimiter"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr    string
	Secret      string
	AdminEmails []string
	// Freshness bounds how old a signed request timestamp may be
	Freshness  time.Duration
	RateMax    int
	RateWindow time.Duration

	PageSizeDefault int
	PageSizeMax     int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:        "0.0.0.0:8080",
		Freshness:       5 * time.Minute,
		RateMax:         60,
		RateWindow:      time.Minute,
		PageSizeDefault: catalog.DefaultPageSize,
		PageSizeMax:     catalog.MaxPageSize,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
	}
}

// Sweeper triggers an immediate reconciliation sweep
type Sweeper interface {
	RunOnce(ctx context.Context) (*reconciler.Result, error)
}

// Server represents the HTTP API server
type Server struct {
	config  *Config
	catalog *catalog.Catalog
	sweeper Sweeper
	store   port.Store
	logger  *zap.Logger
	server  *http.Server
}

// New creates a new HTTP server
func New(cfg *Config, cat *catalog.Catalog, sweeper Sweeper, store port.Store, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.PageSizeDefault <= 0 {
		cfg.PageSizeDefault = catalog.DefaultPageSize
	}
	if cfg.PageSizeMax <= 0 {
		cfg.PageSizeMax = catalog.MaxPageSize
	}

	s := &Server{
		config:  cfg,
		catalog: cat,
		sweeper: sweeper,
		store:   store,
		logger:  logger,
	}

	limiter := ratelimiter.NewWindow(cfg.RateMax, cfg.RateWindow)

	r := chi.NewRouter()
	r.Use(LoggingMiddleware(logger))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.RateLimitMiddleware(limiter))

		// Published items are publicly readable
		r.Get("/items", s.handleListItems)

		// Mutations require a signed request
		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware)
			r.Post("/items/{id}/status", s.handleSetStatus)
			r.Post("/items/{id}/engagement", s.handleEngagement)
		})

		// Admin surface requires a signed request from an allow-listed email
		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware, s.AdminMiddleware)
			r.Get("/admin/items", s.handleAdminListItems)
			r.Delete("/admin/items/{id}", s.handleAdminDelete)
			r.Post("/admin/sweep", s.handleAdminSweep)
			r.Get("/admin/dead-letters", s.handleAdminDeadLetters)
		})
	})

	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler returns the router, used by tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
