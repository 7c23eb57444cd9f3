// Package httpserver exposes metrics, health probes and a small read-only
// API over the engine's state.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crossvenue/arb/internal/ledger"
	"github.com/crossvenue/arb/pkg/healthprobe"
	"github.com/crossvenue/arb/pkg/types"
)

// PairLister exposes the verified pair set.
type PairLister interface {
	Snapshot() []types.VerifiedPair
}

// PairController accepts pause/resume commands for verified pairs.
type PairController interface {
	Pause(id string) error
	Resume(id string) error
}

// PositionLister exposes current positions and PnL.
type PositionLister interface {
	Positions() []ledger.Position
	TotalPnl() (realized, unrealized float64)
}

// Server provides HTTP endpoints for metrics, health checks and state.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Pairs         PairLister
	PairControl   PairController
	Ledger        PositionLister
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	if cfg.Pairs != nil {
		r.Get("/api/pairs", handlePairs(cfg.Pairs, cfg.Logger))
	}
	if cfg.PairControl != nil {
		r.Post("/api/pairs/{id}/pause", handlePairStatus(cfg.PairControl.Pause, "paused", cfg.Logger))
		r.Post("/api/pairs/{id}/resume", handlePairStatus(cfg.PairControl.Resume, "active", cfg.Logger))
	}
	if cfg.Ledger != nil {
		r.Get("/api/positions", handlePositions(cfg.Ledger, cfg.Logger))
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{server: server, logger: cfg.Logger}
}

// Start starts the HTTP server. Blocking; returns when the server stops.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
