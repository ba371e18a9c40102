// Package server exposes the absenced status surface over HTTP:
// health, controller state, per-trigger presence, and Prometheus
// metrics. It is read-only and optional; the watch loop never depends
// on it.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gntouts/absenced/internal/presence"
	"github.com/gntouts/absenced/internal/scan"
	"github.com/gntouts/absenced/internal/version"
)

// Config configures the status server.
type Config struct {
	Addr       string
	Controller *presence.Controller
	Tracker    *presence.Tracker

	// Interval and Scanner are echoed in the status payload.
	Interval time.Duration
	Scanner  string

	// Gatherer serves /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer

	Logger *zap.Logger
}

// Server is the absenced status HTTP server.
type Server struct {
	httpServer *http.Server
	cfg        Config
	mux        *http.ServeMux
}

// New creates a status server.
func New(cfg Config) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		cfg: cfg,
		mux: mux,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/v1/triggers", s.handleTriggers)
	s.mux.HandleFunc("GET /api/v1/triggers/{mac}", s.handleTrigger)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
}

// Start begins serving HTTP requests. It blocks until Shutdown.
func (s *Server) Start() error {
	s.cfg.Logger.Info("starting status server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cfg.Logger.Info("shutting down status server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying mux, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Absenced-Version", version.Short())
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth returns the daemon health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"service": "absenced",
		"version": version.Map(),
	})
}

// handleStatus returns the controller state and loop parameters.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state := s.cfg.Controller.Snapshot()
	writeJSON(w, map[string]any{
		"absent_count":     state.AbsentCount,
		"notified":         state.Notified,
		"retries":          s.cfg.Controller.Retries(),
		"interval_seconds": int(s.cfg.Interval.Seconds()),
		"scanner":          s.cfg.Scanner,
	})
}

// handleTriggers lists all tracked devices.
func (s *Server) handleTriggers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.cfg.Tracker.Statuses())
}

// handleTrigger returns one tracked device by MAC, in any common
// textual form.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("mac")
	mac, err := scan.NormalizeMAC(raw)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	status, ok := s.cfg.Tracker.Status(mac)
	if !ok {
		NotFound(w, fmt.Sprintf("%q is not a configured trigger", mac), r.URL.Path)
		return
	}
	writeJSON(w, status)
}
