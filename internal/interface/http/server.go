// Package http exposes the operational endpoints of the observer process:
// liveness, readiness and event bus counters.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alem-hub/xp-observer/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8081".
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8081",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// MetricsSource returns the current event bus counters. It may return nil
// when metrics are disabled.
type MetricsSource func() *messaging.EventBusMetrics

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server serves the operational endpoints.
type Server struct {
	health     *CompositeHealthChecker
	metrics    MetricsSource
	logger     *slog.Logger
	router     *http.ServeMux
	httpServer *http.Server

	mu      sync.Mutex
	running bool
}

// NewServer creates a server. metrics may be nil.
func NewServer(config Config, health *CompositeHealthChecker, metrics MetricsSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		health:  health,
		metrics: metrics,
		logger:  logger.With("component", "http"),
		router:  http.NewServeMux(),
	}

	s.router.HandleFunc("GET /healthz", s.handleLive)
	s.router.HandleFunc("GET /readyz", s.handleReady)
	s.router.HandleFunc("GET /metrics", s.handleMetrics)

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens in the background. Listen errors other than a normal
// shutdown are logged.
func (s *Server) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.health.Check(r.Context())

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

type metricsResponse struct {
	Published            int64            `json:"published"`
	HandlerExecutions    int64            `json:"handler_executions"`
	HandlerFailures      int64            `json:"handler_failures"`
	AvgHandlerDurationMS float64          `json:"avg_handler_duration_ms"`
	PublishedByEvent     map[string]int64 `json:"published_by_event,omitempty"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m *messaging.EventBusMetrics
	if s.metrics != nil {
		m = s.metrics()
	}
	if m == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "metrics are disabled"})
		return
	}

	snap := m.Snapshot()
	writeJSON(w, http.StatusOK, metricsResponse{
		Published:            snap.TotalPublished,
		HandlerExecutions:    snap.TotalHandlerExecs,
		HandlerFailures:      snap.HandlerFailures,
		AvgHandlerDurationMS: float64(snap.AverageHandlerDuration) / float64(time.Millisecond),
		PublishedByEvent:     snap.PublishedByEvent,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
