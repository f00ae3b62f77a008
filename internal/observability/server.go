// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package observability serves Prometheus metrics and health probes on a
// listener separate from the journal API.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// DefaultCheckTimeout bounds a single readiness probe.
const DefaultCheckTimeout = 2 * time.Second

// Check is a named readiness probe. Probe returns nil when the dependency
// can serve requests.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Server exposes /metrics, /healthz/liveness and /healthz/readiness.
type Server struct {
	addr     string
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	timeout  time.Duration

	mu       sync.RWMutex
	checks   []Check
	listener net.Listener
	http     *http.Server
	running  atomic.Bool
}

// NewServer creates a server for addr ("host:port"). Checks may also be added
// later with AddCheck. A nil logger uses slog.Default.
func NewServer(addr string, logger *slog.Logger, checks ...Check) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Server{
		addr:     addr,
		logger:   logger,
		registry: registry,
		metrics:  NewMetrics(registry),
		timeout:  DefaultCheckTimeout,
		checks:   append([]Check(nil), checks...),
	}
}

// Metrics returns the journal metrics registered on this server.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// AddCheck registers readiness probes. Safe to call while serving.
func (s *Server) AddCheck(checks ...Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, checks...)
}

// Start listens on the configured address and serves in the background.
// Serve failures after Start returns are sent on the returned channel, which
// is closed once the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("OBSERVABILITY_RUNNING").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	s.mu.Lock()
	s.listener = listener
	s.http = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server error", "error", err)
			errCh <- err
		}
	}()
	return errCh, nil
}

// Handler returns the metrics and health endpoints without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
	return mux
}

// Stop shuts the server down. Stopping a server that is not running is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.mu.RLock()
	srv := s.http
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.Code("OBSERVABILITY_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Ready runs every check and returns one error per failing check, in
// registration order.
func (s *Server) Ready(ctx context.Context) []error {
	s.mu.RLock()
	checks := append([]Check(nil), s.checks...)
	s.mu.RUnlock()

	var failed []error
	for _, c := range checks {
		probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := c.Probe(probeCtx)
		cancel()
		if err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	return failed
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// handleReadiness answers 200 when every check passes, otherwise 503 with one
// line per failing check.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	failed := s.Ready(r.Context())
	if len(failed) == 0 {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
		return
	}

	lines := make([]string, 0, len(failed))
	for _, err := range failed {
		lines = append(lines, err.Error())
	}
	s.logger.WarnContext(r.Context(), "readiness check failed", "failures", lines)
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready\n" + strings.Join(lines, "\n") + "\n"))
}
