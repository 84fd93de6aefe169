// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package observability serves Prometheus metrics and health probes on a
// port separate from the API.
package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"

	"github.com/warden-auth/warden/pkg/errutil"
)

// probeTimeout bounds one readiness request, across all checks.
const probeTimeout = 2 * time.Second

// Check is a named readiness dependency. Probe returns nil when the
// dependency can serve traffic.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Report is the JSON body of the probe endpoints.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Server exposes /metrics, /healthz/liveness and /healthz/readiness.
type Server struct {
	addr     string
	registry *prometheus.Registry
	metrics  *Metrics
	checks   []Check

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a server with its own registry. addr is "host:port";
// ":0" picks a free port. Readiness fails when any check fails.
func NewServer(addr string, checks ...Check) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  NewMetrics(registry),
		checks:   checks,
	}
}

// Metrics returns the HTTP metrics registered on this server.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Registry returns the server's Prometheus registry.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("GET /healthz/liveness", func(w http.ResponseWriter, _ *http.Request) {
		writeReport(w, http.StatusOK, Report{Status: "ok"})
	})
	mux.HandleFunc("GET /healthz/readiness", s.handleReadiness)
	return mux
}

// Start listens and serves in the background. The returned channel carries
// a serve failure and is closed once the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("OBSERVABILITY_ALREADY_RUNNING").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	srv := &http.Server{Handler: s.routes(), ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	s.listener, s.httpServer = listener, srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("observability server failed", "error", err)
			errCh <- err
		}
	}()

	slog.Info("observability server listening", "addr", listener.Addr().String(), "checks", len(s.checks))
	return errCh, nil
}

// Stop shuts the server down. It is a no-op when the server is not running.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if err := srv.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.Code("OBSERVABILITY_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Readiness runs every check concurrently and reports each result.
func (s *Server) Readiness(ctx context.Context) (Report, bool) {
	results := make([]string, len(s.checks))
	var g errgroup.Group
	for i, c := range s.checks {
		g.Go(func() error {
			if err := c.Probe(ctx); err != nil {
				slog.WarnContext(ctx, "readiness check failed", "check", c.Name, "error", err)
				results[i] = failureCode(err)
				return err
			}
			results[i] = "ok"
			return nil
		})
	}
	ready := g.Wait() == nil

	report := Report{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	if !ready {
		report.Status = "not ready"
	}
	for i, c := range s.checks {
		report.Checks[c.Name] = results[i]
	}
	return report, ready
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	report, ready := s.Readiness(ctx)
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeReport(w, status, report)
}

// failureCode exposes the oops code of a failed check, never its message.
func failureCode(err error) string {
	if code := errutil.Code(err); code != "" {
		return code
	}
	return "failed"
}

func writeReport(w http.ResponseWriter, status int, report Report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // the prober may have gone away
	json.NewEncoder(w).Encode(report)
}
