// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the research workflow and its outputs over HTTP.
//
// Routes:
//   - POST /api/research           run a research job
//   - GET  /api/reports            list reports on disk
//   - POST /api/clear-reports      remove all outputs (DELETE also accepted)
//   - GET  /metrics                tracker metrics, when configured
//   - GET  /health                 liveness
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/logger"
	"github.com/kadirpekel/crewlink/pkg/observability"
	"github.com/kadirpekel/crewlink/pkg/research"
	"github.com/kadirpekel/crewlink/pkg/tracker"
)

// Runtime is the part of the server replaced on configuration reload.
type Runtime struct {
	Workflow *research.Workflow
	Backend  tracker.Backend

	// Start describes each run. It is called once per request.
	Start func() tracker.StartOptions

	// TrackerOptions are passed to every tracker the server opens.
	TrackerOptions []tracker.Option
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithTracer sets the tracer for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// WithMetrics serves h at path.
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metrics = h
	}
}

// WithClock replaces time.Now for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// Server is the HTTP API.
type Server struct {
	cfg         config.ServerConfig
	log         *slog.Logger
	tracer      trace.Tracer
	metricsPath string
	metrics     http.Handler
	now         func() time.Time

	mu      sync.RWMutex
	runtime Runtime

	// runMu serializes research runs; outputs share one directory.
	runMu sync.Mutex

	httpServer *http.Server
}

// New creates a server.
func New(cfg config.ServerConfig, rt Runtime, opts ...Option) (*Server, error) {
	if err := validateRuntime(rt); err != nil {
		return nil, err
	}
	cfg.SetDefaults()

	s := &Server{
		cfg:     cfg,
		runtime: rt,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.GetLogger()
	}
	if s.tracer == nil {
		s.tracer = observability.Tracer()
	}
	return s, nil
}

func validateRuntime(rt Runtime) error {
	if rt.Workflow == nil {
		return fmt.Errorf("research workflow is required")
	}
	if rt.Backend == nil {
		return fmt.Errorf("tracking backend is required")
	}
	if rt.Start == nil {
		return fmt.Errorf("run start options are required")
	}
	return nil
}

// Update swaps the runtime. Runs in progress finish on the old one.
func (s *Server) Update(rt Runtime) error {
	if err := validateRuntime(rt); err != nil {
		return err
	}
	s.mu.Lock()
	s.runtime = rt
	s.mu.Unlock()
	s.log.Info("Server runtime updated")
	return nil
}

func (s *Server) current() Runtime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runtime
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(observability.HTTPMiddleware(s.tracer, s.log))
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/research", s.handleResearch)
		r.Get("/reports", s.handleReports)
		r.Post("/clear-reports", s.handleClearReports)
		r.Delete("/clear-reports", s.handleClearReports)
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, s.metricsPath, s.metrics)
		s.log.Info("Metrics endpoint enabled", "path", s.metricsPath)
	}
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	s.log.Info("HTTP server starting", "address", s.cfg.Address())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.WithoutCancel(ctx))
	}
}

// Shutdown stops accepting requests and waits for running ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.log.Info("HTTP server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origins := s.cfg.AllowedOrigins
		if origin := r.Header.Get("Origin"); origin != "" && len(origins) > 0 {
			if slices.Contains(origins, "*") || slices.Contains(origins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
