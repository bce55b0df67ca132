// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package monitor serves live progress and Prometheus metrics over HTTP
// while a run is in flight.
//
// # Endpoints
//
//	GET /health               liveness, always 200
//	GET /metrics              Prometheus exposition format
//	GET /v1/progress          progress of every tracked solver
//	GET /v1/progress/:solver  progress of one solver, 404 if unknown
//
// Solvers report through the ga.Observer returned by Tracker.Observer.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/polyfit/services/ga"
)

// =============================================================================
// Tracker
// =============================================================================

// SolverStatus is the latest known state of one solver.
type SolverStatus struct {
	Name        string   `json:"name"`
	Variant     string   `json:"variant"`
	Generation  int      `json:"generation"`
	BestFitness *float64 `json:"best_fitness"`
	Stagnation  int      `json:"stagnation"`
	ElapsedMs   int64    `json:"elapsed_ms"`
	Done        bool     `json:"done"`
	Reason      string   `json:"reason,omitempty"`
}

// Tracker collects progress from any number of solvers.
//
// Thread Safety: Safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	started time.Time
	solvers map[string]*SolverStatus
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		started: time.Now(),
		solvers: make(map[string]*SolverStatus),
	}
}

// Observer returns a ga.Observer that records progress under name.
func (t *Tracker) Observer(name string) ga.Observer {
	t.mu.Lock()
	if _, ok := t.solvers[name]; !ok {
		t.solvers[name] = &SolverStatus{Name: name}
	}
	t.mu.Unlock()

	return func(p ga.Progress) {
		t.mu.Lock()
		defer t.mu.Unlock()
		s := t.solvers[name]
		s.Variant = p.Variant
		s.Generation = p.Generation
		s.BestFitness = finite(p.BestFitness)
		s.Stagnation = p.Stagnation
		s.ElapsedMs = p.Elapsed.Milliseconds()
	}
}

// Finish marks the named solver as done with res.
func (t *Tracker) Finish(name string, res ga.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.solvers[name]
	if !ok {
		s = &SolverStatus{Name: name}
		t.solvers[name] = s
	}
	s.Variant = res.Variant
	s.Generation = res.Generations
	s.BestFitness = finite(res.Fitness)
	s.ElapsedMs = res.Elapsed.Milliseconds()
	s.Done = true
	s.Reason = string(res.Reason)
}

// Snapshot returns every solver's status sorted by name.
func (t *Tracker) Snapshot() []SolverStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]SolverStatus, 0, len(t.solvers))
	for _, s := range t.solvers {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the status of one solver.
func (t *Tracker) Get(name string) (SolverStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.solvers[name]
	if !ok {
		return SolverStatus{}, false
	}
	return *s, true
}

// Uptime returns the time since the tracker was created.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.started)
}

// finite returns nil for NaN and Inf, which JSON cannot carry.
func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// =============================================================================
// Server
// =============================================================================

// Server is the monitor's HTTP server.
type Server struct {
	tracker *Tracker
	router  *gin.Engine
	srv     *http.Server
	logger  *slog.Logger

	mu   sync.Mutex
	addr string
}

// NewServer builds the router for tracker. A nil logger uses
// slog.Default().
func NewServer(tracker *Tracker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		tracker: tracker,
		logger:  logger.With(slog.String("component", "monitor")),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("polyfit-monitor"))

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.GET("/progress", s.handleProgress)
	v1.GET("/progress/:solver", s.handleSolver)

	s.router = r
	return s
}

// Handler returns the router for use with httptest or a custom server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves until ctx is cancelled.
//
// Description:
//
//	Binds synchronously so address errors surface here, then serves in a
//	background goroutine. Cancelling ctx shuts the server down with a
//	five second grace period.
//
// Inputs:
//   - ctx: Controls the server lifetime.
//   - addr: Listen address, e.g. ":9090" or "127.0.0.1:0".
//
// Outputs:
//   - error: Non-nil if the address cannot be bound.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("monitor listen %s: %w", addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.srv = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	srv := s.srv
	s.mu.Unlock()

	go func() {
		s.logger.Info("monitor started", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitor server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()
	return nil
}

// Addr returns the bound address after Start, or "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "polyfit",
		"uptime_seconds": s.tracker.Uptime().Seconds(),
	})
}

func (s *Server) handleProgress(c *gin.Context) {
	solvers := s.tracker.Snapshot()
	done := 0
	for _, st := range solvers {
		if st.Done {
			done++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"solvers": solvers,
		"done":    done,
		"total":   len(solvers),
	})
}

func (s *Server) handleSolver(c *gin.Context) {
	name := c.Param("solver")
	st, ok := s.tracker.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown solver", "solver": name})
		return
	}
	c.JSON(http.StatusOK, st)
}
