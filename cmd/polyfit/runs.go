// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/polyfit/pkg/ux"
	"github.com/AleutianAI/polyfit/services/dataset"
	"github.com/AleutianAI/polyfit/services/ga"
	"github.com/AleutianAI/polyfit/services/history"
	"github.com/AleutianAI/polyfit/services/monitor"
)

// Backend names accepted by --backend.
const (
	backendSerial   = "serial"
	backendParallel = "parallel"
)

// runFlags are the flags shared by solve, cluster and worker.
type runFlags struct {
	points         int
	population     int
	maxGenerations int
	target         float64
	lanes          int
	backend        string
	metricsAddr    string
	store          string
	noHistory      bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.points, "points", 0, "number of samples to read (overrides config)")
	fs.IntVar(&f.population, "population", 0, "population size, even (overrides config)")
	fs.IntVar(&f.maxGenerations, "max-generations", 0, "generation limit (overrides config)")
	fs.Float64Var(&f.target, "target", 0, "target fitness (overrides config)")
	fs.IntVar(&f.lanes, "lanes", 0, "parallel backend lanes, 0 = GOMAXPROCS (overrides config)")
	fs.StringVar(&f.backend, "backend", backendSerial, "execution backend: serial or parallel")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /health, /metrics and /v1/progress on this address")
	fs.StringVar(&f.store, "store", "", "history directory (overrides config)")
	fs.BoolVar(&f.noHistory, "no-history", false, "do not record this run")
}

// gaConfig applies changed flags to the loaded GA config and validates it.
func (a *app) gaConfig(cmd *cobra.Command, f *runFlags) (ga.Config, error) {
	cfg := a.cfg.GA
	fs := cmd.Flags()
	if fs.Changed("points") {
		cfg.Points = f.points
	}
	if fs.Changed("population") {
		cfg.Population = f.population
	}
	if fs.Changed("max-generations") {
		cfg.MaxGenerations = f.maxGenerations
	}
	if fs.Changed("target") {
		cfg.TargetError = f.target
	}
	if fs.Changed("lanes") {
		cfg.Lanes = f.lanes
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newBackend returns a fresh backend; each solver needs its own.
func newBackend(name string, lanes int) (ga.Backend, error) {
	factory, err := backendFactory(name, lanes)
	if err != nil {
		return nil, err
	}
	return factory(), nil
}

// backendFactory resolves name once and returns a constructor for fresh
// backends, one per solver.
func backendFactory(name string, lanes int) (func() ga.Backend, error) {
	switch name {
	case backendSerial, "":
		return func() ga.Backend { return ga.NewSerialBackend() }, nil
	case backendParallel:
		return func() ga.Backend { return ga.NewParallelBackend(lanes) }, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", name, backendSerial, backendParallel)
	}
}

// loadData reads cfg.Points samples from path.
func (a *app) loadData(path string, cfg ga.Config) (dataset.Dataset, error) {
	data, err := dataset.ReadFile(path, cfg.Points)
	if err != nil {
		return dataset.Dataset{}, err
	}
	lo, hi := data.Bounds()
	a.logger.Info("dataset loaded",
		slog.String("path", path),
		slog.Int("points", data.Len()),
		slog.Float64("x_min", lo),
		slog.Float64("x_max", hi),
	)
	return data, nil
}

// baseline computes the least-squares reference fit, or nil on failure.
func (a *app) baseline(data dataset.Dataset, length int) *dataset.Baseline {
	b, err := dataset.LeastSquares(data, length)
	if err != nil {
		a.logger.Warn("least-squares baseline unavailable", slog.String("error", err.Error()))
		return nil
	}
	return &b
}

// metricsAddr returns --metrics-addr, falling back to monitor.addr from
// the config file.
func (a *app) metricsAddr(cmd *cobra.Command, f *runFlags) string {
	if cmd.Flags().Changed("metrics-addr") {
		return f.metricsAddr
	}
	return a.cfg.Monitor.Addr
}

// startMonitor creates a tracker and, when addr is set, serves it until
// ctx ends.
func (a *app) startMonitor(ctx context.Context, addr string) *monitor.Tracker {
	tracker := monitor.NewTracker()
	if addr == "" {
		return tracker
	}
	gin.SetMode(gin.ReleaseMode)
	srv := monitor.NewServer(tracker, a.logger.Slog())
	if err := srv.Start(ctx, addr); err != nil {
		a.logger.Warn("monitor not started", slog.String("error", err.Error()))
		return tracker
	}
	a.printer.Info(fmt.Sprintf("monitor listening on http://%s", srv.Addr()))
	return tracker
}

// record saves run to the history store unless disabled. Failures are
// logged, not returned: a finished run is still reported.
func (a *app) record(ctx context.Context, f *runFlags, run *history.Run) {
	if f.noHistory || !a.cfg.History.Enabled {
		return
	}
	cfg := a.cfg.History.Config
	if f.store != "" {
		cfg.Path = f.store
	}
	cfg.Logger = a.logger.Slog()

	store, err := history.Open(cfg)
	if err != nil {
		a.logger.Warn("history store unavailable, run not recorded", slog.String("error", err.Error()))
		return
	}
	defer store.Close()
	if err := store.Save(ctx, run); err != nil {
		a.logger.Warn("run not recorded", slog.String("error", err.Error()))
		return
	}
	a.logger.Info("run recorded", slog.String("id", run.ID), slog.String("path", cfg.Path))
}

// report prints run to stdout, as JSON with --json.
func (a *app) report(run history.Run, maxGenerations int) error {
	if a.jsonOut {
		return ux.WriteJSON(a.printer.Out, ux.NewReport(run))
	}
	if len(run.Workers) > 0 && run.Summary != nil {
		g := globalFromRun(run)
		a.printer.Cluster(g, *run.Summary, maxGenerations, run.Baseline)
	} else {
		a.printer.Result(run.Result, maxGenerations, run.Baseline)
	}
	if run.ID != "" {
		a.printer.Info("recorded as " + run.ID)
	}
	return nil
}
