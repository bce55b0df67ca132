// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cluster

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/polyfit/services/dataset"
	"github.com/AleutianAI/polyfit/services/ga"
)

// WorkerSeed derives a rank's solver seed from the run's base seed.
func WorkerSeed(base uint64, rank int) uint64 {
	return base + uint64(rank)
}

// Worker runs one rank of a multi-worker run.
type Worker struct {
	// Transport connects this rank to the others. Required.
	Transport Transport

	// Config is the shared GA configuration. Seed is the base seed; the
	// worker solves with WorkerSeed(Config.Seed, rank).
	Config ga.Config

	// Data is the shared, read-only dataset.
	Data dataset.Dataset

	// SolverOptions are passed to ga.NewSolver. A backend given here must
	// not be shared with another worker.
	SolverOptions []ga.Option

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Run solves and then completes the result exchange.
//
// Outputs:
//   - ga.Result: This rank's own result.
//   - *GlobalResult: The reduced result on rank 0, nil on other ranks.
//   - error: Solver or exchange failure.
func (w *Worker) Run(ctx context.Context) (ga.Result, *GlobalResult, error) {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rank := w.Transport.Rank()
	logger = logger.With(slog.Int("rank", rank))

	cfg := w.Config
	cfg.Seed = WorkerSeed(w.Config.Seed, rank)

	opts := append([]ga.Option{ga.WithLogger(logger)}, w.SolverOptions...)
	solver, err := ga.NewSolver(cfg, w.Data, opts...)
	if err != nil {
		return ga.Result{}, nil, fmt.Errorf("rank %d: %w", rank, err)
	}
	res, err := solver.Run(ctx)
	if err != nil {
		return ga.Result{}, nil, fmt.Errorf("rank %d: %w", rank, err)
	}

	global, err := NewAggregator(w.Transport, logger).Complete(ctx, res)
	if err != nil {
		return res, nil, fmt.Errorf("rank %d: %w", rank, err)
	}
	return res, global, nil
}

// LocalRun configures RunLocal.
type LocalRun struct {
	// Workers is the number of ranks. Must be positive.
	Workers int

	Config ga.Config
	Data   dataset.Dataset

	// SolverOptions returns the options for one rank; it is called once
	// per rank so each gets its own backend. May be nil.
	SolverOptions func(rank int) []ga.Option

	Logger *slog.Logger
}

// RunLocal runs every rank as a goroutine over a LocalNetwork and returns
// the coordinator's global result.
//
// Description:
//
//	If any rank fails, the shared context is cancelled so the others,
//	including a coordinator blocked in Gather, stop too.
func RunLocal(ctx context.Context, run LocalRun) (GlobalResult, error) {
	net, err := NewLocalNetwork(run.Workers)
	if err != nil {
		return GlobalResult{}, err
	}
	defer net.Close()

	var global *GlobalResult
	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < run.Workers; rank++ {
		ep, err := net.Endpoint(rank)
		if err != nil {
			return GlobalResult{}, err
		}
		w := &Worker{
			Transport: ep,
			Config:    run.Config,
			Data:      run.Data,
			Logger:    run.Logger,
		}
		if run.SolverOptions != nil {
			w.SolverOptions = run.SolverOptions(rank)
		}
		g.Go(func() error {
			_, res, err := w.Run(gctx)
			if err != nil {
				return err
			}
			if res != nil {
				global = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return GlobalResult{}, err
	}
	if global == nil {
		return GlobalResult{}, ErrNoResults
	}
	return *global, nil
}
