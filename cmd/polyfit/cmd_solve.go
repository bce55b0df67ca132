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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/polyfit/services/ga"
	"github.com/AleutianAI/polyfit/services/history"
)

func newSolveCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "solve <points-file>",
		Short: "Run one solver on a sample file",
		Long: `Reads the configured number of "x y" samples and evolves a polynomial
until the target fitness, stagnation or the generation limit stops it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSolve(cmd, f, args[0])
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) runSolve(cmd *cobra.Command, f *runFlags, path string) error {
	ctx := cmd.Context()
	cfg, err := a.gaConfig(cmd, f)
	if err != nil {
		return err
	}
	data, err := a.loadData(path, cfg)
	if err != nil {
		return err
	}
	backend, err := newBackend(f.backend, cfg.Lanes)
	if err != nil {
		return err
	}

	tracker := a.startMonitor(ctx, a.metricsAddr(cmd, f))
	solver, err := ga.NewSolver(cfg, data,
		ga.WithBackend(backend),
		ga.WithLogger(a.logger.Slog()),
		ga.WithObserver(tracker.Observer("solve")),
	)
	if err != nil {
		return err
	}
	res, err := solver.Run(ctx)
	if err != nil {
		return err
	}
	tracker.Finish("solve", res)

	run := history.Run{
		Kind:     history.KindSolve,
		Input:    path,
		Config:   cfg,
		Result:   res,
		Baseline: a.baseline(data, cfg.IndividualLength),
	}
	a.record(ctx, f, &run)
	return a.report(run, cfg.MaxGenerations)
}
