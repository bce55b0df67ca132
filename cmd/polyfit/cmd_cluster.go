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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/polyfit/services/cluster"
	"github.com/AleutianAI/polyfit/services/dataset"
	"github.com/AleutianAI/polyfit/services/ga"
	"github.com/AleutianAI/polyfit/services/history"
)

func newClusterCmd(a *app) *cobra.Command {
	f := &runFlags{}
	var workers int
	cmd := &cobra.Command{
		Use:   "cluster <points-file>",
		Short: "Run several workers in this process and keep the best result",
		Long: `Starts one solver per worker, each seeded with seed+rank, and reduces their
results on rank 0 to the global best.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCluster(cmd, f, workers, args[0])
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&workers, "workers", 4, "number of workers")
	return cmd
}

func (a *app) runCluster(cmd *cobra.Command, f *runFlags, workers int, path string) error {
	ctx := cmd.Context()
	if workers < 1 {
		return fmt.Errorf("--workers must be at least 1, got %d", workers)
	}
	cfg, err := a.gaConfig(cmd, f)
	if err != nil {
		return err
	}
	data, err := a.loadData(path, cfg)
	if err != nil {
		return err
	}
	newWorkerBackend, err := backendFactory(f.backend, cfg.Lanes)
	if err != nil {
		return err
	}

	tracker := a.startMonitor(ctx, a.metricsAddr(cmd, f))
	global, err := cluster.RunLocal(ctx, cluster.LocalRun{
		Workers: workers,
		Config:  cfg,
		Data:    data,
		Logger:  a.logger.Slog(),
		SolverOptions: func(rank int) []ga.Option {
			return []ga.Option{
				ga.WithBackend(newWorkerBackend()),
				ga.WithObserver(tracker.Observer(rankName(rank))),
			}
		},
	})
	if err != nil {
		return err
	}
	for rank, res := range global.Workers {
		tracker.Finish(rankName(rank), res)
	}

	run := clusterRun(path, cfg, global, a.baseline(data, cfg.IndividualLength))
	a.record(ctx, f, &run)
	return a.report(run, cfg.MaxGenerations)
}

func rankName(rank int) string {
	return fmt.Sprintf("rank-%d", rank)
}

// clusterRun builds the history record of a multi-worker run.
func clusterRun(path string, cfg ga.Config, g cluster.GlobalResult, baseline *dataset.Baseline) history.Run {
	summary := cluster.Summarize(g.Workers)
	return history.Run{
		Kind:     history.KindCluster,
		Input:    path,
		Config:   cfg,
		Result:   g.Result,
		Winner:   g.Worker,
		Workers:  g.Workers,
		Summary:  &summary,
		Baseline: baseline,
	}
}

func globalFromRun(run history.Run) cluster.GlobalResult {
	return cluster.GlobalResult{
		Result:  run.Result,
		Worker:  run.Winner,
		Workers: run.Workers,
	}
}
