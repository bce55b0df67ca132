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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/polyfit/pkg/ux"
	"github.com/AleutianAI/polyfit/services/cluster"
	"github.com/AleutianAI/polyfit/services/ga"
	"github.com/AleutianAI/polyfit/services/history"
)

type workerFlags struct {
	rank          int
	size          int
	natsURL       string
	subjectPrefix string
}

func newWorkerCmd(a *app) *cobra.Command {
	f := &runFlags{}
	w := &workerFlags{}
	cmd := &cobra.Command{
		Use:   "worker <points-file>",
		Short: "Run one rank of a multi-process run over NATS",
		Long: `Runs one solver and exchanges its result through a NATS server. Start one
process per rank with the same --size, sample file, seed and subject prefix.
Rank 0 gathers every result and prints the global best; the other ranks
report to it and exit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWorker(cmd, f, w, args[0])
		},
	}
	f.register(cmd)
	fs := cmd.Flags()
	fs.IntVar(&w.rank, "rank", 0, "this process's rank, 0 is the coordinator")
	fs.IntVar(&w.size, "size", 1, "number of ranks")
	fs.StringVar(&w.natsURL, "nats-url", "", "NATS server URL (overrides config)")
	fs.StringVar(&w.subjectPrefix, "subject-prefix", "", "NATS subject prefix shared by all ranks (overrides config)")
	return cmd
}

func (a *app) runWorker(cmd *cobra.Command, f *runFlags, w *workerFlags, path string) error {
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

	natsCfg := a.cfg.NATS
	if cmd.Flags().Changed("nats-url") {
		natsCfg.URL = w.natsURL
	}
	if cmd.Flags().Changed("subject-prefix") {
		natsCfg.SubjectPrefix = w.subjectPrefix
	}

	logger := a.logger.Slog().With(slog.Int("rank", w.rank))
	transport, err := cluster.DialNATS(natsCfg, w.rank, w.size, logger)
	if err != nil {
		return err
	}
	defer transport.Close()

	name := rankName(w.rank)
	tracker := a.startMonitor(ctx, a.metricsAddr(cmd, f))
	worker := &cluster.Worker{
		Transport: transport,
		Config:    cfg,
		Data:      data,
		Logger:    a.logger.Slog(),
		SolverOptions: []ga.Option{
			ga.WithBackend(backend),
			ga.WithObserver(tracker.Observer(name)),
		},
	}
	own, global, err := worker.Run(ctx)
	if err != nil {
		return err
	}
	tracker.Finish(name, own)

	if global == nil {
		if a.jsonOut {
			return ux.WriteJSON(a.printer.Out, ux.NewReport(history.Run{Kind: history.KindWorker, Input: path, Config: cfg, Result: own}))
		}
		a.printer.Success(fmt.Sprintf("rank %d reported to rank 0", w.rank))
		a.printer.Result(own, cfg.MaxGenerations, nil)
		return nil
	}

	run := clusterRun(path, cfg, *global, a.baseline(data, cfg.IndividualLength))
	a.record(ctx, f, &run)
	return a.report(run, cfg.MaxGenerations)
}
