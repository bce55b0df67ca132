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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/polyfit/pkg/logging"
	"github.com/AleutianAI/polyfit/pkg/telemetry"
	"github.com/AleutianAI/polyfit/pkg/ux"
)

// app carries state shared by every command of one invocation.
type app struct {
	configPath  string
	logLevel    string
	logJSON     bool
	jsonOut     bool
	trace       bool
	seed        uint64
	personality string

	cfg      Config
	logger   *logging.Logger
	printer  *ux.Printer
	shutdown func(context.Context) error
}

// newRootCmd builds the command tree around a.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "polyfit",
		Short: "Fit polynomials to sample data with a genetic algorithm",
		Long: `polyfit evolves polynomial coefficients that minimise the sum of squared
residuals over a set of (x, y) samples. Runs can use one solver, several
in-process workers, or several processes connected through NATS.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.logJSON, "log-json", false, "write logs as JSON")
	pf.BoolVar(&a.jsonOut, "json", false, "print the report as JSON")
	pf.BoolVar(&a.trace, "trace", false, "export OpenTelemetry spans to stderr")
	pf.Uint64Var(&a.seed, "seed", 0, "base random seed (overrides config)")
	pf.StringVar(&a.personality, "output", "", "console style: full, minimal or machine")

	root.AddCommand(
		newSolveCmd(a),
		newClusterCmd(a),
		newWorkerCmd(a),
		newGenerateCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// setup loads configuration and initializes logging, telemetry and the
// console printer.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.GA.Seed = a.seed
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = a.logJSON
	}
	if a.trace {
		cfg.Telemetry.TraceExporter = telemetry.ExporterStdout
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "polyfit",
		JSON:    cfg.Log.JSON,
		Writer:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(a.logger.Slog())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg.Telemetry.Writer = cmd.ErrOrStderr()
	a.shutdown, err = telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	ux.InitPersonality()
	if a.personality != "" {
		ux.SetPersonalityLevel(ux.ParsePersonalityLevel(a.personality))
	}
	a.printer = ux.NewPrinter()
	a.printer.Out = cmd.OutOrStdout()
	a.printer.Err = cmd.ErrOrStderr()
	return nil
}

// teardown flushes spans and closes the log file. It runs after every
// command, including failed ones, and is safe to call twice.
func (a *app) teardown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if a.shutdown != nil {
		err = a.shutdown(ctx)
		a.shutdown = nil
	}
	if a.logger != nil {
		if cerr := a.logger.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
