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

	"github.com/AleutianAI/polyfit/pkg/ux"
	"github.com/AleutianAI/polyfit/services/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		store string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.History.Config
			if store != "" {
				cfg.Path = store
			}
			cfg.GCInterval = 0
			cfg.Logger = a.logger.Slog()

			s, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) == 1 {
				run, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.report(run, run.Config.MaxGenerations)
			}

			runs, err := s.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if a.jsonOut {
				reports := make([]ux.Report, len(runs))
				for i, r := range runs {
					reports[i] = ux.NewReport(r)
				}
				return ux.WriteJSON(a.printer.Out, reports)
			}
			a.printer.History(runs)
			return nil
		},
	}
	cmd.Flags().StringVar(&store, "store", "", "history directory (overrides config)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list, 0 for all")
	return cmd
}
