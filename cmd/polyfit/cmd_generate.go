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
	"github.com/AleutianAI/polyfit/services/dataset"
)

type generateFlags struct {
	coeffs []float64
	points int
	lo, hi float64
	noise  float64
}

func newGenerateCmd(a *app) *cobra.Command {
	f := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate <out-file>",
		Short: "Write a synthetic sample file",
		Long: `Samples the polynomial given by --coeffs (lowest order first) at evenly
spaced x in [lo, hi], optionally adding Gaussian noise to y, and writes the
"x y" pairs to out-file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, f, args[0])
		},
	}
	fs := cmd.Flags()
	fs.Float64SliceVar(&f.coeffs, "coeffs", []float64{1, 3, -1, 2}, "polynomial coefficients, lowest order first")
	fs.IntVar(&f.points, "points", 0, "number of samples (default: config points)")
	fs.Float64Var(&f.lo, "lo", -5, "smallest x")
	fs.Float64Var(&f.hi, "hi", 5, "largest x")
	fs.Float64Var(&f.noise, "noise", 0, "standard deviation of Gaussian noise added to y")
	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, f *generateFlags, out string) error {
	n := a.cfg.GA.Points
	if cmd.Flags().Changed("points") {
		n = f.points
	}
	data, err := dataset.Generate(f.coeffs, n, f.lo, f.hi, f.noise, a.cfg.GA.Seed)
	if err != nil {
		return err
	}
	if err := dataset.WriteFile(out, data); err != nil {
		return err
	}
	a.logger.Info("dataset written", slog.String("path", out), slog.Int("points", data.Len()))

	if a.jsonOut {
		return ux.WriteJSON(a.printer.Out, map[string]any{
			"path":         out,
			"points":       data.Len(),
			"coefficients": f.coeffs,
			"noise":        f.noise,
		})
	}
	a.printer.Success(fmt.Sprintf("wrote %d points of %s to %s",
		data.Len(), ux.FormatPolynomial(f.coeffs, -1), out))
	return nil
}
