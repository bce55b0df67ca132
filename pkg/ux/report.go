// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/polyfit/services/cluster"
	"github.com/AleutianAI/polyfit/services/dataset"
	"github.com/AleutianAI/polyfit/services/ga"
	"github.com/AleutianAI/polyfit/services/history"
)

// =============================================================================
// Console Reports
// =============================================================================

// Result prints the outcome of a single solver run.
//
// Inputs:
//   - res: The solver result.
//   - maxGenerations: Generation budget, shown as a progress bar. 0 hides it.
//   - baseline: Optional least-squares reference fit. May be nil.
func (p *Printer) Result(res ga.Result, maxGenerations int, baseline *dataset.Baseline) {
	if p.machine() {
		p.machineResult("", res)
		if baseline != nil {
			fmt.Fprintf(p.Out, "baseline_coefficients=%s\n", joinFloats(baseline.Coefficients, -1, ","))
			fmt.Fprintf(p.Out, "baseline_fitness=%s\n", formatFloat(baseline.Residual, -1))
		}
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", p.label("Elapsed"), res.Elapsed.Round(time.Microsecond))
	fmt.Fprintf(&b, "%s  %s\n", p.label("Polynomial"), FormatPolynomial(res.Solution, p.Precision))
	fmt.Fprintf(&b, "%s  %s\n", p.label("Coefficients"), joinFloats(res.Solution, p.Precision, ", "))
	fmt.Fprintf(&b, "%s  %s\n", p.label("Fitness"), p.fitness(res.Fitness))
	fmt.Fprintf(&b, "%s  %d", p.label("Generations"), res.Generations)
	if maxGenerations > 0 {
		fmt.Fprintf(&b, "  %s", p.ProgressBar(res.Generations, maxGenerations, 20))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s  %s\n", p.label("Variant"), res.Variant)
	fmt.Fprintf(&b, "%s  %s", p.label("Stopped by"), reasonText(res.Reason))

	if baseline != nil {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "%s  %s\n", p.label("Least squares"), joinFloats(baseline.Coefficients, p.Precision, ", "))
		fmt.Fprintf(&b, "%s  %s", p.label("Residual"), p.fitness(baseline.Residual))
		if gap, ok := fitnessGap(res.Fitness, baseline.Residual); ok {
			fmt.Fprintf(&b, "\n%s  %s", p.label("Gap"), formatFloat(gap, p.Precision))
		}
	}

	p.Box("Best individual", b.String())
}

// Cluster prints the global result of a multi-worker run followed by one
// row per worker. The winning row is marked.
func (p *Printer) Cluster(g cluster.GlobalResult, s cluster.Summary, maxGenerations int, baseline *dataset.Baseline) {
	if p.machine() {
		fmt.Fprintf(p.Out, "winner=%d\n", g.Worker)
		fmt.Fprintf(p.Out, "workers=%d\n", len(g.Workers))
		p.machineResult("", g.Result)
		for rank, r := range g.Workers {
			p.machineResult(fmt.Sprintf("worker.%d.", rank), r)
		}
		fmt.Fprintf(p.Out, "summary.mean_fitness=%s\n", formatFloat(s.MeanFitness, -1))
		fmt.Fprintf(p.Out, "summary.stddev_fitness=%s\n", formatFloat(s.StdDevFitness, -1))
		fmt.Fprintf(p.Out, "summary.mean_generations=%s\n", formatFloat(s.MeanGenerations, -1))
		if baseline != nil {
			fmt.Fprintf(p.Out, "baseline_fitness=%s\n", formatFloat(baseline.Residual, -1))
		}
		return
	}

	p.Title(fmt.Sprintf("Global result: worker %d of %d", g.Worker, len(g.Workers)))
	p.Result(g.Result, maxGenerations, baseline)
	fmt.Fprintln(p.Out, p.workerTable(g))
	p.Info(fmt.Sprintf("fitness mean %s, stddev %s, range [%s, %s] over %d finite of %d",
		p.fitness(s.MeanFitness), p.fitness(s.StdDevFitness),
		p.fitness(s.MinFitness), p.fitness(s.MaxFitness), s.Finite, s.Workers))
}

// History prints stored runs, newest first.
func (p *Printer) History(runs []history.Run) {
	if len(runs) == 0 {
		p.Info("no runs recorded")
		return
	}
	if p.machine() {
		for _, r := range runs {
			fmt.Fprintf(p.Out, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				r.ID, r.StartedAt.Format(time.RFC3339), r.Kind, r.Result.Variant,
				r.Result.Generations, formatFloat(r.Result.Fitness, -1), r.Input)
		}
		return
	}

	header := fmt.Sprintf("%-36s  %-19s  %-7s  %-8s  %11s  %14s  %s",
		"ID", "STARTED", "KIND", "VARIANT", "GENERATIONS", "FITNESS", "INPUT")
	lines := []string{p.bold(header)}
	for _, r := range runs {
		lines = append(lines, fmt.Sprintf("%-36s  %-19s  %-7s  %-8s  %11d  %14s  %s",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Kind, r.Result.Variant,
			r.Result.Generations, formatFloat(r.Result.Fitness, p.Precision), r.Input))
	}
	fmt.Fprintln(p.Out, strings.Join(lines, "\n"))
}

func (p *Printer) workerTable(g cluster.GlobalResult) string {
	header := fmt.Sprintf("  %4s  %11s  %16s  %12s  %-15s", "RANK", "GENERATIONS", "FITNESS", "ELAPSED", "STOPPED BY")
	rows := []string{p.bold(header)}
	for rank, r := range g.Workers {
		mark := " "
		if rank == g.Worker {
			mark = string(IconStar)
		}
		row := fmt.Sprintf("%s %4d  %11d  %16s  %12s  %-15s",
			mark, rank, r.Generations, formatFloat(r.Fitness, p.Precision),
			r.Elapsed.Round(time.Millisecond), reasonText(r.Reason))
		if rank == g.Worker && p.Level == PersonalityFull {
			row = Styles.Highlight.Render(row)
		}
		rows = append(rows, row)
	}
	table := lipgloss.JoinVertical(lipgloss.Left, rows...)
	if p.Level == PersonalityFull {
		return Styles.Box.Render(table)
	}
	return table
}

func (p *Printer) machineResult(prefix string, res ga.Result) {
	fmt.Fprintf(p.Out, "%selapsed=%s\n", prefix, res.Elapsed)
	fmt.Fprintf(p.Out, "%scoefficients=%s\n", prefix, joinFloats(res.Solution, -1, ","))
	fmt.Fprintf(p.Out, "%sfitness=%s\n", prefix, formatFloat(res.Fitness, -1))
	fmt.Fprintf(p.Out, "%sgenerations=%d\n", prefix, res.Generations)
	fmt.Fprintf(p.Out, "%svariant=%s\n", prefix, res.Variant)
	fmt.Fprintf(p.Out, "%sreason=%s\n", prefix, res.Reason)
}

func (p *Printer) label(s string) string {
	padded := fmt.Sprintf("%-13s", s)
	if p.Level == PersonalityFull {
		return Styles.Muted.Render(padded)
	}
	return padded
}

func (p *Printer) bold(s string) string {
	if p.Level == PersonalityFull {
		return Styles.Bold.Render(s)
	}
	return s
}

func (p *Printer) fitness(f float64) string {
	s := formatFloat(f, p.Precision)
	if p.Level != PersonalityFull {
		return s
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Styles.Error.Render(s)
	}
	return Styles.Highlight.Render(s)
}

func reasonText(r ga.StopReason) string {
	switch r {
	case ga.ReasonTarget:
		return "target error"
	case ga.ReasonStagnation:
		return "stagnation"
	case ga.ReasonMaxGenerations:
		return "generation limit"
	default:
		return "interrupted"
	}
}

// fitnessGap returns ga - baseline when both are finite.
func fitnessGap(gaFitness, baseline float64) (float64, bool) {
	if math.IsNaN(gaFitness) || math.IsInf(gaFitness, 0) ||
		math.IsNaN(baseline) || math.IsInf(baseline, 0) {
		return 0, false
	}
	return gaFitness - baseline, true
}

// =============================================================================
// Formatting
// =============================================================================

// FormatPolynomial renders coefficients, lowest order first, as
// "c0 + c1x + c2x^2 ...". Negative terms are written with a minus sign.
// precision < 0 uses the shortest exact representation.
func FormatPolynomial(coeffs []float64, precision int) string {
	if len(coeffs) == 0 {
		return "0"
	}
	var b strings.Builder
	for k, c := range coeffs {
		mag := c
		if k > 0 {
			if c < 0 || (c == 0 && math.Signbit(c)) {
				b.WriteString(" - ")
				mag = -c
			} else {
				b.WriteString(" + ")
			}
		}
		b.WriteString(formatFloat(mag, precision))
		switch k {
		case 0:
		case 1:
			b.WriteString("x")
		default:
			b.WriteString("x^" + strconv.Itoa(k))
		}
	}
	return b.String()
}

func formatFloat(f float64, precision int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'f', precision, 64)
}

func joinFloats(fs []float64, precision int, sep string) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = formatFloat(f, precision)
	}
	return strings.Join(parts, sep)
}

// =============================================================================
// JSON Reports
// =============================================================================

// Number is a float64 that marshals NaN and ±Inf as JSON strings.
type Number float64

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return json.Marshal(formatFloat(f, -1))
	}
	return json.Marshal(f)
}

func numbers(fs []float64) []Number {
	out := make([]Number, len(fs))
	for i, f := range fs {
		out[i] = Number(f)
	}
	return out
}

// ResultJSON is the machine-readable form of a ga.Result.
type ResultJSON struct {
	Coefficients []Number `json:"coefficients"`
	Fitness      Number   `json:"fitness"`
	Generations  int      `json:"generations"`
	ElapsedMs    float64  `json:"elapsed_ms"`
	Variant      string   `json:"variant"`
	Reason       string   `json:"reason"`
}

// BaselineJSON is the machine-readable form of a dataset.Baseline.
type BaselineJSON struct {
	Coefficients []Number `json:"coefficients"`
	Residual     Number   `json:"residual"`
}

// SummaryJSON is the machine-readable form of a cluster.Summary.
type SummaryJSON struct {
	Workers         int     `json:"workers"`
	Finite          int     `json:"finite"`
	MeanFitness     Number  `json:"mean_fitness"`
	StdDevFitness   Number  `json:"stddev_fitness"`
	MinFitness      Number  `json:"min_fitness"`
	MaxFitness      Number  `json:"max_fitness"`
	MeanGenerations Number  `json:"mean_generations"`
	MaxElapsedMs    float64 `json:"max_elapsed_ms"`
}

// Report is the document written by --json.
type Report struct {
	RunID    string        `json:"run_id,omitempty"`
	Kind     string        `json:"kind"`
	Result   ResultJSON    `json:"result"`
	Winner   *int          `json:"winner,omitempty"`
	Workers  []ResultJSON  `json:"workers,omitempty"`
	Summary  *SummaryJSON  `json:"summary,omitempty"`
	Baseline *BaselineJSON `json:"baseline,omitempty"`
}

// NewResultJSON converts res.
func NewResultJSON(res ga.Result) ResultJSON {
	return ResultJSON{
		Coefficients: numbers(res.Solution),
		Fitness:      Number(res.Fitness),
		Generations:  res.Generations,
		ElapsedMs:    float64(res.Elapsed) / float64(time.Millisecond),
		Variant:      res.Variant,
		Reason:       string(res.Reason),
	}
}

// NewReport builds the report for a stored or in-flight run.
func NewReport(run history.Run) Report {
	rep := Report{
		RunID:  run.ID,
		Kind:   string(run.Kind),
		Result: NewResultJSON(run.Result),
	}
	if len(run.Workers) > 0 {
		winner := run.Winner
		rep.Winner = &winner
		for _, w := range run.Workers {
			rep.Workers = append(rep.Workers, NewResultJSON(w))
		}
	}
	if s := run.Summary; s != nil {
		rep.Summary = &SummaryJSON{
			Workers:         s.Workers,
			Finite:          s.Finite,
			MeanFitness:     Number(s.MeanFitness),
			StdDevFitness:   Number(s.StdDevFitness),
			MinFitness:      Number(s.MinFitness),
			MaxFitness:      Number(s.MaxFitness),
			MeanGenerations: Number(s.MeanGenerations),
			MaxElapsedMs:    float64(s.MaxElapsed) / float64(time.Millisecond),
		}
	}
	if b := run.Baseline; b != nil {
		rep.Baseline = &BaselineJSON{
			Coefficients: numbers(b.Coefficients),
			Residual:     Number(b.Residual),
		}
	}
	return rep
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}
