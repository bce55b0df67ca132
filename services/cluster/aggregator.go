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
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/stat"

	"github.com/AleutianAI/polyfit/pkg/telemetry"
	"github.com/AleutianAI/polyfit/services/ga"
)

// ErrNoResults is returned by Reduce for an empty result set.
var ErrNoResults = errors.New("no worker results")

// =============================================================================
// Types
// =============================================================================

// GlobalResult is the best result across all workers.
type GlobalResult struct {
	// Result is the winning worker's result.
	ga.Result

	// Worker is the rank of the winning worker.
	Worker int `json:"worker"`

	// Workers holds every worker's result, indexed by rank.
	Workers []ga.Result `json:"workers"`
}

// Summary describes the spread of worker results.
type Summary struct {
	Workers int `json:"workers"`

	// Finite counts results whose fitness is a finite number. The fitness
	// statistics below cover only those.
	Finite int `json:"finite"`

	MeanFitness   float64 `json:"mean_fitness"`
	StdDevFitness float64 `json:"stddev_fitness"`
	MinFitness    float64 `json:"min_fitness"`
	MaxFitness    float64 `json:"max_fitness"`

	MeanGenerations float64       `json:"mean_generations"`
	MaxElapsed      time.Duration `json:"max_elapsed"`
}

// =============================================================================
// Reduction
// =============================================================================

// Reduce returns the index of the result with the lowest fitness.
//
// Description:
//
//	Scans left to right and replaces the current best only on a strictly
//	lower fitness, so ties go to the lowest index. NaN counts as +Inf.
//
// Outputs:
//   - int: Index of the winning result.
//   - error: ErrNoResults for an empty slice.
func Reduce(results []ga.Result) (int, error) {
	if len(results) == 0 {
		return 0, ErrNoResults
	}
	best := 0
	bestFit := finiteOrInf(results[0].Fitness)
	for i := 1; i < len(results); i++ {
		if f := finiteOrInf(results[i].Fitness); f < bestFit {
			best, bestFit = i, f
		}
	}
	return best, nil
}

func finiteOrInf(f float64) float64 {
	if math.IsNaN(f) {
		return math.Inf(1)
	}
	return f
}

// Summarize computes spread statistics over worker results.
func Summarize(results []ga.Result) Summary {
	s := Summary{Workers: len(results)}
	if len(results) == 0 {
		return s
	}

	fits := make([]float64, 0, len(results))
	gens := make([]float64, len(results))
	for i, r := range results {
		gens[i] = float64(r.Generations)
		s.MaxElapsed = max(s.MaxElapsed, r.Elapsed)
		if !math.IsNaN(r.Fitness) && !math.IsInf(r.Fitness, 0) {
			fits = append(fits, r.Fitness)
		}
	}
	s.MeanGenerations = stat.Mean(gens, nil)
	s.Finite = len(fits)
	if len(fits) == 0 {
		s.MeanFitness, s.StdDevFitness = math.NaN(), math.NaN()
		s.MinFitness, s.MaxFitness = math.NaN(), math.NaN()
		return s
	}
	s.MeanFitness = stat.Mean(fits, nil)
	if len(fits) > 1 {
		s.StdDevFitness = stat.StdDev(fits, nil)
	}
	s.MinFitness, s.MaxFitness = fits[0], fits[0]
	for _, f := range fits[1:] {
		s.MinFitness = math.Min(s.MinFitness, f)
		s.MaxFitness = math.Max(s.MaxFitness, f)
	}
	return s
}

// =============================================================================
// Aggregator
// =============================================================================

// Aggregator exchanges worker results over a Transport.
//
// Description:
//
//	Rank 0 is the coordinator. Every other rank sends its result with
//	Report; the coordinator collects them with Gather.
//
// Thread Safety:
//
//	Safe for concurrent use as long as each rank calls Report or Gather at
//	most once per run.
type Aggregator struct {
	transport Transport
	logger    *slog.Logger
}

// NewAggregator creates an aggregator for t. A nil logger uses
// slog.Default().
func NewAggregator(t Transport, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		transport: t,
		logger: logger.With(
			slog.String("component", "aggregator"),
			slog.Int("rank", t.Rank()),
		),
	}
}

// IsCoordinator reports whether this rank collects the results.
func (a *Aggregator) IsCoordinator() bool {
	return a.transport.Rank() == 0
}

// Complete finishes the exchange for this rank.
//
// On the coordinator it gathers every worker's result and returns the
// global result. On any other rank it reports res and returns nil.
func (a *Aggregator) Complete(ctx context.Context, res ga.Result) (*GlobalResult, error) {
	if !a.IsCoordinator() {
		return nil, a.Report(ctx, res)
	}
	g, err := a.Gather(ctx, res)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Report sends res to the coordinator as four tagged messages:
// solution, fitness, elapsed, generations.
func (a *Aggregator) Report(ctx context.Context, res ga.Result) error {
	if a.IsCoordinator() {
		return fmt.Errorf("report: rank 0 is the coordinator")
	}

	msgs := []struct {
		tag    Tag
		encode func() ([]byte, error)
	}{
		{TagSolution, func() ([]byte, error) { return EncodeSolution(res.Solution) }},
		{TagFitness, func() ([]byte, error) { return EncodeFitness(res.Fitness) }},
		{TagElapsed, func() ([]byte, error) { return EncodeElapsed(res.Elapsed) }},
		{TagGenerations, func() ([]byte, error) { return EncodeGenerations(res.Generations) }},
	}
	for _, m := range msgs {
		payload, err := m.encode()
		if err != nil {
			return err
		}
		if err := a.transport.Send(ctx, 0, m.tag, payload); err != nil {
			return fmt.Errorf("report %s: %w", m.tag, err)
		}
	}

	a.logger.Info("result reported",
		slog.Float64("fitness", res.Fitness),
		slog.Int("generations", res.Generations),
	)
	return nil
}

// Gather collects the results of ranks 1..W-1, in rank order, and reduces
// them together with own.
//
// Description:
//
//	Blocks on each rank in turn; a rank that never reports blocks the
//	coordinator until ctx ends. Results received from other ranks carry
//	solution, fitness, elapsed time and generation count only.
//
// Outputs:
//   - GlobalResult: The winner, its rank and all results indexed by rank.
//   - error: Wrapped ErrTransport on exchange failure, or a decode error.
func (a *Aggregator) Gather(ctx context.Context, own ga.Result) (GlobalResult, error) {
	if !a.IsCoordinator() {
		return GlobalResult{}, fmt.Errorf("gather: rank %d is not the coordinator", a.transport.Rank())
	}
	size := a.transport.Size()

	ctx, span := otel.Tracer("polyfit/cluster").Start(ctx, "cluster.gather",
		trace.WithAttributes(attribute.Int("workers", size)),
	)
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, a.logger)
	start := time.Now()

	results := make([]ga.Result, size)
	results[0] = own
	workerResultsTotal.Inc()

	for src := 1; src < size; src++ {
		res, err := a.receive(ctx, src)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return GlobalResult{}, err
		}
		results[src] = res
		workerResultsTotal.Inc()
		logger.Debug("result received",
			slog.Int("src", src),
			slog.Float64("fitness", res.Fitness),
		)
	}
	gatherDuration.Observe(time.Since(start).Seconds())

	best, err := Reduce(results)
	if err != nil {
		return GlobalResult{}, err
	}

	span.SetAttributes(
		attribute.Int("winner", best),
		attribute.Float64("fitness", results[best].Fitness),
	)
	logger.Info("global result reduced",
		slog.Int("winner", best),
		slog.Float64("fitness", results[best].Fitness),
		slog.Int("workers", size),
	)
	return GlobalResult{Result: results[best], Worker: best, Workers: results}, nil
}

func (a *Aggregator) receive(ctx context.Context, src int) (ga.Result, error) {
	var res ga.Result

	b, err := a.transport.Recv(ctx, src, TagSolution)
	if err != nil {
		return res, err
	}
	if res.Solution, err = DecodeSolution(b); err != nil {
		return res, fmt.Errorf("rank %d: %w", src, err)
	}

	if b, err = a.transport.Recv(ctx, src, TagFitness); err != nil {
		return res, err
	}
	if res.Fitness, err = DecodeFitness(b); err != nil {
		return res, fmt.Errorf("rank %d: %w", src, err)
	}

	if b, err = a.transport.Recv(ctx, src, TagElapsed); err != nil {
		return res, err
	}
	if res.Elapsed, err = DecodeElapsed(b); err != nil {
		return res, fmt.Errorf("rank %d: %w", src, err)
	}

	if b, err = a.transport.Recv(ctx, src, TagGenerations); err != nil {
		return res, err
	}
	if res.Generations, err = DecodeGenerations(b); err != nil {
		return res, fmt.Errorf("rank %d: %w", src, err)
	}
	return res, nil
}
