// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ga

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/polyfit/pkg/telemetry"
	"github.com/AleutianAI/polyfit/services/dataset"
)

// =============================================================================
// Types
// =============================================================================

// StopReason names the termination condition that ended a run.
type StopReason string

const (
	// ReasonNone means the run has not terminated.
	ReasonNone StopReason = ""

	// ReasonTarget means the best fitness reached the target error.
	ReasonTarget StopReason = "target"

	// ReasonStagnation means the best fitness stopped moving.
	ReasonStagnation StopReason = "stagnation"

	// ReasonMaxGenerations means the generation limit was reached.
	ReasonMaxGenerations StopReason = "max_generations"
)

// ConvergenceState tracks loop progress between generations.
type ConvergenceState struct {
	// Generation is the number of completed generations.
	Generation int `json:"generation"`

	// BestFitness is fitness[0] of the last generation, measured after
	// mutation and before selection. +Inf before the first generation.
	BestFitness float64 `json:"best_fitness"`

	// PreviousBest is BestFitness of the generation before.
	PreviousBest float64 `json:"previous_best"`

	// Stagnation counts consecutive generations whose best fitness moved by
	// less than the stagnation epsilon.
	Stagnation int `json:"stagnation"`
}

// Progress is the snapshot handed to an Observer after each generation.
type Progress struct {
	Variant     string        `json:"variant"`
	Generation  int           `json:"generation"`
	BestFitness float64       `json:"best_fitness"`
	Stagnation  int           `json:"stagnation"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Observer receives progress after every generation. It runs on the
// solver's goroutine and must not block.
type Observer func(Progress)

// Result is the outcome of a run.
type Result struct {
	// Solution is individual 0 of the final population.
	Solution []float64 `json:"solution"`

	// Fitness is the fitness of Solution.
	Fitness float64 `json:"fitness"`

	// Generations is the number of completed generations.
	Generations int `json:"generations"`

	// Elapsed is the wall time spent in Run.
	Elapsed time.Duration `json:"elapsed"`

	Variant string           `json:"variant"`
	Reason  StopReason       `json:"reason"`
	State   ConvergenceState `json:"state"`
}

// =============================================================================
// Solver
// =============================================================================

// Solver runs the generational loop for one GA instance.
//
// Description:
//
//	The solver owns two population buffers and a fitness buffer. Stages
//	that produce a new population (crossover, selection) write into the
//	spare buffer, after which the roles swap.
//
// Thread Safety:
//
//	Not safe for concurrent use.
type Solver struct {
	cfg      Config
	data     dataset.Dataset
	backend  Backend
	logger   *slog.Logger
	observer Observer

	pops    [2]*Population
	active  int
	fitness []float64
	state   ConvergenceState
	elapsed time.Duration
}

// Option configures a Solver.
type Option func(*Solver)

// WithBackend selects the execution backend. Default: SerialBackend.
func WithBackend(b Backend) Option {
	return func(s *Solver) {
		if b != nil {
			s.backend = b
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers a per-generation callback.
func WithObserver(o Observer) Option {
	return func(s *Solver) {
		s.observer = o
	}
}

// NewSolver validates cfg and initializes the population.
//
// Description:
//
//	Allocates both population buffers and the fitness buffer, seeds the
//	random source from cfg.Seed and lets the backend fill the initial
//	population with genes uniform in [-InitRange, InitRange).
//
// Inputs:
//   - cfg: GA parameters. Validated here.
//   - data: Samples to fit. Must not be empty.
//   - opts: Optional backend, logger and observer.
//
// Outputs:
//   - *Solver: Ready to Run.
//   - error: ErrInvalidConfig or dataset.ErrEmpty.
func NewSolver(cfg Config, data dataset.Dataset, opts ...Option) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if data.IsEmpty() {
		return nil, fmt.Errorf("new solver: %w", dataset.ErrEmpty)
	}

	s := &Solver{
		cfg:  cfg,
		data: data,
		state: ConvergenceState{
			BestFitness:  math.Inf(1),
			PreviousBest: math.Inf(1),
		},
		fitness: make([]float64, cfg.Population),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		s.backend = NewSerialBackend()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.String("component", "ga_solver"), slog.String("variant", s.backend.Name()))

	for i := range s.pops {
		pop, err := NewPopulation(cfg.Population, cfg.IndividualLength)
		if err != nil {
			return nil, err
		}
		s.pops[i] = pop
	}
	if err := s.backend.Init(s.pops[0], NewSource(cfg.Seed), cfg.InitRange); err != nil {
		return nil, fmt.Errorf("init %s backend: %w", s.backend.Name(), err)
	}
	return s, nil
}

// Run evolves the population until a stop condition holds.
//
// Description:
//
//	Checks the stop conditions before every generation. Context
//	cancellation is observed between generations and between stages and
//	aborts the run with ctx.Err().
//
// Outputs:
//   - Result: Individual 0 of the final population, its fitness, the
//     generation counter, elapsed time and stop reason.
//   - error: Non-nil on cancellation or backend failure.
func (s *Solver) Run(ctx context.Context) (Result, error) {
	ctx, span := otel.Tracer("polyfit/ga").Start(ctx, "ga.solve",
		trace.WithAttributes(
			attribute.String("variant", s.backend.Name()),
			attribute.Int("population", s.cfg.Population),
			attribute.Int("individual_length", s.cfg.IndividualLength),
			attribute.Int("points", s.data.Len()),
			attribute.Int64("seed", int64(s.cfg.Seed)),
		),
	)
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, s.logger)

	logger.Info("solver started",
		slog.Int("population", s.cfg.Population),
		slog.Int("points", s.data.Len()),
		slog.Int("max_generations", s.cfg.MaxGenerations),
		slog.Float64("target_error", s.cfg.TargetError),
	)

	start := time.Now()
	for {
		if _, done := s.Done(); done {
			break
		}
		if err := s.step(ctx, start); err != nil {
			s.elapsed += time.Since(start)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn("solver aborted",
				slog.Int("generation", s.state.Generation),
				slog.String("error", err.Error()),
			)
			return Result{}, err
		}
	}
	s.elapsed += time.Since(start)

	res := s.result()
	recordRun(res.Variant, res.Reason)

	span.SetAttributes(
		attribute.Int("generations", res.Generations),
		attribute.Float64("fitness", res.Fitness),
		attribute.String("reason", string(res.Reason)),
		attribute.Int64("duration_ms", res.Elapsed.Milliseconds()),
	)
	logger.Info("solver finished",
		slog.Int("generations", res.Generations),
		slog.Float64("fitness", res.Fitness),
		slog.String("reason", string(res.Reason)),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// Step runs exactly one generation, regardless of the stop conditions.
func (s *Solver) Step(ctx context.Context) error {
	return s.step(ctx, time.Now())
}

func (s *Solver) step(ctx context.Context, runStart time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	genStart := time.Now()

	// Crossover into the spare buffer.
	if err := s.backend.Crossover(ctx, s.pops[s.active], s.pops[1-s.active]); err != nil {
		return fmt.Errorf("generation %d crossover: %w", s.state.Generation, err)
	}
	s.active = 1 - s.active
	cur := s.pops[s.active]

	if err := s.backend.Mutate(ctx, cur, s.cfg.Mutation); err != nil {
		return fmt.Errorf("generation %d mutation: %w", s.state.Generation, err)
	}
	if err := s.backend.Evaluate(ctx, cur, s.data, s.fitness); err != nil {
		return fmt.Errorf("generation %d fitness: %w", s.state.Generation, err)
	}

	s.state.BestFitness = s.fitness[0]
	if math.Abs(s.state.BestFitness-s.state.PreviousBest) < s.cfg.StagnationEpsilon {
		s.state.Stagnation++
	} else {
		s.state.Stagnation = 0
	}
	s.state.PreviousBest = s.state.BestFitness

	// Selection into the spare buffer.
	if err := s.backend.Select(ctx, cur, s.pops[1-s.active], s.fitness); err != nil {
		return fmt.Errorf("generation %d selection: %w", s.state.Generation, err)
	}
	s.active = 1 - s.active
	s.state.Generation++

	d := time.Since(genStart)
	recordGeneration(s.backend.Name(), s.state.BestFitness, d)
	s.logger.Debug("generation completed",
		slog.Int("generation", s.state.Generation),
		slog.Float64("best_fitness", s.state.BestFitness),
		slog.Int("stagnation", s.state.Stagnation),
	)
	if s.observer != nil {
		s.observer(Progress{
			Variant:     s.backend.Name(),
			Generation:  s.state.Generation,
			BestFitness: s.state.BestFitness,
			Stagnation:  s.state.Stagnation,
			Elapsed:     s.elapsed + time.Since(runStart),
		})
	}
	return nil
}

// Done reports whether a stop condition holds and which one.
//
// When several hold at once the target wins over stagnation, and
// stagnation over the generation limit.
func (s *Solver) Done() (StopReason, bool) {
	switch {
	case s.state.BestFitness <= s.cfg.TargetError:
		return ReasonTarget, true
	case s.state.Stagnation >= s.cfg.MaxConstIter:
		return ReasonStagnation, true
	case s.state.Generation >= s.cfg.MaxGenerations:
		return ReasonMaxGenerations, true
	}
	return ReasonNone, false
}

// State returns the current convergence state.
func (s *Solver) State() ConvergenceState {
	return s.state
}

// Population returns the active population. Callers must not modify it.
func (s *Solver) Population() *Population {
	return s.pops[s.active]
}

// Best returns a copy of individual 0 and its fitness.
func (s *Solver) Best() ([]float64, float64) {
	sol := append([]float64(nil), s.pops[s.active].Individual(0)...)
	return sol, Fitness(sol, s.data)
}

func (s *Solver) result() Result {
	sol, fit := s.Best()
	reason, _ := s.Done()
	return Result{
		Solution:    sol,
		Fitness:     fit,
		Generations: s.state.Generation,
		Elapsed:     s.elapsed,
		Variant:     s.backend.Name(),
		Reason:      reason,
		State:       s.state,
	}
}
