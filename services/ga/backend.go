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
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/polyfit/services/dataset"
)

// =============================================================================
// Backend Interface
// =============================================================================

// Backend executes the per-generation stages over buffers owned by a
// Solver.
//
// Description:
//
//	Init binds the backend to a random source and fills the initial
//	population; the remaining methods run one stage each. Every method
//	returns only after the stage is complete for the whole population, so
//	the solver can treat each call as a barrier.
//
// Thread Safety:
//
//	A Backend belongs to a single Solver and must not be shared.
type Backend interface {
	// Name identifies the backend in logs, metrics and reports.
	Name() string

	// Init binds rng and fills pop with genes uniform in [-bound, bound).
	Init(pop *Population, rng *Source, bound float64) error

	// Crossover builds the next population from src into dst.
	Crossover(ctx context.Context, src, dst *Population) error

	// Mutate perturbs every individual of pop except index 0.
	Mutate(ctx context.Context, pop *Population, params MutationConfig) error

	// Evaluate writes the fitness of every individual into fitness.
	Evaluate(ctx context.Context, pop *Population, data dataset.Dataset, fitness []float64) error

	// Select sorts src into dst by fitness and permutes fitness to match.
	Select(ctx context.Context, src, dst *Population, fitness []float64) error
}

// =============================================================================
// Serial Backend
// =============================================================================

// SerialBackend runs every stage on the calling goroutine.
type SerialBackend struct {
	rng *Source
}

// NewSerialBackend creates a single-threaded backend.
func NewSerialBackend() *SerialBackend {
	return &SerialBackend{}
}

// Name returns "serial".
func (b *SerialBackend) Name() string { return "serial" }

// Init binds rng and randomizes pop.
func (b *SerialBackend) Init(pop *Population, rng *Source, bound float64) error {
	b.rng = rng
	pop.Randomize(rng, bound, 0, pop.Size())
	return nil
}

// Crossover implements Backend.
func (b *SerialBackend) Crossover(_ context.Context, src, dst *Population) error {
	if err := b.ready(); err != nil {
		return err
	}
	if err := sameShape(src, dst); err != nil {
		return err
	}
	Crossover(src, dst, b.rng)
	return nil
}

// Mutate implements Backend.
func (b *SerialBackend) Mutate(_ context.Context, pop *Population, params MutationConfig) error {
	if err := b.ready(); err != nil {
		return err
	}
	Mutate(pop, b.rng, params)
	return nil
}

// Evaluate implements Backend.
func (b *SerialBackend) Evaluate(_ context.Context, pop *Population, data dataset.Dataset, fitness []float64) error {
	EvaluateRange(pop, data, fitness, 0, pop.Size())
	return nil
}

// Select implements Backend.
func (b *SerialBackend) Select(_ context.Context, src, dst *Population, fitness []float64) error {
	if err := sameShape(src, dst); err != nil {
		return err
	}
	Select(src, dst, fitness)
	return nil
}

func (b *SerialBackend) ready() error {
	if b.rng == nil {
		return fmt.Errorf("serial backend used before Init")
	}
	return nil
}

// =============================================================================
// Parallel Backend
// =============================================================================

// ParallelBackend shards every stage across a fixed number of lanes.
//
// Description:
//
//	Each stage splits its index range (rows or child pair slots) into one
//	contiguous chunk per lane and runs the chunks as goroutines under an
//	errgroup. Lane i always draws from its own source, split from the
//	solver's source at Init, so a run is reproducible for a fixed seed and
//	lane count. Selection computes the ordering once and only shards the
//	row copy.
//
// Thread Safety:
//
//	Lanes write disjoint rows; the backend itself is owned by one Solver.
type ParallelBackend struct {
	lanes int
	rngs  []*Source
}

// NewParallelBackend creates a backend with the given number of lanes.
// lanes <= 0 uses runtime.GOMAXPROCS(0).
func NewParallelBackend(lanes int) *ParallelBackend {
	if lanes <= 0 {
		lanes = runtime.GOMAXPROCS(0)
	}
	return &ParallelBackend{lanes: lanes}
}

// Name returns "parallel".
func (b *ParallelBackend) Name() string { return "parallel" }

// Lanes returns the number of lanes.
func (b *ParallelBackend) Lanes() int { return b.lanes }

// Init splits rng into per-lane sources and randomizes pop lane by lane.
func (b *ParallelBackend) Init(pop *Population, rng *Source, bound float64) error {
	b.rngs = rng.Split(b.lanes)
	return b.shard(context.Background(), pop.Size(), func(lane, lo, hi int) {
		pop.Randomize(b.rngs[lane], bound, lo, hi)
	})
}

// Crossover implements Backend.
func (b *ParallelBackend) Crossover(ctx context.Context, src, dst *Population) error {
	if err := b.ready(); err != nil {
		return err
	}
	if err := sameShape(src, dst); err != nil {
		return err
	}
	half := src.Size() / 2
	if err := b.shard(ctx, half, func(_, lo, hi int) {
		copyRows(src, dst, lo, hi)
	}); err != nil {
		return err
	}
	return b.shard(ctx, pairCount(src.Size()), func(lane, lo, hi int) {
		CrossoverPairs(src, dst, b.rngs[lane], lo, hi)
	})
}

// Mutate implements Backend.
func (b *ParallelBackend) Mutate(ctx context.Context, pop *Population, params MutationConfig) error {
	if err := b.ready(); err != nil {
		return err
	}
	return b.shard(ctx, pop.Size(), func(lane, lo, hi int) {
		MutateRange(pop, b.rngs[lane], params, lo, hi)
	})
}

// Evaluate implements Backend.
func (b *ParallelBackend) Evaluate(ctx context.Context, pop *Population, data dataset.Dataset, fitness []float64) error {
	return b.shard(ctx, pop.Size(), func(_, lo, hi int) {
		EvaluateRange(pop, data, fitness, lo, hi)
	})
}

// Select implements Backend.
func (b *ParallelBackend) Select(ctx context.Context, src, dst *Population, fitness []float64) error {
	if err := sameShape(src, dst); err != nil {
		return err
	}
	order := Rank(fitness)
	if err := b.shard(ctx, len(order), func(_, lo, hi int) {
		ReorderRange(src, dst, order, lo, hi)
	}); err != nil {
		return err
	}
	permute(fitness, order)
	return nil
}

func (b *ParallelBackend) ready() error {
	if len(b.rngs) != b.lanes {
		return fmt.Errorf("parallel backend used before Init")
	}
	return nil
}

// shard runs fn over [0, n) split into at most b.lanes contiguous chunks.
// It returns after every chunk has finished.
func (b *ParallelBackend) shard(ctx context.Context, n int, fn func(lane, lo, hi int)) error {
	if n <= 0 {
		return nil
	}
	chunk := (n + b.lanes - 1) / b.lanes
	g, gctx := errgroup.WithContext(ctx)
	for lane := 0; lane < b.lanes; lane++ {
		lo := lane * chunk
		if lo >= n {
			break
		}
		hi := min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(lane, lo, hi)
			return nil
		})
	}
	return g.Wait()
}
