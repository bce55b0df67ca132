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
	"math"
	"runtime"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParallelBackend_DefaultLanes(t *testing.T) {
	assert.Equal(t, runtime.GOMAXPROCS(0), NewParallelBackend(0).Lanes())
	assert.Equal(t, 3, NewParallelBackend(3).Lanes())
}

func TestBackends_RequireInit(t *testing.T) {
	ctx := context.Background()
	src := mustPopulation(t, 4, 3)
	dst := mustPopulation(t, 4, 3)

	for _, b := range []Backend{NewSerialBackend(), NewParallelBackend(2)} {
		assert.Error(t, b.Crossover(ctx, src, dst), b.Name())
		assert.Error(t, b.Mutate(ctx, src, DefaultConfig().Mutation), b.Name())
	}
}

func TestBackends_RejectMismatchedBuffers(t *testing.T) {
	ctx := context.Background()
	src := randomPopulation(t, 4, 3, 1)
	dst := mustPopulation(t, 6, 3)
	fitness := make([]float64, 4)

	for _, b := range []Backend{NewSerialBackend(), NewParallelBackend(2)} {
		require.NoError(t, b.Init(src, NewSource(1), 5), b.Name())
		assert.Error(t, b.Crossover(ctx, src, dst), b.Name())
		assert.Error(t, b.Select(ctx, src, dst, fitness), b.Name())
	}
}

func TestParallelBackend_EvaluateMatchesSerial(t *testing.T) {
	ctx := context.Background()
	data := cubicData(t, 100)
	pop := randomPopulation(t, 101*2, 4, 30)

	want := make([]float64, pop.Size())
	got := make([]float64, pop.Size())
	require.NoError(t, NewSerialBackend().Evaluate(ctx, pop, data, want))
	require.NoError(t, NewParallelBackend(7).Evaluate(ctx, pop, data, got))

	assert.Equal(t, want, got)
}

func TestParallelBackend_SelectMatchesSerial(t *testing.T) {
	ctx := context.Background()
	data := cubicData(t, 40)
	src := randomPopulation(t, 50, 4, 31)

	fitSerial := make([]float64, 50)
	EvaluateRange(src, data, fitSerial, 0, 50)
	fitParallel := slices.Clone(fitSerial)
	fitSerial[3] = math.NaN()
	fitParallel[3] = math.NaN()

	dstSerial := mustPopulation(t, 50, 4)
	dstParallel := mustPopulation(t, 50, 4)
	require.NoError(t, NewSerialBackend().Select(ctx, src, dstSerial, fitSerial))
	require.NoError(t, NewParallelBackend(4).Select(ctx, src, dstParallel, fitParallel))

	assert.Equal(t, rows(dstSerial), rows(dstParallel))
	assert.True(t, math.IsNaN(fitParallel[49]))
	assert.Equal(t, src.Individual(3), dstParallel.Individual(49))
}

func TestParallelBackend_CrossoverProvenance(t *testing.T) {
	ctx := context.Background()
	for _, lanes := range []int{1, 3, 8} {
		src := randomPopulation(t, 30, 4, 32)
		dst := mustPopulation(t, 30, 4)
		b := NewParallelBackend(lanes)
		require.NoError(t, b.Init(mustPopulation(t, 30, 4), NewSource(1), 5))

		require.NoError(t, b.Crossover(ctx, src, dst))
		assertCrossoverProvenance(t, src, dst)
	}
}

func TestParallelBackend_MutateKeepsElite(t *testing.T) {
	ctx := context.Background()
	pop := mustPopulation(t, 64, 4)
	b := NewParallelBackend(5)
	require.NoError(t, b.Init(pop, NewSource(2), 5))
	before := rows(pop)

	params := MutationConfig{MuIndividuals: 1000, MuGenes: 0, SigmaGenes: 1, Step: 0.25}
	require.NoError(t, b.Mutate(ctx, pop, params))

	assert.Equal(t, before[0], pop.Individual(0))
	for i := 1; i < pop.Size(); i++ {
		for k, g := range pop.Individual(i) {
			assert.LessOrEqual(t, math.Abs(g-before[i][k]), 0.25)
		}
	}
}

func TestParallelBackend_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pop := randomPopulation(t, 8, 3, 33)
	err := NewParallelBackend(2).Evaluate(ctx, pop, cubicData(t, 10), make([]float64, 8))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParallelBackend_MoreLanesThanRows(t *testing.T) {
	ctx := context.Background()
	pop := mustPopulation(t, 4, 3)
	b := NewParallelBackend(16)
	require.NoError(t, b.Init(pop, NewSource(3), 1))

	fitness := make([]float64, 4)
	require.NoError(t, b.Evaluate(ctx, pop, cubicData(t, 5), fitness))
	for _, f := range fitness {
		assert.Positive(t, f)
	}
}
