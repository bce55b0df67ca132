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
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/polyfit/services/dataset"
	"github.com/AleutianAI/polyfit/services/ga"
)

func resultsWithFitness(fits ...float64) []ga.Result {
	out := make([]ga.Result, len(fits))
	for i, f := range fits {
		out[i] = ga.Result{
			Solution:    []float64{float64(i), 1, 2, 3},
			Fitness:     f,
			Generations: 100 + i,
			Elapsed:     time.Duration(i+1) * time.Millisecond,
		}
	}
	return out
}

// =============================================================================
// Reduce
// =============================================================================

func TestReduce(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name string
		fits []float64
		want int
	}{
		{"lowest wins", []float64{5.2, 1.1, 3.7, 9.0}, 1},
		{"single", []float64{4}, 0},
		{"tie goes to lowest index", []float64{3, 1, 1, 2}, 1},
		{"nan never wins", []float64{nan, 7, nan}, 1},
		{"all nan", []float64{nan, nan}, 0},
		{"inf beaten by finite", []float64{math.Inf(1), 1e300}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reduce(resultsWithFitness(tt.fits...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReduce_Empty(t *testing.T) {
	_, err := Reduce(nil)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestSummarize(t *testing.T) {
	s := Summarize(resultsWithFitness(1, 3, math.NaN(), 5))
	assert.Equal(t, 4, s.Workers)
	assert.Equal(t, 3, s.Finite)
	assert.InDelta(t, 3.0, s.MeanFitness, 1e-12)
	assert.InDelta(t, 2.0, s.StdDevFitness, 1e-12)
	assert.Equal(t, 1.0, s.MinFitness)
	assert.Equal(t, 5.0, s.MaxFitness)
	assert.InDelta(t, 101.5, s.MeanGenerations, 1e-12)
	assert.Equal(t, 4*time.Millisecond, s.MaxElapsed)

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Workers)
}

// =============================================================================
// Codec
// =============================================================================

func TestCodec(t *testing.T) {
	sol := []float64{1, -2.5, math.Inf(1), 0}
	b, err := EncodeSolution(sol)
	require.NoError(t, err)
	got, err := DecodeSolution(b)
	require.NoError(t, err)
	assert.Equal(t, sol, got)

	b, err = EncodeFitness(math.NaN())
	require.NoError(t, err)
	f, err := DecodeFitness(b)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(f))

	b, err = EncodeElapsed(1500 * time.Millisecond)
	require.NoError(t, err)
	d, err := DecodeElapsed(b)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	b, err = EncodeGenerations(4321)
	require.NoError(t, err)
	n, err := DecodeGenerations(b)
	require.NoError(t, err)
	assert.Equal(t, 4321, n)
}

func TestCodec_RejectsGarbage(t *testing.T) {
	_, err := DecodeFitness([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
	_, err = DecodeSolution([]byte{0x0a})
	assert.Error(t, err)
}

// =============================================================================
// LocalNetwork
// =============================================================================

func TestLocalNetwork_SendRecv(t *testing.T) {
	net, err := NewLocalNetwork(3)
	require.NoError(t, err)
	defer net.Close()

	ctx := context.Background()
	a, _ := net.Endpoint(1)
	b, _ := net.Endpoint(0)
	assert.Equal(t, 3, a.Size())

	payload := []byte("hello")
	require.NoError(t, a.Send(ctx, 0, TagFitness, payload))
	payload[0] = 'j'

	// A different tag from the same source is a different queue.
	require.NoError(t, a.Send(ctx, 0, TagSolution, []byte("first")))

	got, err := b.Recv(ctx, 1, TagSolution)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	got, err = b.Recv(ctx, 1, TagFitness)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got), "send must copy the payload")
}

func TestLocalNetwork_Errors(t *testing.T) {
	_, err := NewLocalNetwork(0)
	assert.ErrorIs(t, err, ErrTransport)

	net, err := NewLocalNetwork(2)
	require.NoError(t, err)

	_, err = net.Endpoint(2)
	assert.ErrorIs(t, err, ErrRank)

	ep, _ := net.Endpoint(0)
	err = ep.Send(context.Background(), 5, TagFitness, nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, ErrRank)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ep.Recv(ctx, 1, TagFitness)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, net.Close())
	_, err = ep.Recv(context.Background(), 1, TagFitness)
	assert.ErrorIs(t, err, ErrClosed)
	err = ep.Send(context.Background(), 1, TagFitness, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

// =============================================================================
// Aggregator
// =============================================================================

func TestAggregator_ReducesRegardlessOfArrivalOrder(t *testing.T) {
	results := resultsWithFitness(5.2, 1.1, 3.7, 9.0)

	orders := [][]int{{1, 2, 3}, {3, 2, 1}, {2, 3, 1}}
	for _, order := range orders {
		net, err := NewLocalNetwork(4)
		require.NoError(t, err)
		ctx := context.Background()

		// Workers report in the given order before the coordinator starts
		// receiving.
		for _, rank := range order {
			ep, _ := net.Endpoint(rank)
			require.NoError(t, NewAggregator(ep, nil).Report(ctx, results[rank]))
		}

		coord, _ := net.Endpoint(0)
		global, err := NewAggregator(coord, nil).Gather(ctx, results[0])
		require.NoError(t, err)

		assert.Equal(t, 1, global.Worker, "order %v", order)
		assert.Equal(t, 1.1, global.Fitness)
		assert.Equal(t, results[1].Solution, global.Solution)
		assert.Equal(t, results[1].Generations, global.Generations)
		assert.Equal(t, results[1].Elapsed, global.Elapsed)
		require.Len(t, global.Workers, 4)
		for i := range results {
			assert.Equal(t, results[i].Fitness, global.Workers[i].Fitness)
		}
		net.Close()
	}
}

func TestAggregator_ConcurrentWorkers(t *testing.T) {
	results := resultsWithFitness(5.2, 1.1, 3.7, 9.0)
	net, err := NewLocalNetwork(4)
	require.NoError(t, err)
	defer net.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for rank := 3; rank >= 1; rank-- {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			ep, _ := net.Endpoint(rank)
			_, err := NewAggregator(ep, nil).Complete(ctx, results[rank])
			assert.NoError(t, err)
		}(rank)
	}

	coord, _ := net.Endpoint(0)
	global, err := NewAggregator(coord, nil).Complete(ctx, results[0])
	wg.Wait()
	require.NoError(t, err)
	require.NotNil(t, global)
	assert.Equal(t, 1, global.Worker)
}

func TestAggregator_RoleChecks(t *testing.T) {
	net, _ := NewLocalNetwork(2)
	defer net.Close()
	coord, _ := net.Endpoint(0)
	worker, _ := net.Endpoint(1)

	assert.Error(t, NewAggregator(coord, nil).Report(context.Background(), ga.Result{}))
	_, err := NewAggregator(worker, nil).Gather(context.Background(), ga.Result{})
	assert.Error(t, err)
}

func TestAggregator_SingleWorker(t *testing.T) {
	net, _ := NewLocalNetwork(1)
	defer net.Close()
	coord, _ := net.Endpoint(0)

	own := resultsWithFitness(2.5)[0]
	global, err := NewAggregator(coord, nil).Complete(context.Background(), own)
	require.NoError(t, err)
	assert.Equal(t, 0, global.Worker)
	assert.Equal(t, 2.5, global.Fitness)
}

func TestAggregator_HungWorkerBlocksUntilCancelled(t *testing.T) {
	net, _ := NewLocalNetwork(2)
	defer net.Close()
	coord, _ := net.Endpoint(0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := NewAggregator(coord, nil).Gather(ctx, ga.Result{Fitness: 1})
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

// =============================================================================
// Local runs
// =============================================================================

func TestRunLocal(t *testing.T) {
	data, err := dataset.Generate([]float64{1, 3, -1, 2}, 60, -5, 5, 0, 1)
	require.NoError(t, err)

	cfg := ga.DefaultConfig()
	cfg.Population = 40
	cfg.MaxGenerations = 25

	global, err := RunLocal(context.Background(), LocalRun{
		Workers: 3,
		Config:  cfg,
		Data:    data,
		SolverOptions: func(rank int) []ga.Option {
			if rank == 2 {
				return []ga.Option{ga.WithBackend(ga.NewParallelBackend(2))}
			}
			return nil
		},
	})
	require.NoError(t, err)

	require.Len(t, global.Workers, 3)
	for i, w := range global.Workers {
		assert.LessOrEqual(t, global.Fitness, w.Fitness, "worker %d beats the winner", i)
		assert.Len(t, w.Solution, 4)
	}
	assert.Equal(t, global.Workers[global.Worker].Fitness, global.Fitness)
}

func TestRunLocal_DistinctSeeds(t *testing.T) {
	assert.Equal(t, uint64(10), WorkerSeed(7, 3))

	data, err := dataset.Generate([]float64{1, 3, -1, 2}, 30, -5, 5, 0, 1)
	require.NoError(t, err)
	cfg := ga.DefaultConfig()
	cfg.Population = 20
	cfg.MaxGenerations = 5

	global, err := RunLocal(context.Background(), LocalRun{Workers: 2, Config: cfg, Data: data})
	require.NoError(t, err)
	assert.NotEqual(t, global.Workers[0].Solution, global.Workers[1].Solution)
}

func TestRunLocal_InvalidConfigFailsAllRanks(t *testing.T) {
	data, _ := dataset.Generate([]float64{1}, 10, 0, 1, 0, 1)
	cfg := ga.DefaultConfig()
	cfg.Population = 3

	_, err := RunLocal(context.Background(), LocalRun{Workers: 3, Config: cfg, Data: data})
	assert.ErrorIs(t, err, ga.ErrInvalidConfig)
}
