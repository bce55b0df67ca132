// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ga implements the genetic algorithm that fits polynomial
// coefficients to sample points.
//
// # Overview
//
// An individual is a vector of L coefficients (constant term first). A
// population of P individuals evolves generation by generation:
//
//	┌───────────┐   ┌──────────┐   ┌─────────┐   ┌───────────┐
//	│ Crossover │ → │ Mutation │ → │ Fitness │ → │ Selection │ ─┐
//	└───────────┘   └──────────┘   └─────────┘   └───────────┘  │
//	      ▲                                                      │
//	      └──────────────────── next generation ─────────────────┘
//
// Crossover keeps the first half of the (sorted) population and refills the
// second half with children of parents drawn from the first half. Mutation
// perturbs genes of every individual except index 0, so the best individual
// of the previous generation always survives. Fitness is the sum of squared
// residuals against the dataset (lower is better). Selection sorts the
// population ascending by fitness.
//
// # Termination
//
// The loop stops when the generation limit is reached, the best fitness
// drops to the target error, or the best fitness has not moved by more than
// the stagnation epsilon for MaxConstIter consecutive generations.
//
// # Backends
//
// The per-stage work is done by a Backend. SerialBackend runs every stage on
// the calling goroutine. ParallelBackend shards each stage across lanes,
// each lane drawing from its own random stream, with a barrier between
// stages.
//
// # Thread Safety
//
// A Solver is not safe for concurrent use. Independent solvers share
// nothing but the read-only dataset and can run in parallel.
package ga
