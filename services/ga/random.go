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
	"math"
	"math/rand/v2"
)

// seedMix decorrelates the two PCG words derived from one seed.
const seedMix = 0x9e3779b97f4a7c15

// Source produces the random variates used by the GA operators.
//
// Description:
//
//	Wraps a PCG generator. Two sources built from the same seed yield the
//	same sequence, so runs are reproducible for a fixed seed, backend and
//	lane count.
//
// Thread Safety:
//
//	Not safe for concurrent use. Parallel code draws from per-lane
//	sources obtained with Split.
type Source struct {
	rng *rand.Rand
}

// NewSource returns a Source seeded with seed.
func NewSource(seed uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed, seed^seedMix))}
}

// Uniform returns a value in [0, 1).
func (s *Source) Uniform() float64 {
	return s.rng.Float64()
}

// IntN returns a value in [0, n). It panics if n <= 0.
func (s *Source) IntN(n int) int {
	return s.rng.IntN(n)
}

// Normal draws from a normal distribution with the given mean and standard
// deviation using the polar (Marsaglia) method.
//
// Description:
//
//	Draws v1, v2 uniformly in [-1, 1) until S = v1² + v2² lies in (0, 1),
//	then returns mean + stddev * v1 * sqrt(-2 ln S / S). Only the first of
//	the two variates the transform yields is used.
func (s *Source) Normal(mean, stddev float64) float64 {
	for {
		v1 := 2*s.rng.Float64() - 1
		v2 := 2*s.rng.Float64() - 1
		sq := v1*v1 + v2*v2
		if sq > 0 && sq < 1 {
			return mean + stddev*v1*math.Sqrt(-2*math.Log(sq)/sq)
		}
	}
}

// Split derives n independent sources from s.
//
// The derived seeds are drawn from s, so the result is deterministic for a
// given parent state, and the parent advances by n draws.
func (s *Source) Split(n int) []*Source {
	out := make([]*Source, n)
	for i := range out {
		out[i] = NewSource(s.rng.Uint64())
	}
	return out
}
