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

// pairCount returns the number of child pairs that fill the second half of
// a population of size p.
func pairCount(p int) int {
	return (p - p/2 + 1) / 2
}

// Crossover builds the next population in dst from src.
//
// Description:
//
//	Rows [0, P/2) are copied verbatim. The remaining rows are filled two at
//	a time: parents p1 and p2 are drawn uniformly from [0, P/2) and a
//	crosspoint cp uniformly from {1..L-2}. Child A takes genes [0, cp)
//	from p1 and [cp, L) from p2; child B is the complement. When P/2 is
//	odd the last child B would fall outside the population and is dropped.
//
// Inputs:
//   - src: The current (sorted) population. Not modified.
//   - dst: Receives the next population. Same shape as src.
//   - rng: Random source for parent and crosspoint draws.
func Crossover(src, dst *Population, rng *Source) {
	half := src.Size() / 2
	copyRows(src, dst, 0, half)
	CrossoverPairs(src, dst, rng, 0, pairCount(src.Size()))
}

// CrossoverPairs fills child pair slots [lo, hi) of dst.
//
// Pair slot k writes rows P/2+2k and P/2+2k+1. Disjoint slot ranges write
// disjoint rows and may run concurrently with separate sources.
func CrossoverPairs(src, dst *Population, rng *Source, lo, hi int) {
	size := src.Size()
	length := src.Length()
	half := size / 2

	for k := lo; k < hi; k++ {
		p1 := src.Individual(rng.IntN(half))
		p2 := src.Individual(rng.IntN(half))
		cp := 1 + rng.IntN(length-2)

		a := half + 2*k
		childA := dst.Individual(a)
		copy(childA[:cp], p1[:cp])
		copy(childA[cp:], p2[cp:])

		if a+1 < size {
			childB := dst.Individual(a + 1)
			copy(childB[:cp], p2[:cp])
			copy(childB[cp:], p1[cp:])
		}
	}
}
