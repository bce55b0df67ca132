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
	"cmp"
	"math"
	"slices"
)

// CompareFitness orders fitness values ascending with NaN after every
// number, including +Inf.
func CompareFitness(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return cmp.Compare(a, b)
}

// Rank returns the indices of fitness in selection order.
//
// Description:
//
//	order[r] is the original index of the individual that ends up at rank
//	r. Sorting is ascending by fitness; equal values keep ascending index
//	order and NaN values go last.
func Rank(fitness []float64) []int {
	order := make([]int, len(fitness))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := CompareFitness(fitness[a], fitness[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return order
}

// Select sorts src into dst by ascending fitness and permutes fitness to
// match dst.
//
// Outputs: dst row r = src row order[r]; fitness[r] = old fitness[order[r]].
func Select(src, dst *Population, fitness []float64) {
	order := Rank(fitness)
	ReorderRange(src, dst, order, 0, len(order))
	permute(fitness, order)
}

// ReorderRange copies src row order[r] to dst row r for r in [lo, hi).
func ReorderRange(src, dst *Population, order []int, lo, hi int) {
	for r := lo; r < hi; r++ {
		copy(dst.Individual(r), src.Individual(order[r]))
	}
}

func permute(values []float64, order []int) {
	sorted := make([]float64, len(values))
	for r, i := range order {
		sorted[r] = values[i]
	}
	copy(values, sorted)
}
