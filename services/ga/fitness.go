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
	"github.com/AleutianAI/polyfit/services/dataset"
)

// Fitness returns the sum of squared residuals of genes against data.
//
// Description:
//
//	fitness = Σ_k (Σ_j genes[j] * x_k^j - y_k)²
//
//	The polynomial is evaluated with Horner's rule. Lower is better; an
//	exact fit scores 0. NaN and Inf are not errors and propagate to the
//	result.
func Fitness(genes []float64, data dataset.Dataset) float64 {
	sum := 0.0
	for k := 0; k < data.Len(); k++ {
		p := data.At(k)
		r := dataset.Polynomial(genes, p.X) - p.Y
		sum += r * r
	}
	return sum
}

// EvaluateRange writes the fitness of individuals [lo, hi) into fitness.
//
// fitness must have at least pop.Size() elements. Rows outside the range
// are left untouched, so disjoint ranges can be evaluated concurrently.
func EvaluateRange(pop *Population, data dataset.Dataset, fitness []float64, lo, hi int) {
	for i := lo; i < hi; i++ {
		fitness[i] = Fitness(pop.Individual(i), data)
	}
}
