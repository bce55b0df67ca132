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

// Mutate perturbs every individual except index 0.
//
// Description:
//
//	For each individual i >= 1 a threshold t is drawn from
//	Normal(MuIndividuals, SigmaIndividuals). For each gene a draw from
//	Normal(MuGenes, SigmaGenes) is compared against t; when it is lower the
//	gene moves by Step * (2u - 1), u uniform in [0, 1). No change exceeds
//	Step in magnitude.
//
//	Index 0 holds the best individual of the previous generation and is
//	never touched.
func Mutate(pop *Population, rng *Source, params MutationConfig) {
	MutateRange(pop, rng, params, 1, pop.Size())
}

// MutateRange applies mutation to rows [lo, hi), skipping row 0.
func MutateRange(pop *Population, rng *Source, params MutationConfig, lo, hi int) {
	if lo < 1 {
		lo = 1
	}
	for i := lo; i < hi; i++ {
		threshold := rng.Normal(params.MuIndividuals, params.SigmaIndividuals)
		row := pop.Individual(i)
		for k := range row {
			if rng.Normal(params.MuGenes, params.SigmaGenes) < threshold {
				row[k] += params.Step * (2*rng.Uniform() - 1)
			}
		}
	}
}
