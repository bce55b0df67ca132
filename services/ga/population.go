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
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Population is a P x L block of genes, one row per individual.
//
// Description:
//
//	Backed by a gonum Dense matrix whose rows are contiguous in a single
//	flat buffer. Individual(i) returns a view into that buffer, so writes
//	through the returned slice modify the population.
//
// Thread Safety:
//
//	Not safe for concurrent use, except that goroutines may write disjoint
//	rows concurrently.
type Population struct {
	genes *mat.Dense
}

// NewPopulation allocates a zeroed population of size individuals with
// length genes each.
func NewPopulation(size, length int) (*Population, error) {
	if size <= 0 || length <= 0 {
		return nil, fmt.Errorf("%w: population %dx%d", ErrInvalidConfig, size, length)
	}
	return &Population{genes: mat.NewDense(size, length, nil)}, nil
}

// Size returns P, the number of individuals.
func (p *Population) Size() int {
	r, _ := p.genes.Dims()
	return r
}

// Length returns L, the number of genes per individual.
func (p *Population) Length() int {
	_, c := p.genes.Dims()
	return c
}

// Individual returns a view of individual i's genes.
// It panics if i is out of range.
func (p *Population) Individual(i int) []float64 {
	return p.genes.RawRowView(i)
}

// Randomize fills rows [lo, hi) with genes uniform in [-bound, bound).
func (p *Population) Randomize(rng *Source, bound float64, lo, hi int) {
	for i := lo; i < hi; i++ {
		row := p.Individual(i)
		for k := range row {
			row[k] = bound * (2*rng.Uniform() - 1)
		}
	}
}

// copyRows copies rows [lo, hi) of src into the same rows of dst.
func copyRows(src, dst *Population, lo, hi int) {
	for i := lo; i < hi; i++ {
		copy(dst.Individual(i), src.Individual(i))
	}
}

func sameShape(a, b *Population) error {
	ar, ac := a.genes.Dims()
	br, bc := b.genes.Dims()
	if ar != br || ac != bc {
		return fmt.Errorf("population shape mismatch: %dx%d vs %dx%d", ar, ac, br, bc)
	}
	return nil
}
