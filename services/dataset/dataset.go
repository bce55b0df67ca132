// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset holds the sample points a polynomial is fitted against.
//
// A Dataset is an ordered, immutable sequence of (x, y) points. It is read
// once at startup, then shared read-only by every fitness evaluation and,
// in multi-worker runs, by every worker. Nothing in this package mutates a
// Dataset after construction, so no locking is needed.
//
// # File Format
//
// Sample files hold whitespace-separated "x y" pairs, one pair per line:
//
//	-5.000000 -289.000000
//	-4.979960 -284.152802
//	...
//
// # Usage
//
//	data, err := dataset.ReadFile("points.txt", 500)
//	if err != nil {
//	    return fmt.Errorf("load samples: %w", err)
//	}
package dataset

import (
	"errors"
	"math"
	"math/rand/v2"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrOpen indicates the sample file could not be opened.
	ErrOpen = errors.New("cannot open sample file")

	// ErrShortDataset indicates the input held fewer points than requested.
	ErrShortDataset = errors.New("sample file holds fewer points than requested")

	// ErrMalformed indicates a token in the input is not a number.
	ErrMalformed = errors.New("malformed sample value")

	// ErrEmpty indicates an operation that needs at least one point got none.
	ErrEmpty = errors.New("dataset is empty")
)

// =============================================================================
// Types
// =============================================================================

// Point is a single (x, y) sample.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dataset is an immutable ordered sequence of sample points.
//
// The zero value is an empty dataset. Use New to build one from a slice;
// the slice is copied so later changes by the caller are not observed.
//
// Thread Safety: Safe for concurrent read access.
type Dataset struct {
	points []Point
}

// New creates a Dataset holding a copy of points.
func New(points []Point) Dataset {
	cp := make([]Point, len(points))
	copy(cp, points)
	return Dataset{points: cp}
}

// Len returns the number of points.
func (d Dataset) Len() int {
	return len(d.points)
}

// At returns point i. It panics if i is out of range.
func (d Dataset) At(i int) Point {
	return d.points[i]
}

// IsEmpty reports whether the dataset holds no points.
func (d Dataset) IsEmpty() bool {
	return len(d.points) == 0
}

// Points returns a copy of the underlying points.
func (d Dataset) Points() []Point {
	cp := make([]Point, len(d.points))
	copy(cp, d.points)
	return cp
}

// Bounds returns the smallest and largest x value in the dataset.
//
// Outputs:
//   - lo, hi: The x range. Both are NaN for an empty dataset.
func (d Dataset) Bounds() (lo, hi float64) {
	if len(d.points) == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi = d.points[0].X, d.points[0].X
	for _, p := range d.points[1:] {
		lo = math.Min(lo, p.X)
		hi = math.Max(hi, p.X)
	}
	return lo, hi
}

// =============================================================================
// Polynomial helpers
// =============================================================================

// Polynomial evaluates sum(coeffs[k] * x^k) using Horner's rule.
//
// coeffs[0] is the constant term. An empty coefficient slice evaluates to 0.
func Polynomial(coeffs []float64, x float64) float64 {
	v := 0.0
	for k := len(coeffs) - 1; k >= 0; k-- {
		v = v*x + coeffs[k]
	}
	return v
}

// Generate samples a polynomial at n evenly spaced x values in [lo, hi].
//
// Description:
//
//	Each y is Polynomial(coeffs, x) plus Gaussian noise with standard
//	deviation noise. With noise == 0 the samples lie exactly on the curve,
//	so an individual carrying coeffs scores a fitness of zero.
//
// Inputs:
//   - coeffs: Generating coefficients, constant term first.
//   - n: Number of points. Must be positive.
//   - lo, hi: x range. For n == 1 the single point sits at lo.
//   - noise: Standard deviation of the additive noise. 0 disables noise.
//   - seed: Seed for the noise stream.
//
// Outputs:
//   - Dataset: The generated samples.
//   - error: ErrEmpty when n <= 0.
func Generate(coeffs []float64, n int, lo, hi, noise float64, seed uint64) (Dataset, error) {
	if n <= 0 {
		return Dataset{}, ErrEmpty
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	points := make([]Point, n)
	for k := range points {
		x := lo
		if n > 1 {
			x = lo + (hi-lo)*float64(k)/float64(n-1)
		}
		y := Polynomial(coeffs, x)
		if noise > 0 {
			y += noise * rng.NormFloat64()
		}
		points[k] = Point{X: x, Y: y}
	}
	return Dataset{points: points}, nil
}
