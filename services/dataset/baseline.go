// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Baseline is the closed-form least-squares fit of a dataset.
//
// It is the reference point a GA answer is compared against: no search can
// score below Baseline.Residual on the same data.
type Baseline struct {
	// Coefficients are the fitted coefficients, constant term first.
	Coefficients []float64 `json:"coefficients"`

	// Residual is the sum of squared residuals of the fit.
	Residual float64 `json:"residual"`
}

// LeastSquares fits a polynomial with length coefficients to d.
//
// Description:
//
//	Builds the n x length Vandermonde matrix V (V[k][j] = x_k^j) and solves
//	min ||V c - y|| through gonum's QR-based SolveVec.
//
// Inputs:
//   - d: The samples. Must hold at least length points.
//   - length: Number of coefficients (polynomial degree + 1).
//
// Outputs:
//   - Baseline: Fitted coefficients and their residual.
//   - error: Non-nil when the system is underdetermined or singular.
func LeastSquares(d Dataset, length int) (Baseline, error) {
	n := d.Len()
	if n == 0 {
		return Baseline{}, ErrEmpty
	}
	if length <= 0 || n < length {
		return Baseline{}, fmt.Errorf("least squares needs at least %d points, got %d", length, n)
	}

	v := mat.NewDense(n, length, nil)
	y := mat.NewVecDense(n, nil)
	for k, p := range d.points {
		xp := 1.0
		for j := 0; j < length; j++ {
			v.Set(k, j, xp)
			xp *= p.X
		}
		y.SetVec(k, p.Y)
	}

	var c mat.VecDense
	if err := c.SolveVec(v, y); err != nil {
		return Baseline{}, fmt.Errorf("solve least squares: %w", err)
	}

	coeffs := make([]float64, length)
	for j := range coeffs {
		coeffs[j] = c.AtVec(j)
	}

	residual := 0.0
	for _, p := range d.points {
		r := Polynomial(coeffs, p.X) - p.Y
		residual += r * r
	}
	if math.IsNaN(residual) {
		return Baseline{}, fmt.Errorf("least squares produced a NaN residual")
	}
	return Baseline{Coefficients: coeffs, Residual: residual}, nil
}
