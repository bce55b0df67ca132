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
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cubic = []float64{1, 3, -1, 2} // 2x^3 - x^2 + 3x + 1

func TestPolynomial(t *testing.T) {
	tests := []struct {
		name   string
		coeffs []float64
		x      float64
		want   float64
	}{
		{"empty", nil, 3, 0},
		{"constant", []float64{7}, 100, 7},
		{"cubic at zero", cubic, 0, 1},
		{"cubic at two", cubic, 2, 16 - 4 + 6 + 1},
		{"cubic at minus five", cubic, -5, -250 - 25 - 15 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Polynomial(tt.coeffs, tt.x), 1e-12)
		})
	}
}

func TestGenerate(t *testing.T) {
	t.Run("noiseless points lie on the curve", func(t *testing.T) {
		d, err := Generate(cubic, 500, -5, 5, 0, 1)
		require.NoError(t, err)
		require.Equal(t, 500, d.Len())

		lo, hi := d.Bounds()
		assert.Equal(t, -5.0, lo)
		assert.Equal(t, 5.0, hi)
		for i := 0; i < d.Len(); i++ {
			p := d.At(i)
			assert.Equal(t, Polynomial(cubic, p.X), p.Y)
		}
	})

	t.Run("noise is reproducible per seed", func(t *testing.T) {
		a, err := Generate(cubic, 50, -1, 1, 0.5, 42)
		require.NoError(t, err)
		b, err := Generate(cubic, 50, -1, 1, 0.5, 42)
		require.NoError(t, err)
		assert.Equal(t, a.Points(), b.Points())
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := Generate(cubic, 0, -1, 1, 0, 1)
		assert.ErrorIs(t, err, ErrEmpty)
	})
}

func TestNew_CopiesInput(t *testing.T) {
	pts := []Point{{1, 2}, {3, 4}}
	d := New(pts)
	pts[0].X = 99
	assert.Equal(t, 1.0, d.At(0).X)

	out := d.Points()
	out[1].Y = -1
	assert.Equal(t, 4.0, d.At(1).Y)
}

func TestBounds_Empty(t *testing.T) {
	lo, hi := Dataset{}.Bounds()
	assert.True(t, math.IsNaN(lo))
	assert.True(t, math.IsNaN(hi))
	assert.True(t, Dataset{}.IsEmpty())
}

func TestRead(t *testing.T) {
	t.Run("mixed whitespace", func(t *testing.T) {
		d, err := Read(strings.NewReader("1 2\n3\t4\n\n5   6\n"), 3)
		require.NoError(t, err)
		assert.Equal(t, []Point{{1, 2}, {3, 4}, {5, 6}}, d.Points())
	})

	t.Run("ignores trailing points", func(t *testing.T) {
		d, err := Read(strings.NewReader("1 2\n3 4\n5 6\n"), 2)
		require.NoError(t, err)
		assert.Equal(t, 2, d.Len())
	})

	t.Run("short input", func(t *testing.T) {
		_, err := Read(strings.NewReader("1 2\n3\n"), 2)
		assert.ErrorIs(t, err, ErrShortDataset)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := Read(strings.NewReader("1 2\nx 4\n"), 2)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("non-positive count", func(t *testing.T) {
		_, err := Read(strings.NewReader("1 2"), 0)
		assert.ErrorIs(t, err, ErrEmpty)
	})
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.txt"), 10)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestWriteRead_RoundTripFile(t *testing.T) {
	d, err := Generate(cubic, 100, -5, 5, 0.25, 7)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "points.txt")
	require.NoError(t, WriteFile(path, d))

	got, err := ReadFile(path, 100)
	require.NoError(t, err)
	assert.Equal(t, d.Points(), got.Points())
}

func TestWrite_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, New([]Point{{-1.5, 2}, {0, 0.25}})))
	assert.Equal(t, "-1.5 2\n0 0.25\n", buf.String())
}

func TestLeastSquares(t *testing.T) {
	t.Run("recovers noiseless cubic", func(t *testing.T) {
		d, err := Generate(cubic, 500, -5, 5, 0, 1)
		require.NoError(t, err)

		b, err := LeastSquares(d, 4)
		require.NoError(t, err)
		require.Len(t, b.Coefficients, 4)
		for j, want := range cubic {
			assert.InDelta(t, want, b.Coefficients[j], 1e-8)
		}
		assert.InDelta(t, 0, b.Residual, 1e-12*float64(d.Len())*1e4)
	})

	t.Run("noisy fit beats the generating curve", func(t *testing.T) {
		d, err := Generate(cubic, 300, -5, 5, 1.0, 3)
		require.NoError(t, err)

		b, err := LeastSquares(d, 4)
		require.NoError(t, err)

		truth := 0.0
		for _, p := range d.Points() {
			r := Polynomial(cubic, p.X) - p.Y
			truth += r * r
		}
		assert.LessOrEqual(t, b.Residual, truth+1e-9)
	})

	t.Run("underdetermined", func(t *testing.T) {
		_, err := LeastSquares(New([]Point{{1, 1}, {2, 2}}), 4)
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := LeastSquares(Dataset{}, 4)
		assert.ErrorIs(t, err, ErrEmpty)
	})
}
