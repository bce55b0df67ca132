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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ReadFile loads exactly n points from the sample file at path.
//
// Description:
//
//	Opens the file and delegates to Read. A missing or unreadable file is
//	reported as ErrOpen so callers can abort before any GA work starts.
//
// Inputs:
//   - path: Path to a whitespace-separated "x y" file.
//   - n: Number of points expected. Must be positive.
//
// Outputs:
//   - Dataset: The first n points of the file.
//   - error: ErrOpen, ErrShortDataset or ErrMalformed (wrapped).
func ReadFile(path string, n int) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("%w %s: %v", ErrOpen, path, err)
	}
	defer f.Close()

	d, err := Read(f, n)
	if err != nil {
		return Dataset{}, fmt.Errorf("read %s: %w", path, err)
	}
	return d, nil
}

// Read parses n "x y" pairs from r.
//
// Tokens may be separated by any whitespace. Input after the n-th pair is
// ignored. Fewer than n complete pairs is ErrShortDataset.
func Read(r io.Reader, n int) (Dataset, error) {
	if n <= 0 {
		return Dataset{}, ErrEmpty
	}

	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	points := make([]Point, 0, n)
	var pending []float64
	for len(points) < n && scanner.Scan() {
		tok := scanner.Text()
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return Dataset{}, fmt.Errorf("%w: %q at point %d", ErrMalformed, tok, len(points))
		}
		pending = append(pending, v)
		if len(pending) == 2 {
			points = append(points, Point{X: pending[0], Y: pending[1]})
			pending = pending[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return Dataset{}, fmt.Errorf("scan samples: %w", err)
	}
	if len(points) < n {
		return Dataset{}, fmt.Errorf("%w: got %d, want %d", ErrShortDataset, len(points), n)
	}
	return Dataset{points: points}, nil
}

// WriteFile stores d at path in the format Read understands.
func WriteFile(path string, d Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write emits one "x y" line per point.
func Write(w io.Writer, d Dataset) error {
	bw := bufio.NewWriter(w)
	for _, p := range d.points {
		bw.WriteString(strconv.FormatFloat(p.X, 'g', -1, 64))
		bw.WriteByte(' ')
		bw.WriteString(strconv.FormatFloat(p.Y, 'g', -1, 64))
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	return nil
}
