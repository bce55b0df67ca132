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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ==============================================================================
// Prometheus Metrics
// ==============================================================================

var (
	// generationsTotal counts completed generations by backend
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfit_generations_total",
		Help: "Total GA generations completed by backend",
	}, []string{"variant"})

	// bestFitness tracks the best fitness of the most recent generation
	bestFitness = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyfit_best_fitness",
		Help: "Best fitness of the most recent generation by backend",
	}, []string{"variant"})

	// generationDuration tracks wall time per generation
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polyfit_generation_duration_seconds",
		Help:    "GA generation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	}, []string{"variant"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfit_runs_total",
		Help: "Total GA runs by backend and stop reason",
	}, []string{"variant", "reason"})
)

func recordGeneration(variant string, best float64, d time.Duration) {
	generationsTotal.WithLabelValues(variant).Inc()
	generationDuration.WithLabelValues(variant).Observe(d.Seconds())
	// NaN is skipped; the gauge keeps the last finite value.
	if !math.IsNaN(best) {
		bestFitness.WithLabelValues(variant).Set(best)
	}
}

func recordRun(variant string, reason StopReason) {
	runsTotal.WithLabelValues(variant, string(reason)).Inc()
}
