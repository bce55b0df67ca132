// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cluster

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// workerResultsTotal counts worker results collected by the coordinator
	workerResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfit_worker_results_total",
		Help: "Total worker results collected by the coordinator",
	})

	// gatherDuration tracks how long the coordinator waits for all workers
	gatherDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyfit_gather_duration_seconds",
		Help:    "Time the coordinator spent collecting worker results",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4.4min
	})
)
