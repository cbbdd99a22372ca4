// Copyright (C) 2025 ptptl-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersCompleted tracks GET transfers by kind and outcome.
	TransfersCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "completed_total",
			Help:      "Total number of GET transfers completed",
		},
		[]string{"kind", "status"}, // public/group, ok/error
	)

	// TransfersActive tracks in-progress GET transfers.
	TransfersActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "active",
			Help:      "Number of in-progress GET transfers",
		},
	)

	// TransferBytes tracks payload bytes moved per transfer.
	TransferBytes = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transfers",
			Name:      "bytes",
			Help:      "Bytes moved per completed GET transfer",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB .. ~256MiB
		},
	)
)
