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
	// SearchesOriginated tracks searches this node originated, by scope.
	SearchesOriginated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "searches",
			Name:      "originated_total",
			Help:      "Total number of searches originated",
		},
		[]string{"scope"}, // public, secure
	)

	// SearchesActive tracks in-flight searches awaiting replies.
	SearchesActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "searches",
			Name:      "active",
			Help:      "Number of searches with outstanding search-table entries",
		},
	)

	// SearchHits tracks hits delivered to a search callback.
	SearchHits = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "searches",
			Name:      "hits_total",
			Help:      "Total number of search hits delivered to callbacks",
		},
	)
)
