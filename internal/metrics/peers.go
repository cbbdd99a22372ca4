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
	// PeersConnected tracks peer connection attempts by direction and
	// outcome.
	PeersConnected = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "connected_total",
			Help:      "Total number of peer connections established",
		},
		[]string{"direction", "status"}, // inbound/outbound/unknown, ok/error
	)

	// PeersActive tracks currently open peer connections.
	PeersActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "active",
			Help:      "Number of currently open peer connections",
		},
	)

	// PacketsDispatched tracks packets handled per type.
	PacketsDispatched = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "packets_dispatched_total",
			Help:      "Total number of overlay packets dispatched by type",
		},
		[]string{"type"}, // search, search_reply, ping, pong, push
	)
)
