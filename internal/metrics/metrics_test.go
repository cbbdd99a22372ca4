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

import "testing"

func TestMetricsRegistration(t *testing.T) {
	if PeersConnected == nil {
		t.Error("PeersConnected metric is nil")
	}
	if PeersActive == nil {
		t.Error("PeersActive metric is nil")
	}
	if PacketsDispatched == nil {
		t.Error("PacketsDispatched metric is nil")
	}
	if SearchesOriginated == nil {
		t.Error("SearchesOriginated metric is nil")
	}
	if SearchesActive == nil {
		t.Error("SearchesActive metric is nil")
	}
	if SearchHits == nil {
		t.Error("SearchHits metric is nil")
	}
	if TransfersCompleted == nil {
		t.Error("TransfersCompleted metric is nil")
	}
	if TransfersActive == nil {
		t.Error("TransfersActive metric is nil")
	}
	if TransferBytes == nil {
		t.Error("TransferBytes metric is nil")
	}
	if GroupJoins == nil {
		t.Error("GroupJoins metric is nil")
	}
	if GroupsActive == nil {
		t.Error("GroupsActive metric is nil")
	}
	if MembershipChecks == nil {
		t.Error("MembershipChecks metric is nil")
	}
}

func TestCountersIncrement(t *testing.T) {
	PeersConnected.WithLabelValues("outbound", "ok").Inc()
	SearchesOriginated.WithLabelValues("public").Inc()
	TransfersCompleted.WithLabelValues("public", "ok").Inc()
	GroupJoins.WithLabelValues("created").Inc()
	MembershipChecks.WithLabelValues("accepted").Inc()
}
