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

package orchestrator

import (
	"github.com/ahenroid/ptptl-0.2/overlay"
)

// Events is the callback surface spec.md §4.K requires the orchestrator
// to provide: open/close peer, search-hit, get-progress/done/error,
// join-result, membership-accept. The orchestrator never invents
// behavior on top of these — callers wanting UI, logging, or persistence
// side effects implement Events and pass it to New.
type Events interface {
	// OnPeerOpen/OnPeerClose fire when a peer connection is added to or
	// dropped from the peer set, inbound or outbound.
	OnPeerOpen(p *overlay.Peer)
	OnPeerClose(p *overlay.Peer)

	// OnSearchHit fires once per hit delivered for a search this node
	// originated.
	OnSearchHit(hit overlay.FileHandle)

	// OnGetProgress fires periodically during a GET transfer with bytes
	// moved so far. OnGetDone/OnGetError fire exactly once at the end of
	// a transfer, mutually exclusive.
	OnGetProgress(hit overlay.FileHandle, bytesSoFar int64)
	OnGetDone(hit overlay.FileHandle, totalBytes int64)
	OnGetError(hit overlay.FileHandle, err error)

	// OnJoinResult fires once JoinGroup concludes, successfully or not.
	OnJoinResult(groupName string, status overlay.JoinStatus, err error)

	// OnMembershipAccept is consulted by every group this orchestrator
	// creates as that group's AcceptFunc, unless the caller installs a
	// more specific gate via Group.SetAcceptFunc directly.
	OnMembershipAccept(groupName, commonName string) bool
}

// NoopEvents is a default no-op Events implementation; embed it to
// implement only the callbacks a particular caller cares about.
type NoopEvents struct{}

func (NoopEvents) OnPeerOpen(*overlay.Peer)                       {}
func (NoopEvents) OnPeerClose(*overlay.Peer)                      {}
func (NoopEvents) OnSearchHit(overlay.FileHandle)                 {}
func (NoopEvents) OnGetProgress(overlay.FileHandle, int64)        {}
func (NoopEvents) OnGetDone(overlay.FileHandle, int64)            {}
func (NoopEvents) OnGetError(overlay.FileHandle, error)           {}
func (NoopEvents) OnJoinResult(string, overlay.JoinStatus, error) {}
func (NoopEvents) OnMembershipAccept(string, string) bool         { return true }
