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

// Package orchestrator implements spec.md §4.K: the composition root that
// owns the secure store, the authenticator, the local identity, and
// every list overlay.Node itself doesn't — the in-flight get set — plus
// the callback seats callers hook into. It does no protocol work of its
// own; every operation delegates to store/auth/overlay and only adds
// lifecycle bookkeeping and the Events seat.
package orchestrator

import (
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahenroid/ptptl-0.2/auth"
	"github.com/ahenroid/ptptl-0.2/container"
	"github.com/ahenroid/ptptl-0.2/identity"
	"github.com/ahenroid/ptptl-0.2/internal/metrics"
	"github.com/ahenroid/ptptl-0.2/internal/ptplog"
	"github.com/ahenroid/ptptl-0.2/overlay"
	"github.com/ahenroid/ptptl-0.2/store"
)

var log = ptplog.For("orchestrator")

// ErrNoLocalIdentity is returned by New when the store holds no identity
// entry with a private key — fatal to the front-end per spec.md §5
// ("Failed store load at orchestrator startup is fatal to the front-end
// but not to the library itself": the library reports it, the caller
// decides whether to abort).
var ErrNoLocalIdentity = errors.New("orchestrator: store has no identity with a private key")

// Orchestrator composes one running participant: store, authenticator,
// local identity, and the overlay.Node that does the protocol work, plus
// the in-flight get set the node itself doesn't track.
type Orchestrator struct {
	Store *store.Store
	Local *identity.Identity
	Auth  *auth.Authenticator
	Node  *overlay.Node

	events Events
	gets   *container.List[*transfer]
	group  errgroup.Group
}

// New composes an Orchestrator around an already-loaded store: it finds
// the store's first identity with a private key (fatal if none),
// builds the authenticator and overlay.Node around it, and wires the
// node's peer-lifecycle and dispatch hooks to drive events/metrics.
func New(st *store.Store, ip uint32, port uint16, speed uint32, events Events) (*Orchestrator, error) {
	local, _, ok := st.FindIdentity("", true, nil, 0)
	if !ok {
		return nil, ErrNoLocalIdentity
	}
	if events == nil {
		events = NoopEvents{}
	}

	authenticator := auth.New(local)
	node := overlay.NewNode(local, authenticator, ip, port, speed)

	o := &Orchestrator{
		Store:  st,
		Local:  local,
		Auth:   authenticator,
		Node:   node,
		events: events,
		gets:   container.New[*transfer](),
	}

	node.OnPeerOpen = func(p *overlay.Peer) {
		metrics.PeersActive.Inc()
		metrics.PeersConnected.WithLabelValues("unknown", "ok").Inc()
		log.Debug("peer opened")
		o.events.OnPeerOpen(p)
	}
	node.OnPeerClose = func(p *overlay.Peer) {
		metrics.PeersActive.Dec()
		log.Debug("peer closed")
		o.events.OnPeerClose(p)
	}
	node.OnDispatch = func(t overlay.PacketType) {
		metrics.PacketsDispatched.WithLabelValues(packetTypeLabel(t)).Inc()
	}

	return o, nil
}

func packetTypeLabel(t overlay.PacketType) string {
	switch t {
	case overlay.TypePing:
		return "ping"
	case overlay.TypePong:
		return "pong"
	case overlay.TypePush:
		return "push"
	case overlay.TypeSearch:
		return "search"
	case overlay.TypeSearchReply:
		return "search_reply"
	default:
		return "unknown"
	}
}

// ListenPort opens a listening port via Node.ListenPort.
func (o *Orchestrator) ListenPort(port int) error {
	_, err := o.Node.ListenPort(port)
	return err
}

// AddPeer dials a peer via Node.AddPeer. A failed dial or greeting is
// counted in the peers-connected counter as ("outbound", "error"); a
// success is counted by the node's OnPeerOpen hook as ("unknown", "ok").
func (o *Orchestrator) AddPeer(ip string, port int, timeout time.Duration) (*overlay.Peer, error) {
	p, err := o.Node.AddPeer(ip, port, timeout)
	if err != nil {
		metrics.PeersConnected.WithLabelValues("outbound", "error").Inc()
		return nil, err
	}
	return p, nil
}

// Search originates a search and wires the search-hit event/metric
// around the caller's own callback.
func (o *Orchestrator) Search(query string, group *overlay.Group, cb overlay.SearchCallback, context any) [16]byte {
	scope := "public"
	if group != nil {
		scope = "secure"
	}
	metrics.SearchesOriginated.WithLabelValues(scope).Inc()
	metrics.SearchesActive.Inc()

	wrapped := func(hit overlay.FileHandle) {
		metrics.SearchHits.Inc()
		o.events.OnSearchHit(hit)
		if cb != nil {
			cb(hit)
		}
	}
	return o.Node.Search(query, group, wrapped, context)
}

// SearchStop drops a search's outstanding callback registration (§5
// SearchStop: subsequent replies are dropped silently, no worker killed).
func (o *Orchestrator) SearchStop(context any) int {
	n := o.Node.Searches.Stop(context)
	if n > 0 {
		metrics.SearchesActive.Add(-float64(n))
	}
	return n
}

// JoinGroup joins or creates a group and reports the outcome through
// Events.OnJoinResult.
func (o *Orchestrator) JoinGroup(groupName string, waitInterval time.Duration, publishDir string) (*overlay.Group, overlay.JoinStatus) {
	g, status := o.Node.JoinGroup(groupName, waitInterval, publishDir)
	if g != nil {
		g.SetAcceptFunc(func(commonName string) bool {
			accepted := o.events.OnMembershipAccept(groupName, commonName)
			label := "rejected"
			if accepted {
				label = "accepted"
			}
			metrics.MembershipChecks.WithLabelValues(label).Inc()
			return accepted
		})
	}

	var statusLabel string
	switch status {
	case overlay.JoinOK:
		statusLabel = "ok"
	case overlay.JoinCreated:
		statusLabel = "created"
	default:
		statusLabel = "error"
	}
	metrics.GroupJoins.WithLabelValues(statusLabel).Inc()
	metrics.GroupsActive.Set(float64(groupCount(o.Node.Groups)))

	var err error
	if status == overlay.JoinError {
		err = errors.New("orchestrator: group join failed")
	}
	o.events.OnJoinResult(groupName, status, err)
	return g, status
}

func groupCount(groups *overlay.Groups) int {
	n := 0
	groups.Each(func(*overlay.Group) { n++ })
	return n
}

// Close tears down the orchestrator in reverse-dependency order (§4.K):
// outstanding get workers are stopped first, then the node's listeners,
// peers, and groups are closed (zeroizing every group key along the
// way), then the local identity's private key and the store's held
// secrets are explicitly zeroized rather than left for the garbage
// collector (§3/§9).
func (o *Orchestrator) Close() error {
	o.gets.Each(func(_ uint64, t *transfer) bool {
		t.stop()
		return true
	})
	o.group.Wait()

	err := o.Node.Close()
	o.Local.StripPrivateKey()
	o.Store.Reset()
	return err
}
