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

package overlay

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ahenroid/ptptl-0.2/auth"
	"github.com/ahenroid/ptptl-0.2/collect"
	"github.com/ahenroid/ptptl-0.2/container"
	"github.com/ahenroid/ptptl-0.2/identity"
	"github.com/ahenroid/ptptl-0.2/symkey"
	"github.com/ahenroid/ptptl-0.2/transport"
)

// Node is one running overlay participant: the Gnutella flood-search
// engine plus the trust layer, composed around a local identity (§4.J).
// It owns every piece named in §4.K's orchestrator list except the
// secure store, which the caller holds separately and uses to recover
// Local across restarts.
type Node struct {
	Local *identity.Identity
	Auth  *auth.Authenticator

	ip    uint32
	port  uint16
	speed uint32

	peers     *container.List[*Peer]
	listeners *container.List[*transport.Listener]
	Groups    *Groups
	Searches  *Searches
	Shared    *collect.Collection

	routeMu      sync.Mutex
	searchRoutes map[[16]byte]*Peer // guid -> peer it arrived from; nil means we originated it

	nextPeerID uint64
	peerIDMu   sync.Mutex

	// OnPeerOpen/OnPeerClose are optional hooks an embedding orchestrator
	// can install to observe peer lifecycle events (§4.K's "open/close
	// peer" callback seat). Nil hooks are simply skipped.
	OnPeerOpen  func(*Peer)
	OnPeerClose func(*Peer)

	// OnDispatch, if set, is called once per packet dispatched, before
	// type-specific handling — an observation seat for orchestrator-level
	// metrics/logging without importing them into this package.
	OnDispatch func(PacketType)
}

// NewNode creates a Node advertising (ip, port) in its own search
// replies. ip is little-endian per §6.2's wire layout; use HostToWireIP
// to build it from a dotted-quad string.
func NewNode(local *identity.Identity, authenticator *auth.Authenticator, ip uint32, port uint16, speed uint32) *Node {
	return &Node{
		Local:        local,
		Auth:         authenticator,
		ip:           ip,
		port:         port,
		speed:        speed,
		peers:        container.New[*Peer](),
		listeners:    container.New[*transport.Listener](),
		Groups:       NewGroups(),
		Searches:     NewSearches(),
		Shared:       collect.New(),
		searchRoutes: make(map[[16]byte]*Peer),
	}
}

// AddShared binds a local directory to a group — null group is the
// empty string, meaning public (§4.J "AddShared(path, extension-filter,
// group)").
func (n *Node) AddShared(path, extensions, group string) {
	n.Shared.AddSource(path, extensions, group)
}

// Rescan re-walks every shared directory.
func (n *Node) Rescan() { n.Shared.Rescan() }

func entryGroup(e *collect.Entry) string {
	g, _ := e.Context.(string)
	return g
}

// ListenPort opens a listening port and starts its accept loop goroutine
// (§5 "one thread per inbound listening port"). port == 0 chooses an
// ephemeral port.
func (n *Node) ListenPort(port int) (*transport.Listener, error) {
	l, err := transport.Listen(port)
	if err != nil {
		return nil, err
	}
	n.listeners.PushBack(l)
	go n.acceptLoop(l)
	return l, nil
}

func (n *Node) acceptLoop(l *transport.Listener) {
	for {
		conn, err := l.Accept(true)
		if err != nil {
			return
		}
		if conn.Mode == transport.ModeRaw {
			go n.acceptPeer(conn)
		} else {
			go n.serveHTTP(conn)
		}
	}
}

func (n *Node) acceptPeer(conn *transport.Conn) {
	p := n.newPeerEntry(conn)
	if err := p.acceptInbound(); err != nil {
		p.Close()
		return
	}
	if n.OnPeerOpen != nil {
		n.OnPeerOpen(p)
	}
	p.readLoop()
}

// AddPeer dials (ip, port) and performs the outbound greeting, adding
// the resulting connection to the peer set on success.
func (n *Node) AddPeer(ip string, port int, timeout time.Duration) (*Peer, error) {
	conn, err := transport.Connect(ip, port, timeout)
	if err != nil {
		return nil, err
	}
	p := n.newPeerEntry(conn)
	if err := p.dialOutbound(); err != nil {
		p.Close()
		n.peers.RemoveFunc(func(v *Peer) bool { return v == p })
		return nil, err
	}
	if n.OnPeerOpen != nil {
		n.OnPeerOpen(p)
	}
	go p.readLoop()
	return p, nil
}

func (n *Node) newPeerEntry(conn *transport.Conn) *Peer {
	n.peerIDMu.Lock()
	n.nextPeerID++
	id := n.nextPeerID
	n.peerIDMu.Unlock()

	p := newPeer(id, conn, n)
	n.peers.PushBack(p)
	return p
}

// RemovePeer closes and forgets a peer (§5 "RemoveHost").
func (n *Node) RemovePeer(p *Peer) {
	p.Close()
}

// RemovePort closes and forgets the listener bound to port (§5
// "RemovePort"). Reports false if no such listener is open.
func (n *Node) RemovePort(port int) bool {
	closed := false
	n.listeners.RemoveFunc(func(l *transport.Listener) bool {
		if l.Port != port {
			return false
		}
		l.Close()
		closed = true
		return true
	})
	return closed
}

func (n *Node) onPeerClosed(p *Peer) {
	n.peers.RemoveFunc(func(v *Peer) bool { return v == p })
	if n.OnPeerClose != nil {
		n.OnPeerClose(p)
	}
}

// PeerCount reports how many peer connections are currently open.
func (n *Node) PeerCount() int { return n.peers.Len() }

// LeaveGroup zeroizes groupName's key and drops it from this node's
// group registry (§5 "LeaveGroup"). Reports false if the node was not a
// member of groupName.
func (n *Node) LeaveGroup(groupName string) bool {
	return n.Groups.Remove(groupName)
}

// Close tears down every listener and peer connection (§5 "resource
// release" — every socket freed on every exit path) and destroys every
// joined group's key. Outstanding searches are left in the searches
// table for the caller to cancel via SearchStop; the node tracks no
// transfers of its own.
func (n *Node) Close() error {
	n.listeners.Each(func(_ uint64, l *transport.Listener) bool {
		l.Close()
		return true
	})
	n.peers.Each(func(_ uint64, p *Peer) bool {
		p.Close()
		return true
	})
	n.Groups.Each(func(g *Group) { g.Destroy() })
	return nil
}

// Broadcast sends pkt to every open peer except except (nil sends to
// all).
func (n *Node) Broadcast(pkt Packet, except *Peer) {
	n.peers.Each(func(_ uint64, p *Peer) bool {
		if p != except {
			p.Send(pkt)
		}
		return true
	})
}

// dispatch handles one packet read off a peer's connection (§4.J
// "Dispatch by type").
func (n *Node) dispatch(from *Peer, pkt Packet) {
	if n.OnDispatch != nil {
		n.OnDispatch(pkt.Header.Type)
	}
	switch pkt.Header.Type {
	case TypeSearch:
		n.handleSearch(from, pkt)
	case TypeSearchReply:
		n.handleSearchReply(from, pkt)
	case TypePing, TypePong, TypePush:
		// Accepted but not required to be forwarded (§4.J).
	}
}

// Search originates a SEARCH, securing the query under group's key when
// group is non-nil, and records it in the searches table under a fresh
// guid.
func (n *Node) Search(query string, group *Group, cb SearchCallback, context any) [16]byte {
	groupName := ""
	wireQuery := query
	if group != nil {
		groupName = group.Name()
		if sq, err := SecureQuery(group.Name(), query, group.Key()); err == nil {
			wireQuery = sq
		}
	}
	return n.originate(wireQuery, groupName, cb, context)
}

// SearchRaw originates a SEARCH whose query string is already in its
// final wire form (used by JoinGroup's bootstrap key search, which
// builds its own SecureQuery under the rendezvous key).
func (n *Node) SearchRaw(wireQuery string, cb SearchCallback, context any) [16]byte {
	return n.originate(wireQuery, "", cb, context)
}

func (n *Node) originate(wireQuery, groupName string, cb SearchCallback, context any) [16]byte {
	guid := NewGUID()
	n.Searches.Add(guid, cb, context, groupName)

	n.routeMu.Lock()
	n.searchRoutes[guid] = nil
	n.routeMu.Unlock()

	payload := EncodeSearchPayload(0, wireQuery)
	pkt := Packet{Header: Header{GUID: guid, Type: TypeSearch, TTL: DefaultTTL, Hops: 0, PayLen: uint32(len(payload))}, Payload: payload}
	n.Broadcast(pkt, nil)
	return guid
}

// handleSearch answers (if there is a local match) and floods a SEARCH
// packet one hop further (§4.J "Search request handling" /
// "Packet forwarding/origination"). Duplicate guids (already routed) are
// dropped, which both prevents loops and bounds the routing table.
func (n *Node) handleSearch(from *Peer, pkt Packet) {
	guid := pkt.Header.GUID

	n.routeMu.Lock()
	if _, seen := n.searchRoutes[guid]; seen {
		n.routeMu.Unlock()
		return
	}
	n.searchRoutes[guid] = from
	n.routeMu.Unlock()

	n.answerSearch(from, pkt)

	if pkt.Header.TTL > 1 {
		fwd := pkt
		fwd.Header.TTL--
		fwd.Header.Hops++
		n.Broadcast(fwd, from)
	}
}

func (n *Node) answerSearch(from *Peer, pkt Packet) {
	_, query, err := DecodeSearchPayload(pkt.Payload)
	if err != nil {
		return
	}

	groupName := ""
	var key *symkey.Key
	plainQuery := query

	if g, payload, ok := ParseSecureQuery(query); ok {
		group, known := n.Groups.Get(g)
		if !known {
			return // unknown group: drop silently
		}
		decrypted, derr := DecryptSecureQuery(payload, group.Key())
		if derr != nil {
			return
		}
		groupName = g
		key = group.Key()
		plainQuery = decrypted
	}

	var matches []*collect.Entry
	if IsKeyQuery(plainQuery) {
		for _, e := range n.Shared.Entries() {
			if entryGroup(e) == groupName && filepath.Base(e.Path) == keyQueryName {
				matches = append(matches, e)
			}
		}
	} else {
		pattern := "*" + strings.ToLower(plainQuery) + "*"
		for _, e := range n.Shared.Find(pattern) {
			if entryGroup(e) == groupName {
				matches = append(matches, e)
			}
		}
	}
	if len(matches) == 0 {
		return
	}

	entries := make([]ReplyEntry, 0, len(matches))
	for _, e := range matches {
		entries = append(entries, ReplyEntry{Ref: uint32(e.ID), Size: uint32(e.Size), Name: filepath.Base(e.Path)})
	}

	payload, err := BuildSearchReplyPayload(n.port, n.ip, n.speed, entries, NewGUID(), key)
	if err != nil {
		return
	}

	reply := Packet{Header: Header{GUID: pkt.Header.GUID, Type: TypeSearchReply, TTL: DefaultTTL, Hops: 0, PayLen: uint32(len(payload))}, Payload: payload}
	from.Send(reply)
}

// handleSearchReply forwards a SEARCH-REPLY back toward its originating
// peer, or — if this node is the origin — decodes it and delivers hits
// to the waiting search callback (§4.J "Search response handling").
func (n *Node) handleSearchReply(from *Peer, pkt Packet) {
	guid := pkt.Header.GUID

	n.routeMu.Lock()
	route, known := n.searchRoutes[guid]
	n.routeMu.Unlock()

	if known && route != nil {
		route.Send(pkt)
		return
	}

	cb, groupName, ok := n.Searches.Lookup(guid)
	if !ok {
		return
	}

	var key *symkey.Key
	if groupName != "" {
		if g, known := n.Groups.Get(groupName); known {
			key = g.Key()
		}
	}

	port, ip, speed, entries, _, err := ParseSearchReplyPayload(pkt.Payload, key)
	if err != nil {
		return
	}
	for _, e := range entries {
		cb(FileHandle{Name: e.Name, Size: e.Size, Ref: e.Ref, IP: ip, Port: port, Speed: speed, Group: groupName})
	}
}

// publishGroupKey writes a group's empty placeholder "key" file into dir
// and shares dir under groupName; the file is never read back (serveGroupKey answers
// straight from the Group's key material), only Rescanned so the
// filename becomes a searchable collection entry.
func (n *Node) publishGroupKey(groupName string, key *symkey.Key, dir string) error {
	path := filepath.Join(dir, keyQueryName)
	if err := os.WriteFile(path, []byte{}, 0o600); err != nil {
		return err
	}
	n.AddShared(dir, "", groupName)
	n.Rescan()
	return nil
}

// JoinGroup runs §4.J's join protocol against the overlay this node is
// part of: searching, waiting, and — on timeout — minting and publishing
// a fresh key via publishDir.
func (n *Node) JoinGroup(groupName string, waitInterval time.Duration, publishDir string) (*Group, JoinStatus) {
	search := func(query string, cb SearchCallback, context any) [16]byte {
		return n.SearchRaw(query, cb, context)
	}
	fetchKey := func(hit FileHandle) ([]byte, error) {
		return FetchGroupKey(n, hit, waitInterval)
	}
	publish := func(groupName string, key *symkey.Key) error {
		return n.publishGroupKey(groupName, key, publishDir)
	}
	return JoinGroup(n.Groups, groupName, waitInterval, search, fetchKey, publish)
}
