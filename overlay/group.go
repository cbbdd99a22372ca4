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
	"sync"
	"time"

	"github.com/ahenroid/ptptl-0.2/symkey"
)

// AcceptFunc is a group's membership gate (§4.J "group's accept
// callback"): given the requesting peer's certificate common name, it
// reports whether that peer may fetch the group's key file.
type AcceptFunc func(commonName string) bool

// Group is a named set of peers sharing one symmetric key, used both to
// scope searches (SecureQuery) and to encrypt group-keyed transfers.
type Group struct {
	mu     sync.RWMutex
	name   string
	key    *symkey.Key
	accept AcceptFunc
}

// NewGroup wraps name and key as a Group with no accept gate (every
// member-probe request is allowed).
func NewGroup(name string, key *symkey.Key) *Group {
	return &Group{name: name, key: key}
}

// Name returns the group's name.
func (g *Group) Name() string { return g.name }

// Key returns the group's current symmetric key.
func (g *Group) Key() *symkey.Key {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.key
}

// SetKey replaces the group's key, e.g. after a successful join.
func (g *Group) SetKey(key *symkey.Key) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.key = key
}

// SetAcceptFunc installs a membership gate.
func (g *Group) SetAcceptFunc(fn AcceptFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accept = fn
}

// Accept reports whether commonName passes the group's membership gate.
// A group with no gate installed accepts everyone.
func (g *Group) Accept(commonName string) bool {
	g.mu.RLock()
	fn := g.accept
	g.mu.RUnlock()
	if fn == nil {
		return true
	}
	return fn(commonName)
}

// Destroy zeroizes the group's current key material (spec.md §3/§9's
// "explicitly zeroize" teardown invariant), leaving the Group otherwise
// intact. Called once a group is left or the node is torn down; the
// Group must not be used to encrypt/decrypt traffic afterward.
func (g *Group) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.key != nil {
		g.key.Destroy()
	}
}

// Groups is the node-wide registry of joined/created groups, keyed by
// name.
type Groups struct {
	mu     sync.Mutex
	byName map[string]*Group
}

// NewGroups creates an empty registry.
func NewGroups() *Groups {
	return &Groups{byName: make(map[string]*Group)}
}

// Add registers group, replacing any existing entry under the same name.
func (g *Groups) Add(group *Group) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byName[group.name] = group
}

// Get looks up a group by name.
func (g *Groups) Get(name string) (*Group, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	group, ok := g.byName[name]
	return group, ok
}

// Remove zeroizes group name's key and drops it from the registry (§5
// "LeaveGroup"'s underlying primitive). Reports false if no such group
// is registered.
func (g *Groups) Remove(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	group, ok := g.byName[name]
	if !ok {
		return false
	}
	group.Destroy()
	delete(g.byName, name)
	return true
}

// Each calls fn once per registered group.
func (g *Groups) Each(fn func(*Group)) {
	g.mu.Lock()
	snapshot := make([]*Group, 0, len(g.byName))
	for _, grp := range g.byName {
		snapshot = append(snapshot, grp)
	}
	g.mu.Unlock()
	for _, grp := range snapshot {
		fn(grp)
	}
}

// joinRendezvousKey derives the key used to encrypt the bootstrap
// "/secure/<G>/key" search query itself — the one search a joiner must
// be able to issue before it holds the group's real key. Open question
// resolution: spec.md §4.J's SecureQuery wire format requires every
// secure query to be encrypted under "the group key", but a joiner by
// definition doesn't have it yet. We derive a separate, deterministic
// rendezvous key from the group name alone (known to anyone who knows
// the name), used only to locate a key-holder; the real key bytes always
// travel RSA-sealed over the mutual-auth GET path, never over this key.
func joinRendezvousKey(groupName string) *symkey.Key {
	return symkey.FromPassword(groupName, []byte("ptp-group-join"), symkey.DefaultPBKDF2Iterations)
}

// JoinStatus reports the outcome of JoinGroup.
type JoinStatus int

const (
	JoinCreated JoinStatus = iota
	JoinOK
	JoinError
)

func (s JoinStatus) String() string {
	switch s {
	case JoinCreated:
		return "created"
	case JoinOK:
		return "ok"
	default:
		return "error"
	}
}

// SearchFunc originates a search (real implementation lives in Node);
// injected here so JoinGroup stays independently testable, the same
// pattern transport.Proxy uses for its dialFunc.
type SearchFunc func(query string, cb SearchCallback, context any) [16]byte

// FetchKeyFunc performs the mutual-auth GET of a group's key file against
// the peer that advertised hit, returning the decrypted key bytes.
type FetchKeyFunc func(hit FileHandle) ([]byte, error)

// PublishKeyFunc makes a freshly-created group key locally discoverable
// as "/secure/<G>/key" (§4.J step 3).
type PublishKeyFunc func(groupName string, key *symkey.Key) error

// JoinGroup implements §4.J's join protocol. It issues a bootstrap secure
// search for the group's key, waits up to waitInterval for the first
// qualifying reply, and either fetches the key from that peer (status OK
// or ERROR) or — on timeout — mints and publishes a fresh key (status
// CREATED).
func JoinGroup(groups *Groups, groupName string, waitInterval time.Duration, search SearchFunc, fetchKey FetchKeyFunc, publish PublishKeyFunc) (*Group, JoinStatus) {
	rendezvous := joinRendezvousKey(groupName)
	query, err := SecureQuery(groupName, keyQueryName, rendezvous)
	if err != nil {
		return nil, JoinError
	}

	hits := make(chan FileHandle, 8)
	search(query, func(hit FileHandle) {
		if hit.Name == keyQueryName {
			select {
			case hits <- hit:
			default:
			}
		}
	}, nil)

	select {
	case hit := <-hits:
		raw, err := fetchKey(hit)
		if err != nil {
			return nil, JoinError
		}
		key, err := symkey.FromBytes(raw)
		if err != nil {
			return nil, JoinError
		}
		g := NewGroup(groupName, key)
		groups.Add(g)
		return g, JoinOK

	case <-time.After(waitInterval):
		key, err := symkey.Generate()
		if err != nil {
			return nil, JoinError
		}
		g := NewGroup(groupName, key)
		groups.Add(g)
		if publish != nil {
			if err := publish(groupName, key); err != nil {
				return g, JoinError
			}
		}
		return g, JoinCreated
	}
}
