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
	"errors"
	"io"
	"sync"

	"github.com/ahenroid/ptptl-0.2/transport"
)

// handshakeConnect/handshakeOK are the raw-mode Gnutella greeting (§4.J
// "Peer handshake").
const (
	handshakeConnect = "GNUTELLA CONNECT/0.4\n\n"
	handshakeOK      = "GNUTELLA OK\n\n"
)

// ErrBadHandshake is returned when a peer's greeting doesn't match the
// expected literal text — spec.md §4.J: "A misformed response aborts the
// peer with no retry."
var ErrBadHandshake = errors.New("overlay: misformed peer handshake")

// Peer is one open raw-mode overlay connection, inbound or outbound. Its
// reader loop is the one thread (§5) allowed to read conn; writes may
// come from any goroutine forwarding or originating a packet.
type Peer struct {
	id   uint64
	conn *transport.Conn
	node *Node

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

func newPeer(id uint64, conn *transport.Conn, node *Node) *Peer {
	return &Peer{id: id, conn: conn, node: node}
}

// dialOutbound performs the outbound greeting: send CONNECT, expect OK.
func (p *Peer) dialOutbound() error {
	if _, err := io.WriteString(p.conn, handshakeConnect); err != nil {
		return err
	}
	buf := make([]byte, len(handshakeOK))
	if _, err := io.ReadFull(p.conn, buf); err != nil {
		return err
	}
	if string(buf) != handshakeOK {
		return ErrBadHandshake
	}
	return nil
}

// acceptInbound performs the inbound greeting: expect CONNECT, mirror OK.
func (p *Peer) acceptInbound() error {
	buf := make([]byte, len(handshakeConnect))
	if _, err := io.ReadFull(p.conn, buf); err != nil {
		return err
	}
	if string(buf) != handshakeConnect {
		return ErrBadHandshake
	}
	_, err := io.WriteString(p.conn, handshakeOK)
	return err
}

// Send writes a packet to this peer. Safe for concurrent callers, since
// the socket is "single-reader by convention ... arbitrarily-writer"
// (§5).
func (p *Peer) Send(pkt Packet) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return WritePacket(p.conn, pkt)
}

// Close tears down the peer connection. Safe to call more than once.
func (p *Peer) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

// readLoop is the per-peer reader thread (§4.J "each open peer runs a
// reader loop"). It runs until the connection fails or is closed, then
// notifies the node so peer state can be reclaimed.
func (p *Peer) readLoop() {
	defer p.node.onPeerClosed(p)
	for {
		pkt, err := ReadPacket(p.conn)
		if err != nil {
			return
		}
		p.node.dispatch(p, pkt)
	}
}
