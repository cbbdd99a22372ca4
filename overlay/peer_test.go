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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahenroid/ptptl-0.2/transport"
)

func TestPeerHandshakeSucceeds(t *testing.T) {
	l, err := transport.Listen(0)
	require.NoError(t, err)
	defer l.Close()

	serverDone := make(chan *Peer, 1)
	go func() {
		conn, err := l.Accept(true)
		require.NoError(t, err)
		p := newPeer(1, conn, nil)
		require.NoError(t, p.acceptInbound())
		serverDone <- p
	}()

	conn, err := transport.Connect("127.0.0.1", l.Port, time.Second)
	require.NoError(t, err)
	p := newPeer(2, conn, nil)
	require.NoError(t, p.dialOutbound())

	server := <-serverDone
	defer server.Close()
	defer p.Close()
}

func TestPeerHandshakeAbortsOnMisformedGreeting(t *testing.T) {
	l, err := transport.Listen(0)
	require.NoError(t, err)
	defer l.Close()

	go func() {
		conn, err := l.Accept(false)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("NOT A GREETING\n\n"))
	}()

	conn, err := transport.Connect("127.0.0.1", l.Port, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	p := newPeer(1, conn, nil)
	err = p.dialOutbound()
	assert.ErrorIs(t, err, ErrBadHandshake)
}

func TestPeerSendAndClose(t *testing.T) {
	l, err := transport.Listen(0)
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan Packet, 1)
	go func() {
		conn, err := l.Accept(true)
		require.NoError(t, err)
		p := newPeer(1, conn, nil)
		require.NoError(t, p.acceptInbound())
		pkt, err := ReadPacket(conn)
		require.NoError(t, err)
		accepted <- pkt
	}()

	conn, err := transport.Connect("127.0.0.1", l.Port, time.Second)
	require.NoError(t, err)
	p := newPeer(2, conn, nil)
	require.NoError(t, p.dialOutbound())

	sent := NewSearchPacket(EncodeSearchPayload(1, "test"))
	require.NoError(t, p.Send(sent))

	got := <-accepted
	assert.Equal(t, sent.Header, got.Header)
	assert.Equal(t, sent.Payload, got.Payload)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close()) // idempotent
}
