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

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"
)

// backlog is the small constant listen backlog spec.md §4.I names
// without fixing a value; net.ListenConfig does not expose a backlog
// knob directly, so this only documents intent for callers layering
// their own accept-queue limiting.
const backlog = 16

const (
	ephemeralRangeStart = 49152
	ephemeralRangeSize  = 2000
	probeTimeout        = 50 * time.Millisecond
)

// ErrNoFreePort is returned when no port in the ephemeral range was free.
var ErrNoFreePort = errors.New("transport: no free ephemeral port found")

// Listener accepts inbound connections, detecting raw vs. HTTP framing
// on request.
type Listener struct {
	ln   net.Listener
	Port int
}

// Listen binds port with SO_REUSEADDR. port == 0 chooses an ephemeral
// free port: spec.md §4.I's probe-then-bind algorithm attempts a
// loopback connect first, and only tries to bind a port that refused
// the probe connect (i.e., nothing is listening on it yet).
func Listen(port int) (*Listener, error) {
	if port != 0 {
		ln, err := bindReuseAddr(port)
		if err != nil {
			return nil, err
		}
		return &Listener{ln: ln, Port: port}, nil
	}

	for p := ephemeralRangeStart; p < ephemeralRangeStart+ephemeralRangeSize; p++ {
		if probeInUse(p) {
			continue
		}
		ln, err := bindReuseAddr(p)
		if err != nil {
			continue
		}
		return &Listener{ln: ln, Port: p}, nil
	}
	return nil, ErrNoFreePort
}

func probeInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), probeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func bindReuseAddr(port int) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, rc syscall.RawConn) error {
			var sockErr error
			if err := rc.Control(func(fd uintptr) {
				sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
}

// Accept waits for the next connection. If detectType is set, it peeks
// the first bytes to classify raw vs. HTTP framing (§4.I: "GET ", "PUT ",
// or "POST " prefixes mean HTTP) and pushes those bytes back to the
// connection's unget buffer so the classification is invisible to the
// peer-facing stream.
func (l *Listener) Accept(detectType bool) (*Conn, error) {
	raw, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	c := wrap(raw, ModeRaw)
	if !detectType {
		return c, nil
	}

	peeked, perr := peekExact(raw, len(httpPrefixLongest))
	if perr != nil && len(peeked) == 0 {
		return nil, perr
	}
	c.Mode = classify(peeked)
	c.Unget(peeked)
	return c, nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

var httpPrefixes = []string{"GET ", "PUT ", "POST "}
var httpPrefixLongest = "POST "

func classify(peeked []byte) Mode {
	for _, prefix := range httpPrefixes {
		if len(peeked) >= len(prefix) && string(peeked[:len(prefix)]) == prefix {
			return ModeHTTP
		}
	}
	return ModeRaw
}
