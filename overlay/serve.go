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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ahenroid/ptptl-0.2/transport"
)

// ErrUnexpectedStatus/ErrAuthNotVerified are returned by the client side
// of the mutual-auth GET on a protocol violation.
var (
	ErrUnexpectedStatus = errors.New("overlay: unexpected HTTP status in mutual-auth exchange")
	ErrAuthNotVerified  = errors.New("overlay: server's challenge response did not verify")
)

const readHeaderChunk = 512

// readHeaders reads from conn until a full header block has arrived,
// pushing any bytes read past the header terminator back onto conn's
// unget buffer so the body is still there for the caller to read.
func readHeaders(conn *transport.Conn) (transport.Headers, error) {
	var buf []byte
	chunk := make([]byte, readHeaderChunk)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if h, bodyStart, ok := transport.ParseHeaders(buf); ok {
				if bodyStart < len(buf) {
					conn.Unget(buf[bodyStart:])
				}
				return h, nil
			}
		}
		if err != nil {
			return transport.Headers{}, err
		}
	}
}

func writeStatus(conn *transport.Conn, code int) {
	io.WriteString(conn, fmt.Sprintf("HTTP/1.1 %d\r\n\r\n", code))
}

func parseRequestLine(line string) (method, path string, ok bool) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// serveHTTP is the per-connection handler for a connection the listener
// classified as HTTP (§4.J's three GET paths).
func (n *Node) serveHTTP(conn *transport.Conn) {
	defer conn.Close()

	h, err := readHeaders(conn)
	if err != nil {
		return
	}
	method, path, ok := parseRequestLine(h.FirstLine)
	if !ok || method != "GET" {
		writeStatus(conn, 400)
		return
	}

	if group, ref, perr := ParseGroupGetPath(path); perr == nil {
		n.serveGroupGet(conn, h, group, ref)
		return
	}
	if ref, name, perr := ParseGetPath(path); perr == nil {
		n.serveGet(conn, ref, name)
		return
	}
	writeStatus(conn, 404)
}

func (n *Node) serveGet(conn *transport.Conn, ref uint32, name string) {
	e, ok := n.Shared.Get(uint64(ref))
	if !ok || entryGroup(e) != "" || filepath.Base(e.Path) != name {
		writeStatus(conn, 404)
		return
	}
	f, err := os.Open(e.Path)
	if err != nil {
		writeStatus(conn, 404)
		return
	}
	defer f.Close()

	if _, err := fmt.Fprintf(conn, "HTTP/1.1 200 OK\r\nContent-Length: %d\r\n\r\n", e.Size); err != nil {
		return
	}
	ServeGet(conn, f)
}

func (n *Node) serveGroupGet(conn *transport.Conn, h transport.Headers, groupName string, ref uint32) {
	e, ok := n.Shared.Get(uint64(ref))
	if !ok || entryGroup(e) != groupName {
		writeStatus(conn, 404)
		return
	}
	group, known := n.Groups.Get(groupName)
	if !known {
		writeStatus(conn, 404)
		return
	}

	if filepath.Base(e.Path) == keyQueryName {
		n.serveGroupKey(conn, h, group)
		return
	}

	f, err := os.Open(e.Path)
	if err != nil {
		writeStatus(conn, 404)
		return
	}
	defer f.Close()

	if _, err := io.WriteString(conn, "HTTP/1.1 200 OK\r\n\r\n"); err != nil {
		return
	}
	ServeGroupGet(conn, f, group.Key())
}

// serveGroupKey implements the server half of §4.J's mutual-authenticated
// key-file transfer. A client identity that fails the group's accept
// callback is served 404, matching the unauthenticated path's
// not-found response rather than revealing that the key exists.
func (n *Node) serveGroupKey(conn *transport.Conn, h transport.Headers, group *Group) {
	clientIDVal, ok := h.Get(HeaderIdentity)
	if !ok {
		writeStatus(conn, 400)
		return
	}
	clientID, err := DecodeIdentityHeader(clientIDVal)
	if err != nil {
		writeStatus(conn, 400)
		return
	}

	respVal, hasResp := h.Get(HeaderResponse)
	if !hasResp {
		chal, err := n.Auth.Challenge(clientID, 30, nil)
		if err != nil {
			writeStatus(conn, 500)
			return
		}
		fmt.Fprintf(conn, "HTTP/1.1 401 Unauthorized\r\nIdentity: %s\r\nChallenge: %s\r\n\r\n",
			EncodeIdentityHeader(n.Local), EncodeBytesHeader(chal))

		// The client sends its second round on this same connection.
		h2, err := readHeaders(conn)
		if err != nil {
			return
		}
		if _, ok := h2.Get(HeaderResponse); !ok {
			writeStatus(conn, 400)
			return
		}
		n.serveGroupKey(conn, h2, group)
		return
	}

	if _, ok := n.Auth.Verify(DecodeBytesHeader(respVal)); !ok {
		writeStatus(conn, 403)
		return
	}
	if !group.Accept(clientID.Name()) {
		writeStatus(conn, 404)
		return
	}

	clientChalVal, _ := h.Get(HeaderChallenge)
	myResponse, err := n.Auth.Respond(DecodeBytesHeader(clientChalVal))
	if err != nil {
		writeStatus(conn, 500)
		return
	}

	sealed, err := clientID.Encrypt(group.Key().Bytes())
	if err != nil {
		writeStatus(conn, 500)
		return
	}

	fmt.Fprintf(conn, "HTTP/1.1 200 OK\r\nResponse: %s\r\nContent-Length: %d\r\n\r\n",
		EncodeBytesHeader(myResponse), len(sealed))
	conn.Write(sealed)
}

// FetchGroupKey is the client half of §4.J's mutual-authenticated key
// transfer: it dials the peer that advertised hit, runs the two-round
// Challenge/Respond/Verify exchange in both directions, and decrypts the
// RSA-sealed group key with node's own private key.
func FetchGroupKey(node *Node, hit FileHandle, timeout time.Duration) ([]byte, error) {
	host := WireIPToHost(hit.IP)
	conn, err := transport.Connect(host, int(hit.Port), timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	path := FormatGroupGetPath(hit.Group, hit.Ref)
	line := transport.RequestLine("GET", false, host, int(hit.Port), path)

	if _, err := io.WriteString(conn, line+"Identity: "+EncodeIdentityHeader(node.Local)+"\r\n\r\n"); err != nil {
		return nil, err
	}

	h1, err := readHeaders(conn)
	if err != nil {
		return nil, err
	}
	if h1.Status() != 401 {
		return nil, ErrUnexpectedStatus
	}
	serverIDVal, _ := h1.Get(HeaderIdentity)
	serverID, err := DecodeIdentityHeader(serverIDVal)
	if err != nil {
		return nil, err
	}
	serverChalVal, _ := h1.Get(HeaderChallenge)

	response, err := node.Auth.Respond(DecodeBytesHeader(serverChalVal))
	if err != nil {
		return nil, err
	}
	clientChal, err := node.Auth.Challenge(serverID, 30, nil)
	if err != nil {
		return nil, err
	}

	req2 := line + "Identity: " + EncodeIdentityHeader(node.Local) + "\r\n" +
		"Response: " + EncodeBytesHeader(response) + "\r\n" +
		"Challenge: " + EncodeBytesHeader(clientChal) + "\r\n\r\n"
	if _, err := io.WriteString(conn, req2); err != nil {
		return nil, err
	}

	h2, err := readHeaders(conn)
	if err != nil {
		return nil, err
	}
	if h2.Status() != 200 {
		return nil, ErrUnexpectedStatus
	}
	respVal, _ := h2.Get(HeaderResponse)
	if _, ok := node.Auth.Verify(DecodeBytesHeader(respVal)); !ok {
		return nil, ErrAuthNotVerified
	}

	body := make([]byte, h2.ContentLength())
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}
	return node.Local.Decrypt(body)
}
