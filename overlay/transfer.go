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
	"strconv"
	"strings"
	"time"

	"github.com/ahenroid/ptptl-0.2/identity"
	"github.com/ahenroid/ptptl-0.2/symkey"
	"github.com/ahenroid/ptptl-0.2/transport"
)

// HTTP header names carrying the mutual-auth handshake values (§4.J
// "File transfer — mutual-authenticated").
const (
	HeaderIdentity  = "Identity"
	HeaderChallenge = "Challenge"
	HeaderResponse  = "Response"
)

// ErrBadPath is returned by the path parsers on a malformed GET target.
var ErrBadPath = errors.New("overlay: malformed transfer path")

// FormatGetPath builds the unauthenticated GET path "/get/<ref>/<name>".
func FormatGetPath(ref uint32, name string) string {
	return "/get/" + strconv.FormatUint(uint64(ref), 10) + "/" + name
}

// ParseGetPath reverses FormatGetPath.
func ParseGetPath(path string) (ref uint32, name string, err error) {
	const prefix = "/get/"
	if !strings.HasPrefix(path, prefix) {
		return 0, "", ErrBadPath
	}
	rest := path[len(prefix):]
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return 0, "", ErrBadPath
	}
	n, err := strconv.ParseUint(rest[:idx], 10, 32)
	if err != nil {
		return 0, "", ErrBadPath
	}
	name = rest[idx+1:]
	if name == "" {
		return 0, "", ErrBadPath
	}
	return uint32(n), name, nil
}

// FormatGroupGetPath builds the group-keyed GET path
// "/gets/<group-name>/<ref-hex>".
func FormatGroupGetPath(group string, ref uint32) string {
	return "/gets/" + group + "/" + strconv.FormatUint(uint64(ref), 16)
}

// ParseGroupGetPath reverses FormatGroupGetPath.
func ParseGroupGetPath(path string) (group string, ref uint32, err error) {
	const prefix = "/gets/"
	if !strings.HasPrefix(path, prefix) {
		return "", 0, ErrBadPath
	}
	rest := path[len(prefix):]
	idx := strings.LastIndexByte(rest, '/')
	if idx < 0 {
		return "", 0, ErrBadPath
	}
	n, err := strconv.ParseUint(rest[idx+1:], 16, 32)
	if err != nil {
		return "", 0, ErrBadPath
	}
	group = rest[:idx]
	if group == "" {
		return "", 0, ErrBadPath
	}
	return group, uint32(n), nil
}

// EncodeIdentityHeader renders id's certificate for the Identity: header.
func EncodeIdentityHeader(id *identity.Identity) string {
	return b64Encode(id.CertificateDER())
}

// DecodeIdentityHeader reverses EncodeIdentityHeader, returning a
// public-key-only Identity (the peer's own, per spec.md §3's import
// lifecycle).
func DecodeIdentityHeader(value string) (*identity.Identity, error) {
	return identity.FromCertificateDER(b64Decode(value))
}

// EncodeBytesHeader/DecodeBytesHeader carry a raw challenge or response
// buffer as base64, for the Challenge:/Response: headers.
func EncodeBytesHeader(b []byte) string { return b64Encode(b) }
func DecodeBytesHeader(s string) []byte { return b64Decode(s) }

// ServeGet streams src (the local file backing a collection entry)
// unencrypted to w — the "/get/<ref>/<name>" path, which carries no
// group (§4.J "streams the bytes through Transfer when the requesting
// group is null").
func ServeGet(w io.Writer, src io.Reader) (int64, error) {
	return symkey.Transfer(w, src)
}

// ServeGroupGet streams src to w under the group key's streaming cipher
// (§4.D), IV prepended and digest appended — the "/gets/<group>/<ref>"
// path, reachable by any peer that holds the group key (no membership
// gate beyond that).
func ServeGroupGet(w io.Writer, src io.Reader, key *symkey.Key) (int64, error) {
	return key.EncryptStream(w, src, true, true)
}

// FetchGroupGet reverses ServeGroupGet on the requesting side.
func FetchGroupGet(w io.Writer, r io.Reader, key *symkey.Key) (int64, error) {
	return key.DecryptStream(w, r, true, true)
}

// FetchFile is the client half of an unauthenticated "/get/<ref>/<name>"
// transfer (§4.J): it dials the peer hit advertises, issues the GET, and
// streams the response body into dst. No group key is required — this
// path only serves entries bound to the public (null) group.
func FetchFile(hit FileHandle, dst io.Writer, timeout time.Duration) (int64, error) {
	host := WireIPToHost(hit.IP)
	conn, err := transport.Connect(host, int(hit.Port), timeout)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	path := FormatGetPath(hit.Ref, hit.Name)
	line := transport.RequestLine("GET", false, host, int(hit.Port), path)
	if _, err := io.WriteString(conn, line+"\r\n"); err != nil {
		return 0, err
	}

	h, err := readHeaders(conn)
	if err != nil {
		return 0, err
	}
	if h.Status() != 200 {
		return 0, ErrUnexpectedStatus
	}
	return io.CopyN(dst, conn, h.ContentLength())
}

// FetchGroupFile is the client half of an already-joined group's
// "/gets/<group>/<hex-ref>" transfer, streamed through the group's key
// via FetchGroupGet. Unlike the key-file path (FetchGroupKey), an
// ordinary group file carries no mutual-auth handshake: holding the
// group's symmetric key is membership proof enough to read the stream.
func FetchGroupFile(hit FileHandle, key *symkey.Key, dst io.Writer, timeout time.Duration) (int64, error) {
	host := WireIPToHost(hit.IP)
	conn, err := transport.Connect(host, int(hit.Port), timeout)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	path := FormatGroupGetPath(hit.Group, hit.Ref)
	line := transport.RequestLine("GET", false, host, int(hit.Port), path)
	if _, err := io.WriteString(conn, line+"\r\n"); err != nil {
		return 0, err
	}

	h, err := readHeaders(conn)
	if err != nil {
		return 0, err
	}
	if h.Status() != 200 {
		return 0, ErrUnexpectedStatus
	}
	return FetchGroupGet(dst, conn, key)
}
