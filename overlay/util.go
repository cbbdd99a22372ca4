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
	"encoding/binary"
	"errors"
	"net"

	"github.com/ahenroid/ptptl-0.2/bytesutil"
)

// ErrInvalidIP is returned by HostToWireIP for a non-IPv4 address.
var ErrInvalidIP = errors.New("overlay: not a dotted-quad IPv4 address")

// HostToWireIP packs a dotted-quad IPv4 address into the little-endian
// uint32 the SEARCH-REPLY payload carries (§6.2).
func HostToWireIP(host string) (uint32, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return 0, ErrInvalidIP
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, ErrInvalidIP
	}
	return binary.LittleEndian.Uint32(v4), nil
}

// WireIPToHost reverses HostToWireIP.
func WireIPToHost(wire uint32) string {
	var v4 [4]byte
	binary.LittleEndian.PutUint32(v4[:], wire)
	return net.IP(v4[:]).String()
}

// b64Encode renders src as a single-line base64 string, for embedding in
// query strings, URL paths, and HTTP header values.
func b64Encode(src []byte) string {
	n := bytesutil.Base64Encode(src, 0, nil)
	dst := make([]byte, n)
	bytesutil.Base64Encode(src, 0, dst)
	return string(dst)
}

// b64Decode reverses b64Encode.
func b64Decode(s string) []byte {
	src := []byte(s)
	n := bytesutil.Base64Decode(src, nil)
	dst := make([]byte, n)
	bytesutil.Base64Decode(src, dst)
	return dst
}
