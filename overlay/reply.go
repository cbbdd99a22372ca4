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
	"bytes"
	"encoding/binary"

	"github.com/ahenroid/ptptl-0.2/symkey"
)

// ReplyEntry is one hit inside a SEARCH-REPLY payload's entry region
// (§6.2): [ref LE32][size LE32][NUL-terminated name].
type ReplyEntry struct {
	Ref  uint32
	Size uint32
	Name string
}

func encodeEntries(entries []ReplyEntry) []byte {
	var buf bytes.Buffer
	var num [4]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint32(num[:], e.Ref)
		buf.Write(num[:])
		binary.LittleEndian.PutUint32(num[:], e.Size)
		buf.Write(num[:])
		buf.WriteString(e.Name)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func decodeEntries(buf []byte, count int) ([]ReplyEntry, error) {
	entries := make([]ReplyEntry, 0, count)
	for i := 0; i < count; i++ {
		if len(buf) < 9 {
			return nil, ErrShortPayload
		}
		ref := binary.LittleEndian.Uint32(buf[0:4])
		size := binary.LittleEndian.Uint32(buf[4:8])
		rest := buf[8:]
		idx := bytes.IndexByte(rest, 0)
		if idx < 0 {
			return nil, ErrShortPayload
		}
		entries = append(entries, ReplyEntry{Ref: ref, Size: size, Name: string(rest[:idx])})
		buf = rest[idx+1:]
	}
	return entries, nil
}

// BuildSearchReplyPayload assembles a SEARCH-REPLY payload (§4.J "Search
// request handling"): count/port/ip/speed stay in clear; the entry region
// is symmetric-encrypted under group when the originating request was
// secure (group != nil).
func BuildSearchReplyPayload(port uint16, ip uint32, speed uint32, entries []ReplyEntry, trailerGUID [16]byte, group *symkey.Key) ([]byte, error) {
	if len(entries) > 255 {
		return nil, ErrShortPayload
	}

	region := encodeEntries(entries)
	if group != nil {
		ct, err := group.Encrypt(region, true, true)
		if err != nil {
			return nil, err
		}
		region = ct
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(len(entries)))
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], port)
	buf.Write(u16[:])
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], ip)
	buf.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], speed)
	buf.Write(u32[:])
	buf.Write(region)
	buf.Write(trailerGUID[:])
	return buf.Bytes(), nil
}

// ParseSearchReplyPayload reverses BuildSearchReplyPayload. group must be
// the same key used to encrypt (nil for an insecure reply).
func ParseSearchReplyPayload(payload []byte, group *symkey.Key) (port uint16, ip uint32, speed uint32, entries []ReplyEntry, trailerGUID [16]byte, err error) {
	if len(payload) < 1+2+4+4+16 {
		return 0, 0, 0, nil, trailerGUID, ErrShortPayload
	}
	count := int(payload[0])
	port = binary.LittleEndian.Uint16(payload[1:3])
	ip = binary.LittleEndian.Uint32(payload[3:7])
	speed = binary.LittleEndian.Uint32(payload[7:11])

	rest := payload[11:]
	copy(trailerGUID[:], rest[len(rest)-16:])
	region := rest[:len(rest)-16]

	if group != nil {
		region, err = group.Decrypt(region, true, true)
		if err != nil {
			return 0, 0, 0, nil, trailerGUID, err
		}
	}

	entries, err = decodeEntries(region, count)
	if err != nil {
		return 0, 0, 0, nil, trailerGUID, err
	}
	return port, ip, speed, entries, trailerGUID, nil
}
