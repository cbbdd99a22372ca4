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

// Package overlay implements spec.md §4.J: the Gnutella-compatible
// flood-search protocol engine plus the trust layer (secure group search,
// mutual-authenticated transfer) layered on top of it.
package overlay

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/google/uuid"
)

// PacketType is the one-byte overlay packet discriminator (§6.2).
type PacketType byte

const (
	TypePing        PacketType = 0x00
	TypePong        PacketType = 0x01
	TypePush        PacketType = 0x40
	TypeSearch      PacketType = 0x80
	TypeSearchReply PacketType = 0x81
)

// HeaderSize is the fixed overlay packet header length.
const HeaderSize = 23

// DefaultTTL is the hop count a freshly originated SEARCH carries.
const DefaultTTL = 7

// ErrShortHeader/ErrShortPayload are returned by ReadPacket on a
// truncated stream.
var (
	ErrShortHeader  = errors.New("overlay: short packet header")
	ErrShortPayload = errors.New("overlay: short packet payload")
)

// Header is the 23-byte overlay packet header, little-endian per
// spec.md §9's explicit resolution against host order.
type Header struct {
	GUID    [16]byte
	Type    PacketType
	TTL     byte
	Hops    byte
	PayLen  uint32
}

// NewGUID draws a fresh random 16-byte packet guid.
func NewGUID() [16]byte {
	return [16]byte(uuid.New())
}

// Encode writes the header in wire order.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:16], h.GUID[:])
	buf[16] = byte(h.Type)
	buf[17] = h.TTL
	buf[18] = h.Hops
	binary.LittleEndian.PutUint32(buf[19:23], h.PayLen)
	return buf
}

// DecodeHeader parses a 23-byte wire header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	var h Header
	copy(h.GUID[:], buf[0:16])
	h.Type = PacketType(buf[16])
	h.TTL = buf[17]
	h.Hops = buf[18]
	h.PayLen = binary.LittleEndian.Uint32(buf[19:23])
	return h, nil
}

// Packet is a decoded overlay packet: header plus payload.
type Packet struct {
	Header  Header
	Payload []byte
}

// Encode serializes p to its wire form.
func (p Packet) Encode() []byte {
	return append(p.Header.Encode(), p.Payload...)
}

// ReadPacket reads one framed packet (23-byte header, then payload) from
// r — the per-peer reader loop's basic unit (§4.J "Read 23-byte header,
// then payload-length bytes").
func ReadPacket(r io.Reader) (Packet, error) {
	hdrBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		return Packet{}, ErrShortHeader
	}
	h, err := DecodeHeader(hdrBuf)
	if err != nil {
		return Packet{}, err
	}
	payload := make([]byte, h.PayLen)
	if h.PayLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Packet{}, ErrShortPayload
		}
	}
	return Packet{Header: h, Payload: payload}, nil
}

// WritePacket writes p's wire form to w.
func WritePacket(w io.Writer, p Packet) error {
	_, err := w.Write(p.Encode())
	return err
}

// NewSearchPacket builds a SEARCH packet with a fresh guid, DefaultTTL,
// zero hops, and the given payload.
func NewSearchPacket(payload []byte) Packet {
	return Packet{
		Header: Header{
			GUID:   NewGUID(),
			Type:   TypeSearch,
			TTL:    DefaultTTL,
			Hops:   0,
			PayLen: uint32(len(payload)),
		},
		Payload: payload,
	}
}
