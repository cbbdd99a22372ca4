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

// Package bytesutil holds the wire-level primitives every other layer of
// ptptl is built on: big-endian fixed-width packing and a lenient,
// line-wrapped Base64 codec matching the overlay's historical wire format.
package bytesutil

import "encoding/binary"

// PutUint16 writes v as big-endian into dst[0:2].
func PutUint16(dst []byte, v uint16) {
	binary.BigEndian.PutUint16(dst, v)
}

// Uint16 reads a big-endian uint16 from src[0:2].
func Uint16(src []byte) uint16 {
	return binary.BigEndian.Uint16(src)
}

// PutUint32 writes v as big-endian into dst[0:4].
func PutUint32(dst []byte, v uint32) {
	binary.BigEndian.PutUint32(dst, v)
}

// Uint32 reads a big-endian uint32 from src[0:4].
func Uint32(src []byte) uint32 {
	return binary.BigEndian.Uint32(src)
}
