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

package bytesutil

import "encoding/base64"

// lineChars returns the number of base64 characters produced by encoding
// bpl plaintext bytes as a standalone quantum-aligned chunk.
func lineChars(bpl int) int {
	if bpl <= 0 {
		return 0
	}
	return ((bpl + 2) / 3) * 4
}

// Base64EncodedLen returns the exact number of bytes Base64Encode will
// produce for n source bytes wrapped every bpl plaintext bytes, with bpl
// rounded up to a multiple of 3 (see Base64Encode). bpl <= 0 disables
// line wrapping.
func Base64EncodedLen(n, bpl int) int {
	if n <= 0 {
		return 0
	}
	raw := base64.StdEncoding.EncodedLen(n)
	charsPerLine := lineChars(bpl)
	if charsPerLine <= 0 {
		return raw
	}
	lines := (raw + charsPerLine - 1) / charsPerLine
	return raw + lines
}

// Base64Encode encodes src into dst, breaking the output with a '\n' after
// every ((bpl+2)/3)*4 characters, i.e. every bpl plaintext bytes rounded
// up to a multiple of 3 (bpl 4 and 6 both give 8-character lines); the
// last line is also terminated by '\n'. If dst is nil, it returns the
// exact size a real call would need without writing anything.
func Base64Encode(src []byte, bpl int, dst []byte) int {
	if len(src) == 0 {
		return 0
	}
	if dst == nil {
		return Base64EncodedLen(len(src), bpl)
	}

	raw := base64.StdEncoding.EncodedLen(len(src))
	buf := make([]byte, raw)
	base64.StdEncoding.Encode(buf, src)

	charsPerLine := lineChars(bpl)
	if charsPerLine <= 0 {
		return copy(dst, buf)
	}

	out := 0
	for i := 0; i < len(buf); i += charsPerLine {
		end := i + charsPerLine
		if end > len(buf) {
			end = len(buf)
		}
		out += copy(dst[out:], buf[i:end])
		dst[out] = '\n'
		out++
	}
	return out
}

// base64Val maps a standard base64 alphabet byte to its 6-bit value.
func base64Val(c byte) (byte, bool) {
	switch {
	case c >= 'A' && c <= 'Z':
		return c - 'A', true
	case c >= 'a' && c <= 'z':
		return c - 'a' + 26, true
	case c >= '0' && c <= '9':
		return c - '0' + 52, true
	case c == '+':
		return 62, true
	case c == '/':
		return 63, true
	default:
		return 0, false
	}
}

// base64DecodeAll runs the lenient 6-bit stream decode described in spec
// §4.A: any byte outside the alphabet (newlines, whitespace, '=' padding)
// is silently skipped.
func base64DecodeAll(src []byte) []byte {
	out := make([]byte, 0, len(src)*3/4+4)
	var bitBuf uint32
	var bitCount uint
	for _, c := range src {
		v, ok := base64Val(c)
		if !ok {
			continue
		}
		bitBuf = (bitBuf << 6) | uint32(v)
		bitCount += 6
		if bitCount >= 8 {
			bitCount -= 8
			out = append(out, byte(bitBuf>>bitCount))
		}
	}
	return out
}

// Base64DecodedLen returns the exact decoded length of src.
func Base64DecodedLen(src []byte) int {
	return len(base64DecodeAll(src))
}

// Base64Decode decodes src into dst and returns the number of bytes
// written. If dst is nil, it returns the exact required size.
func Base64Decode(src []byte, dst []byte) int {
	out := base64DecodeAll(src)
	if dst == nil {
		return len(out)
	}
	return copy(dst, out)
}
