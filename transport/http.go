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
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Headers is a parsed HTTP header block: the request/status line plus
// ordered header lines.
type Headers struct {
	FirstLine string
	Lines     []string
}

// Get returns the value of name, matched case-insensitively, and
// whether it was present.
func (h Headers) Get(name string) (string, bool) {
	for _, line := range h.Lines {
		k, v, ok := splitHeaderLine(line)
		if ok && strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// ContentLength returns the parsed Content-Length header, or 0 if
// absent or unparsable.
func (h Headers) ContentLength() int64 {
	v, ok := h.Get("Content-Length")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Status parses the numeric status code out of the first line: the
// token immediately after an "HTTP..." field. Malformed lines report
// 400, matching spec.md §4.I's "malformed requests yield 400 Bad Request
// semantically".
func (h Headers) Status() int {
	fields := strings.Fields(h.FirstLine)
	for i, f := range fields {
		if strings.HasPrefix(f, "HTTP") && i+1 < len(fields) {
			if n, err := strconv.Atoi(fields[i+1]); err == nil {
				return n
			}
		}
	}
	return 400
}

func splitHeaderLine(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

// ParseHeaders locates the end of the header block in data, accepting
// either "\r\n\r\n" or "\n\n" as the terminator, and returns the parsed
// Headers plus the index in data where the body begins. Any bytes past
// the header block are meant to be returned to the connection's unget
// buffer by the caller, per spec.md §4.I.
func ParseHeaders(data []byte) (Headers, int, bool) {
	sep := []byte("\r\n\r\n")
	lineSep := "\r\n"
	idx := bytes.Index(data, sep)
	if idx < 0 {
		sep = []byte("\n\n")
		lineSep = "\n"
		idx = bytes.Index(data, sep)
	}
	if idx < 0 {
		return Headers{}, 0, false
	}

	block := string(data[:idx])
	rawLines := strings.Split(block, lineSep)
	var lines []string
	for _, l := range rawLines {
		if l != "" {
			lines = append(lines, l)
		}
	}

	h := Headers{Lines: lines}
	if len(lines) > 0 {
		h.FirstLine = lines[0]
		h.Lines = lines[1:]
	}
	return h, idx + len(sep), true
}

// RequestLine builds an HTTP/1.1 request line for method and path
// against host:port. When usingProxy is set it uses an absolute-form
// URI (spec.md §4.I: "PUT http://host:port/path") instead of
// origin-form.
func RequestLine(method string, usingProxy bool, host string, port int, path string) string {
	if usingProxy {
		return fmt.Sprintf("%s http://%s:%d%s HTTP/1.1\r\n", method, host, port, path)
	}
	return fmt.Sprintf("%s %s HTTP/1.1\r\n", method, path)
}
