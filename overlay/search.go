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
	"strings"
	"sync"

	"github.com/ahenroid/ptptl-0.2/symkey"
)

const (
	secureQueryPrefix = "/secure/"
	keyQueryName      = "key"
)

// EncodeSearchPayload lays out a SEARCH packet's payload: speed LE16
// followed by a NUL-terminated query string (§6.2).
func EncodeSearchPayload(speed uint16, query string) []byte {
	buf := make([]byte, 2+len(query)+1)
	binary.LittleEndian.PutUint16(buf[0:2], speed)
	copy(buf[2:], query)
	buf[len(buf)-1] = 0
	return buf
}

// DecodeSearchPayload reverses EncodeSearchPayload.
func DecodeSearchPayload(payload []byte) (speed uint16, query string, err error) {
	if len(payload) < 3 {
		return 0, "", ErrShortPayload
	}
	speed = binary.LittleEndian.Uint16(payload[0:2])
	rest := payload[2:]
	idx := bytes.IndexByte(rest, 0)
	if idx < 0 {
		return 0, "", ErrShortPayload
	}
	return speed, string(rest[:idx]), nil
}

// SecureQuery rewrites plainQuery for group-scoped search, per spec.md
// §4.J: "/secure/<group-name>/<base64(group.key.encrypt(original-query))>".
func SecureQuery(groupName, plainQuery string, key *symkey.Key) (string, error) {
	ct, err := key.Encrypt([]byte(plainQuery), true, true)
	if err != nil {
		return "", err
	}
	return secureQueryPrefix + groupName + "/" + b64Encode(ct), nil
}

// ParseSecureQuery splits a "/secure/<group>/<payload>" query into its
// group name and base64 payload. ok is false for any non-secure query.
func ParseSecureQuery(query string) (group, encodedPayload string, ok bool) {
	if !strings.HasPrefix(query, secureQueryPrefix) {
		return "", "", false
	}
	rest := query[len(secureQueryPrefix):]
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// DecryptSecureQuery decodes and symmetric-decrypts a secure query's
// payload under key, returning the original plaintext query.
func DecryptSecureQuery(encodedPayload string, key *symkey.Key) (string, error) {
	ct := b64Decode(encodedPayload)
	pt, err := key.Decrypt(ct, true, true)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// IsKeyQuery reports whether a (already-decrypted) secure query names
// the group's own key file.
func IsKeyQuery(plainQuery string) bool { return plainQuery == keyQueryName }

// FileHandle describes one remote hit delivered to a search callback.
type FileHandle struct {
	Name  string
	Size  uint32
	Ref   uint32
	IP    uint32
	Port  uint16
	Speed uint32
	Group string
}

// SearchCallback is invoked once per hit for a given search.
type SearchCallback func(hit FileHandle)

type searchRecord struct {
	callback SearchCallback
	context  any
	group    string
}

// Searches is the in-flight search table keyed by packet guid (§4.J
// "searches table" / §5's per-search-guid ordering guarantee).
type Searches struct {
	mu     sync.Mutex
	byGUID map[[16]byte]searchRecord
}

// NewSearches creates an empty search table.
func NewSearches() *Searches {
	return &Searches{byGUID: make(map[[16]byte]searchRecord)}
}

// Add records a new in-flight search under guid.
func (s *Searches) Add(guid [16]byte, cb SearchCallback, context any, group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byGUID[guid] = searchRecord{callback: cb, context: context, group: group}
}

// Lookup returns the record for guid, if still outstanding.
func (s *Searches) Lookup(guid [16]byte) (SearchCallback, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byGUID[guid]
	if !ok {
		return nil, "", false
	}
	return r.callback, r.group, true
}

// Stop removes every search whose context equals context — spec.md §5's
// SearchStop, which drops future replies silently without killing any
// worker.
func (s *Searches) Stop(context any) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for guid, r := range s.byGUID {
		if r.context == context {
			delete(s.byGUID, guid)
			n++
		}
	}
	return n
}

// Remove drops a single search by guid.
func (s *Searches) Remove(guid [16]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byGUID, guid)
}

// Len reports how many searches are currently outstanding.
func (s *Searches) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byGUID)
}
