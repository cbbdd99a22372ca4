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

// Package store implements spec.md §4.F's secure store: an ordered list
// of identity, session-key, and opaque-secret entries, persisted as a
// PKCS#12 archive with an independent archive password and MAC password.
package store

import (
	"bytes"
	"errors"

	"github.com/google/uuid"

	"github.com/ahenroid/ptptl-0.2/container"
	"github.com/ahenroid/ptptl-0.2/identity"
)

// ReservedKeyDataName is the friendly name that flags a secret bag as raw
// session-key material rather than an opaque application secret (§4.F).
const ReservedKeyDataName = ".KEYDATA."

// Errors returned by store operations.
var (
	ErrNotFound        = errors.New("store: entry not found")
	ErrMACMismatch     = errors.New("store: MAC verification failed")
	ErrNoBackingPath   = errors.New("store: no backing path configured")
	ErrEmptyFriendlyName = errors.New("store: friendly name must not be empty")
)

// Entry is one record held by a Store: an identity (certificate, plus
// private key when ExportKey is set and present), or an opaque secret
// blob (which, under ReservedKeyDataName, is raw session-key material).
type Entry struct {
	FriendlyName string
	ID           []byte

	Identity  *identity.Identity
	ExportKey bool

	Secret []byte
}

// IsIdentity reports whether e holds an identity rather than a secret.
func (e *Entry) IsIdentity() bool { return e.Identity != nil }

// IsSessionKey reports whether e is a reserved-name raw session-key
// secret bag.
func (e *Entry) IsSessionKey() bool {
	return e.Secret != nil && e.FriendlyName == ReservedKeyDataName
}

// Store holds an ordered list of Entry values plus the independent
// archive/MAC passwords spec.md §4.F requires (either may be empty,
// and an archive written with one will refuse to load under the other).
type Store struct {
	entries *container.List[*Entry]

	path            string
	archivePassword string
	macPassword     string
	hasArchivePass  bool
	hasMACPass      bool
}

// New creates an empty, unbacked Store. SetPasswords and Load/Save attach
// it to a file.
func New() *Store {
	return &Store{entries: container.New[*Entry]()}
}

// SetPasswords configures the archive and MAC passwords independently;
// either flag may be false to mean "no password" rather than "empty
// string password", matching spec.md §4.F's "separate and may be null
// independently".
func (s *Store) SetPasswords(archivePassword string, hasArchive bool, macPassword string, hasMAC bool) {
	s.archivePassword = archivePassword
	s.hasArchivePass = hasArchive
	s.macPassword = macPassword
	s.hasMACPass = hasMAC
}

func newID() []byte {
	u := uuid.New()
	return u[:]
}

// InsertIdentity adds id to the store under friendlyName. exportKey
// governs whether id's private key is serialized on the next Save.
func (s *Store) InsertIdentity(id *identity.Identity, friendlyName string, exportKey bool) ([]byte, error) {
	if friendlyName == "" {
		return nil, ErrEmptyFriendlyName
	}
	entryID := newID()
	s.entries.PushBack(&Entry{
		FriendlyName: friendlyName,
		ID:           entryID,
		Identity:     id,
		ExportKey:    exportKey,
	})
	return entryID, nil
}

// InsertSessionKey adds raw key material under the reserved
// ReservedKeyDataName friendly name.
func (s *Store) InsertSessionKey(keyBytes []byte) []byte {
	entryID := newID()
	cp := append([]byte(nil), keyBytes...)
	s.entries.PushBack(&Entry{
		FriendlyName: ReservedKeyDataName,
		ID:           entryID,
		Secret:       cp,
	})
	return entryID
}

// InsertSecret adds an opaque application secret under friendlyName,
// which must not be ReservedKeyDataName.
func (s *Store) InsertSecret(friendlyName string, secret []byte) ([]byte, error) {
	if friendlyName == "" || friendlyName == ReservedKeyDataName {
		return nil, ErrEmptyFriendlyName
	}
	entryID := newID()
	cp := append([]byte(nil), secret...)
	s.entries.PushBack(&Entry{
		FriendlyName: friendlyName,
		ID:           entryID,
		Secret:       cp,
	})
	return entryID, nil
}

// RemoveIdentity removes the first entry whose identity is target by
// pointer equality, or whose public modulus matches target's, per
// spec.md §4.F ("so a re-imported copy of the 'same' identity removes
// its twin").
func (s *Store) RemoveIdentity(target *identity.Identity) bool {
	targetMod := modulusBytes(target)
	removed := s.entries.RemoveFunc(func(e *Entry) bool {
		if e.Identity == nil {
			return false
		}
		if e.Identity == target {
			return true
		}
		return targetMod != nil && bytes.Equal(modulusBytes(e.Identity), targetMod)
	})
	return removed > 0
}

func modulusBytes(id *identity.Identity) []byte {
	pub := id.PublicKey()
	if pub == nil {
		return nil
	}
	return pub.N.Bytes()
}

// RemoveByID removes the entry whose opaque id matches idBytes.
func (s *Store) RemoveByID(idBytes []byte) bool {
	removed := s.entries.RemoveFunc(func(e *Entry) bool {
		return bytes.Equal(e.ID, idBytes)
	})
	return removed > 0
}

// Cursor is an opaque enumeration position returned by Find and fed back
// in to resume; the zero Cursor starts from the beginning.
type Cursor int

// Find enumerates entries matching the given (possibly empty/nil)
// criteria, starting after cursor, and returns the next match plus a
// cursor to resume from. An empty friendlyName or nil id acts as a
// wildcard for that field.
func (s *Store) Find(friendlyName string, id []byte, cursor Cursor) (*Entry, Cursor, bool) {
	values := s.entries.Values()
	for i := int(cursor); i < len(values); i++ {
		e := values[i]
		if friendlyName != "" && e.FriendlyName != friendlyName {
			continue
		}
		if id != nil && !bytes.Equal(e.ID, id) {
			continue
		}
		return e, Cursor(i + 1), true
	}
	return nil, Cursor(len(values)), false
}

// FindIdentity enumerates identity entries matching commonName (empty =
// wildcard), optionally requiring a private key, optionally requiring a
// specific public modulus, starting after cursor. It returns identities
// directly, per spec.md §4.F's "the latter returns identities directly".
func (s *Store) FindIdentity(commonName string, requiresKey bool, modulus []byte, cursor Cursor) (*identity.Identity, Cursor, bool) {
	values := s.entries.Values()
	for i := int(cursor); i < len(values); i++ {
		e := values[i]
		if e.Identity == nil {
			continue
		}
		if commonName != "" && e.Identity.Name() != commonName {
			continue
		}
		if requiresKey && !e.Identity.HasPrivateKey() {
			continue
		}
		if modulus != nil && !bytes.Equal(modulusBytes(e.Identity), modulus) {
			continue
		}
		return e.Identity, Cursor(i + 1), true
	}
	return nil, Cursor(len(values)), false
}

// Len returns the number of entries currently held.
func (s *Store) Len() int { return s.entries.Len() }

// Entries returns a snapshot of all entries, head to tail.
func (s *Store) Entries() []*Entry { return s.entries.Values() }

// Reset zeroizes every held secret and private key, then discards all
// entries, leaving passwords and path untouched. Zeroizing in place
// before dropping the container is the same "explicitly zeroize" (§3/§9)
// discipline sealSidecar/openSidecar already apply to their ephemeral
// sidecar keys via symkey.Key.Destroy.
func (s *Store) Reset() {
	for _, e := range s.entries.Values() {
		for i := range e.Secret {
			e.Secret[i] = 0
		}
		if e.Identity != nil {
			e.Identity.StripPrivateKey()
		}
	}
	s.entries = container.New[*Entry]()
}
