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

// Package symkey implements spec.md §4.D's symmetric session key: fixed
// 16-byte Blowfish-OFB key material with prepended-IV/appended-SHA1-digest
// buffer transforms and a streaming codec that tolerates an unknown
// stream length.
package symkey

import (
	"crypto/sha1"
	"errors"

	"golang.org/x/crypto/pbkdf2"

	"github.com/ahenroid/ptptl-0.2/prand"
)

const (
	// KeySize is the Blowfish key length spec.md §6.1 fixes at 16 bytes.
	KeySize = 16
	// IVSize is the Blowfish block size used as the OFB IV.
	IVSize = 8
	// DigestSize is the SHA-1 digest length appended for integrity.
	DigestSize = sha1.Size
	// DefaultPBKDF2Iterations is used when a caller does not override it.
	DefaultPBKDF2Iterations = 1000
)

// Errors returned by this package's operations.
var (
	ErrInvalidKeySize   = errors.New("symkey: key must be KeySize bytes")
	ErrDigestMismatch   = errors.New("symkey: trailing digest does not match")
	ErrTailTooShort     = errors.New("symkey: ciphertext too short for advertised layout")
	ErrNilReader        = errors.New("symkey: nil reader")
	ErrNilWriter        = errors.New("symkey: nil writer")
)

// Key is fixed-size symmetric key material. The zero value is not a
// usable key; construct one with Generate, FromBytes, or FromPassword.
type Key struct {
	bytes []byte
}

// Generate creates a new Key from cryptographically random bytes.
func Generate() (*Key, error) {
	b, err := prand.Bytes(KeySize)
	if err != nil {
		return nil, err
	}
	return &Key{bytes: b}, nil
}

// FromBytes wraps caller-supplied key material. The slice is copied so
// the caller's buffer and the Key's lifetime are independent.
func FromBytes(b []byte) (*Key, error) {
	if len(b) != KeySize {
		return nil, ErrInvalidKeySize
	}
	cp := make([]byte, KeySize)
	copy(cp, b)
	return &Key{bytes: cp}, nil
}

// FromPassword derives a Key via PBKDF2-HMAC-SHA1, deterministic in
// (password, salt, iterations) as spec.md §3 requires.
func FromPassword(password string, salt []byte, iterations int) *Key {
	if iterations <= 0 {
		iterations = DefaultPBKDF2Iterations
	}
	derived := pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha1.New)
	return &Key{bytes: derived}
}

// Bytes returns the raw key material. Callers must not retain the
// returned slice past a Destroy call.
func (k *Key) Bytes() []byte {
	return k.bytes
}

// Destroy zeroizes the key material in place, per spec.md §3's "zeroized
// on destruction" invariant.
func (k *Key) Destroy() {
	for i := range k.bytes {
		k.bytes[i] = 0
	}
}
