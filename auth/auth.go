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

// Package auth implements spec.md §4.G's challenge/response
// authenticator: a local identity issues encrypted nonces, the peer
// proves it holds the matching private key by decrypting and hashing
// the nonce back, and a pending-challenge table with per-entry expiry
// tracks what's still outstanding. Grounded on
// handshake/server.go's pendingState map plus its TTL-sweep-on-lookup
// pattern, adapted from a handshake-round cache into the
// verify-once/opaque-context semantics spec.md §4.G requires.
package auth

import (
	"crypto/sha1"
	"errors"
	"time"

	"github.com/ahenroid/ptptl-0.2/container"
	"github.com/ahenroid/ptptl-0.2/identity"
	"github.com/ahenroid/ptptl-0.2/prand"
)

const (
	// ChallengeSize is the fixed challenge buffer length (§4.G): one RSA
	// block.
	ChallengeSize = identity.ModulusBytes
	// ResponseSize is the fixed response buffer length: one SHA-1 digest.
	ResponseSize = sha1.Size
)

// PlaintextSize is the nonce length Challenge draws: the largest buffer
// the subject identity's Encrypt can seal under PKCS#1 v1.5 padding.
var PlaintextSize = identity.MaxPlaintextSize()

// Errors returned by authenticator operations.
var (
	ErrEncryptFailed = errors.New("auth: challenge encryption failed")
	ErrDecryptFailed = errors.New("auth: response decryption failed")
)

type pending struct {
	response []byte
	expires  time.Time
	context  any
}

// Authenticator holds pending challenges this node has issued and is
// still waiting to see answered, plus the local identity used to answer
// challenges addressed to this node.
type Authenticator struct {
	local   *identity.Identity
	pending *container.List[pending]
}

// New creates an Authenticator that decrypts incoming challenges with
// local's private key.
func New(local *identity.Identity) *Authenticator {
	return &Authenticator{local: local, pending: container.New[pending]()}
}

// Challenge issues a fresh nonce encrypted to subject's public key,
// records the expected response under opaqueContext for expireSeconds,
// and returns the encrypted challenge buffer.
func (a *Authenticator) Challenge(subject *identity.Identity, expireSeconds int, opaqueContext any) ([]byte, error) {
	nonce, err := prand.Bytes(PlaintextSize)
	if err != nil {
		return nil, err
	}

	sum := sha1.Sum(nonce)
	response := append([]byte(nil), sum[:]...)

	chal, err := subject.Encrypt(nonce)
	if err != nil {
		return nil, ErrEncryptFailed
	}

	a.pending.PushBack(pending{
		response: response,
		expires:  time.Now().Add(time.Duration(expireSeconds) * time.Second),
		context:  opaqueContext,
	})

	return chal, nil
}

// Respond decrypts chal with the local identity's private key and
// returns SHA1(nonce) as the response buffer.
func (a *Authenticator) Respond(chal []byte) ([]byte, error) {
	nonce, err := a.local.Decrypt(chal)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	sum := sha1.Sum(nonce)
	return sum[:], nil
}

// Verify sweeps expired pending challenges and removes and returns the
// opaque context of the first remaining pending challenge whose
// response equals resp, both under the same lock acquisition so the
// sweep is atomic with the match decision (§5: a challenge cannot be
// matched against after it was supposed to have been swept, or vice
// versa). Verify is the only deletion path other than Reset. The
// second return value is false when nothing matched.
func (a *Authenticator) Verify(resp []byte) (any, bool) {
	now := time.Now()
	match, ok := a.pending.SweepFindRemove(
		func(p pending) bool { return now.After(p.expires) },
		func(p pending) bool { return responseEqual(p.response, resp) },
	)
	if !ok {
		return nil, false
	}
	return match.context, true
}

func responseEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Pending reports how many challenges are currently outstanding,
// including ones that have expired but not yet been swept by Verify.
func (a *Authenticator) Pending() int { return a.pending.Len() }

// Reset discards all pending challenges.
func (a *Authenticator) Reset() { a.pending = container.New[pending]() }
