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

// Package prand is the cryptographic random source spec.md §4.C
// describes. Go's crypto/rand.Reader already lazily seeds itself from the
// OS entropy source exactly once per process, idempotently across
// threads, so there is nothing this package needs to add beyond a thin,
// testable façade — the "thin façade for the few entry points callers
// expect to be callable without a handle" §9 calls for.
package prand

import "crypto/rand"

// Fill draws len(buffer) cryptographically-strong random bytes into
// buffer.
func Fill(buffer []byte) error {
	_, err := rand.Read(buffer)
	return err
}

// Bytes allocates and fills n random bytes.
func Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := Fill(b); err != nil {
		return nil, err
	}
	return b, nil
}
