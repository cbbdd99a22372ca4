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

package store

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/ahenroid/ptptl-0.2/identity"
)

// ErrNoPEMBlock is returned when a buffer has no decodable PEM block.
var ErrNoPEMBlock = errors.New("store: no PEM block found")

// ExportIdentityPEM renders id as PEM: a CERTIFICATE block, plus an RSA
// PRIVATE KEY block when includeKey is true and id holds one.
func ExportIdentityPEM(id *identity.Identity, includeKey bool) ([]byte, error) {
	var out []byte
	out = append(out, pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: id.CertificateDER(),
	})...)

	if includeKey {
		if priv, ok := id.RawPrivateKey(); ok {
			out = append(out, pem.EncodeToMemory(&pem.Block{
				Type:  "RSA PRIVATE KEY",
				Bytes: x509.MarshalPKCS1PrivateKey(priv),
			})...)
		}
	}
	return out, nil
}

// ImportIdentityPEM parses a CERTIFICATE block and, if present, an RSA
// PRIVATE KEY block, returning the reconstructed Identity.
func ImportIdentityPEM(data []byte) (*identity.Identity, error) {
	var certDER []byte
	var keyDER []byte

	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			certDER = block.Bytes
		case "RSA PRIVATE KEY":
			keyDER = block.Bytes
		}
	}

	if certDER == nil {
		return nil, ErrNoPEMBlock
	}
	if keyDER != nil {
		priv, err := x509.ParsePKCS1PrivateKey(keyDER)
		if err != nil {
			return nil, fmt.Errorf("store: parse PEM private key: %w", err)
		}
		return identity.FromCertificateDERWithKey(certDER, priv)
	}
	return identity.FromCertificateDER(certDER)
}
