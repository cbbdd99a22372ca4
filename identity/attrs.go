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

package identity

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// Attribute names a distinguished-name field SetAttribute can mutate.
type Attribute int

const (
	CommonName Attribute = iota
	Organization
	OrganizationalUnit
	Country
	EmailAddress
)

// SetAttribute adds or overwrites a single DN attribute on id's subject
// and, for a self-signed identity, immediately re-self-signs so the
// certificate reflects the change — spec.md §3's "add/overwrite a DN
// attribute" mutation. Re-signing requires id's own private key; an
// identity that has already been cross-signed by someone else cannot be
// mutated this way since the signer, not id, controls the certificate —
// checked before any field is touched, so a rejected call leaves the
// subject and certificate exactly as they were.
func (id *Identity) SetAttribute(attr Attribute, value string) error {
	if id.priv == nil {
		return ErrNoPrivateKey
	}
	if !id.isSelfSigned() {
		return ErrCrossSigned
	}

	switch attr {
	case CommonName:
		id.subject.CommonName = value
	case Organization:
		id.subject.Organization = []string{value}
	case OrganizationalUnit:
		id.subject.OrganizationalUnit = []string{value}
	case Country:
		id.subject.Country = []string{value}
	case EmailAddress:
		setExtraName(&id.subject, emailAddressOID, value)
	default:
		return fmt.Errorf("identity: unknown attribute %d", attr)
	}

	return id.selfSign()
}

func setExtraName(name *pkix.Name, oid []int, value string) {
	want := asn1.ObjectIdentifier(oid)
	var kept []pkix.AttributeTypeAndValue
	for _, atv := range name.ExtraNames {
		if atv.Type.Equal(want) {
			continue
		}
		kept = append(kept, atv)
	}
	name.ExtraNames = append(kept, pkix.AttributeTypeAndValue{
		Type:  want,
		Value: value,
	})
}
