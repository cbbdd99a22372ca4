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
	"bytes"
	"crypto/x509"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/digitorus/pkcs7"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/ahenroid/ptptl-0.2/container"
	"github.com/ahenroid/ptptl-0.2/identity"
	"github.com/ahenroid/ptptl-0.2/symkey"
)

// On disk, an archive is two length-prefixed sections:
//
//  1. A PKCS#12 archive (go-pkcs12), carrying the store's "primary"
//     identity — the first export-key identity holding a private key —
//     as the interop artifact spec.md §4.F's "on-disk format" names.
//     Its only role on Load is to enforce the archive password: a wrong
//     password fails to decode it.
//  2. A PKCS#7-adjacent sidecar: a JSON record of every entry (including
//     the primary identity's own metadata, certificate, and key, so the
//     PKCS#12 section never has to be parsed back into entries) sealed
//     with symkey under a key derived from the MAC password. A wrong MAC
//     password fails to open it, independently of the archive password.
//
// PKCS#7 EnvelopeEncrypt/EnvelopeDecrypt below are unrelated pure
// functions over byte buffers — spec.md §4.F's static helpers — not used
// internally by Save/Load.

type sidecarEntry struct {
	Kind         string `json:"kind"` // "identity" or "secret"
	FriendlyName string `json:"friendly_name"`
	ID           []byte `json:"id"`

	ExportKey bool   `json:"export_key,omitempty"`
	CertDER   []byte `json:"cert_der,omitempty"`
	KeyDER    []byte `json:"key_der,omitempty"`

	Secret []byte `json:"secret,omitempty"`
}

// Save serializes every entry to path, per the on-disk layout above.
// Caller-supplied atomicity is not guaranteed, matching spec.md §4.F.
func (s *Store) Save(path string) error {
	entries := s.entries.Values()

	var sidecarEntries []sidecarEntry
	var primary *Entry
	var allIdentCerts []*x509.Certificate

	for _, e := range entries {
		if e.IsIdentity() {
			if primary == nil && e.ExportKey && e.Identity.HasPrivateKey() {
				primary = e
			}
			if cert := e.Identity.Certificate(); cert != nil {
				allIdentCerts = append(allIdentCerts, cert)
			}

			se := sidecarEntry{
				Kind:         "identity",
				FriendlyName: e.FriendlyName,
				ID:           e.ID,
				ExportKey:    e.ExportKey,
				CertDER:      e.Identity.CertificateDER(),
			}
			if e.ExportKey {
				if priv, ok := e.Identity.RawPrivateKey(); ok {
					se.KeyDER = x509.MarshalPKCS1PrivateKey(priv)
				}
			}
			sidecarEntries = append(sidecarEntries, se)
			continue
		}

		sidecarEntries = append(sidecarEntries, sidecarEntry{
			Kind:         "secret",
			FriendlyName: e.FriendlyName,
			ID:           e.ID,
			Secret:       e.Secret,
		})
	}

	var pfx []byte
	var err error
	if primary != nil {
		priv, _ := primary.Identity.RawPrivateKey()
		caCerts := otherCerts(allIdentCerts, primary.Identity.Certificate())
		pfx, err = pkcs12.Modern.Encode(priv, primary.Identity.Certificate(), caCerts, s.archiveAuth())
		if err != nil {
			return fmt.Errorf("store: encode pkcs12: %w", err)
		}
	} else if len(allIdentCerts) > 0 {
		pfx, err = pkcs12.Modern.EncodeTrustStore(allIdentCerts, s.archiveAuth())
		if err != nil {
			return fmt.Errorf("store: encode pkcs12 trust store: %w", err)
		}
	}

	plainSidecar, err := json.Marshal(sidecarEntries)
	if err != nil {
		return fmt.Errorf("store: marshal sidecar: %w", err)
	}
	envelope, err := s.sealSidecar(plainSidecar)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	writeSection(&out, pfx)
	writeSection(&out, envelope)
	s.path = path
	return os.WriteFile(path, out.Bytes(), 0o600)
}

func otherCerts(all []*x509.Certificate, skip *x509.Certificate) []*x509.Certificate {
	var out []*x509.Certificate
	for _, c := range all {
		if c != skip {
			out = append(out, c)
		}
	}
	return out
}

// Load replaces the store's entries from path, failing with
// ErrMACMismatch if either the archive or MAC password is wrong.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("store: read %s: %w", path, err)
	}

	pfx, rest, err := readSection(data)
	if err != nil {
		return err
	}
	envelope, _, err := readSection(rest)
	if err != nil {
		return err
	}

	if len(pfx) > 0 {
		if _, _, _, err := pkcs12.DecodeChain(pfx, s.archiveAuth()); err != nil {
			if _, terr := pkcs12.DecodeTrustStore(pfx, s.archiveAuth()); terr != nil {
				return ErrMACMismatch
			}
		}
	}

	plainSidecar, err := s.openSidecar(envelope)
	if err != nil {
		return err
	}

	var sidecarEntries []sidecarEntry
	if len(plainSidecar) > 0 {
		if err := json.Unmarshal(plainSidecar, &sidecarEntries); err != nil {
			return fmt.Errorf("store: unmarshal sidecar: %w", err)
		}
	}

	fresh := container.New[*Entry]()
	for _, se := range sidecarEntries {
		if se.Kind == "identity" {
			var id *identity.Identity
			var ierr error
			if len(se.KeyDER) > 0 {
				priv, perr := x509.ParsePKCS1PrivateKey(se.KeyDER)
				if perr != nil {
					continue
				}
				id, ierr = identity.FromCertificateDERWithKey(se.CertDER, priv)
			} else {
				id, ierr = identity.FromCertificateDER(se.CertDER)
			}
			if ierr != nil {
				continue
			}
			fresh.PushBack(&Entry{
				FriendlyName: se.FriendlyName,
				ID:           se.ID,
				Identity:     id,
				ExportKey:    se.ExportKey,
			})
			continue
		}
		fresh.PushBack(&Entry{
			FriendlyName: se.FriendlyName,
			ID:           se.ID,
			Secret:       se.Secret,
		})
	}

	s.entries = fresh
	s.path = path
	return nil
}

func (s *Store) archiveAuth() string {
	if s.hasArchivePass {
		return s.archivePassword
	}
	return ""
}

func (s *Store) macAuth() string {
	if s.hasMACPass {
		return s.macPassword
	}
	return ""
}

// sealSidecar encrypts plain under a key derived from the MAC password
// (independent of the archive password, per spec.md §4.F).
func (s *Store) sealSidecar(plain []byte) ([]byte, error) {
	key := symkey.FromPassword(s.macAuth(), []byte("ptp-store-sidecar"), symkey.DefaultPBKDF2Iterations)
	defer key.Destroy()
	return key.Encrypt(plain, true, true)
}

func (s *Store) openSidecar(envelope []byte) ([]byte, error) {
	if len(envelope) == 0 {
		return nil, nil
	}
	key := symkey.FromPassword(s.macAuth(), []byte("ptp-store-sidecar"), symkey.DefaultPBKDF2Iterations)
	defer key.Destroy()
	plain, err := key.Decrypt(envelope, true, true)
	if err != nil {
		return nil, ErrMACMismatch
	}
	return plain, nil
}

func writeSection(buf *bytes.Buffer, section []byte) {
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(section)))
	buf.Write(lenBytes[:])
	buf.Write(section)
}

func readSection(data []byte) (section []byte, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("store: truncated archive section header")
	}
	n := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < n {
		return nil, nil, fmt.Errorf("store: truncated archive section body")
	}
	return data[:n], data[n:], nil
}

// EnvelopeEncrypt seals data to recipient's public key (PKCS#7
// EnvelopedData), optionally signing the envelope with signer.
func EnvelopeEncrypt(data []byte, recipient *identity.Identity, signer *identity.Identity) ([]byte, error) {
	enveloped, err := pkcs7.Encrypt(data, []*x509.Certificate{recipient.Certificate()})
	if err != nil {
		return nil, fmt.Errorf("store: pkcs7 encrypt: %w", err)
	}
	if signer == nil {
		return enveloped, nil
	}
	priv, ok := signer.RawPrivateKey()
	if !ok {
		return nil, ErrNotFound
	}
	signedData, err := pkcs7.NewSignedData(enveloped)
	if err != nil {
		return nil, fmt.Errorf("store: pkcs7 new signed data: %w", err)
	}
	if err := signedData.AddSigner(signer.Certificate(), priv, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("store: pkcs7 add signer: %w", err)
	}
	return signedData.Finish()
}

// EnvelopeDecrypt opens data with recipient's private key, optionally
// verifying it was signed by verifySigner.
func EnvelopeDecrypt(data []byte, recipient *identity.Identity, verifySigner *identity.Identity) ([]byte, error) {
	priv, ok := recipient.RawPrivateKey()
	if !ok {
		return nil, ErrNotFound
	}

	if verifySigner == nil {
		p7, err := pkcs7.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("store: pkcs7 parse: %w", err)
		}
		return p7.Decrypt(recipient.Certificate(), priv)
	}

	signed, err := pkcs7.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("store: pkcs7 parse signed: %w", err)
	}
	if err := signed.Verify(); err != nil {
		return nil, fmt.Errorf("store: pkcs7 verify signature: %w", err)
	}
	inner, err := pkcs7.Parse(signed.Content)
	if err != nil {
		return nil, fmt.Errorf("store: pkcs7 parse inner envelope: %w", err)
	}
	return inner.Decrypt(recipient.Certificate(), priv)
}
