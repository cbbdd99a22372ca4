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
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"fmt"
	"time"
)

func sha1Sum(b []byte) []byte {
	sum := sha1.Sum(b)
	return sum[:]
}

// maxPlaintext is the largest message Encrypt can seal under PKCS#1 v1.5
// padding: the modulus size less 11 bytes of padding overhead.
func maxPlaintext() int { return ModulusBytes - 11 }

// MaxPlaintextSize is the largest buffer Encrypt can seal — spec.md
// §4.G's PLAINTEXT_SIZE.
func MaxPlaintextSize() int { return maxPlaintext() }

// Encrypt seals plaintext for id's public key using RSA PKCS#1 v1.5, the
// scheme spec.md §4.E fixes (over OAEP) for interoperability with the
// original wire format.
func (id *Identity) Encrypt(plaintext []byte) ([]byte, error) {
	if id.pub == nil {
		return nil, ErrNoCertificate
	}
	if len(plaintext) > maxPlaintext() {
		return nil, ErrPlaintextTooLarge
	}
	return rsa.EncryptPKCS1v15(rand.Reader, id.pub, plaintext)
}

// Decrypt reverses Encrypt using id's private key.
func (id *Identity) Decrypt(ciphertext []byte) ([]byte, error) {
	if id.priv == nil {
		return nil, ErrNoPrivateKey
	}
	if len(ciphertext) != ModulusBytes {
		return nil, ErrCiphertextSize
	}
	return rsa.DecryptPKCS1v15(rand.Reader, id.priv, ciphertext)
}

// Sign produces a SHA-1/RSA PKCS#1 v1.5 signature over data.
func (id *Identity) Sign(data []byte) ([]byte, error) {
	if id.priv == nil {
		return nil, ErrNoPrivateKey
	}
	digest := sha1Sum(data)
	return rsa.SignPKCS1v15(rand.Reader, id.priv, crypto.SHA1, digest)
}

// VerifySignature checks a signature produced by Sign against id's public
// key.
func (id *Identity) VerifySignature(data, sig []byte) error {
	if id.pub == nil {
		return ErrNoCertificate
	}
	digest := sha1Sum(data)
	return rsa.VerifyPKCS1v15(id.pub, crypto.SHA1, digest, sig)
}

// CrossSign issues a fresh certificate for other, signed by id, valid for
// validFor from now. Per spec.md §4.E this clears any prior extensions on
// other (the certificate is rebuilt from scratch rather than amended),
// sets notBefore/notAfter to the new window, sets the issuer to id's
// subject, and marks basicConstraints CA:true so other can in turn
// cross-sign further identities. id must hold its own private key.
func (id *Identity) CrossSign(other *Identity, validFor time.Duration) error {
	if id.priv == nil {
		return ErrNoPrivateKey
	}
	if id.cert == nil {
		return ErrNoCertificate
	}
	if other.pub == nil {
		return ErrNoCertificate
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          other.serial,
		Subject:               other.subject,
		Issuer:                id.subject,
		NotBefore:             now,
		NotAfter:              now.Add(validFor),
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		SubjectKeyId:          subjectKeyID(other.pub),
		AuthorityKeyId:        id.cert.SubjectKeyId,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, id.cert, other.pub, id.priv)
	if err != nil {
		return fmt.Errorf("identity: cross-sign: %w", err)
	}
	return other.adopt(der)
}

// VerifyIdentity checks that other's certificate chains to id as a trust
// root and that both id's own certificate and other's certificate are
// currently valid. A self-signed id that has itself expired can no longer
// vouch for anyone, even with a cryptographically sound chain — spec.md
// §4.E's "expiry is checked against both certificates in the chain".
func (id *Identity) VerifyIdentity(other *Identity) error {
	if id.cert == nil || other.cert == nil {
		return ErrNoCertificate
	}
	if id.IsExpired() {
		return ErrExpired
	}

	roots := x509.NewCertPool()
	roots.AddCert(id.cert)

	opts := x509.VerifyOptions{
		Roots:         roots,
		CurrentTime:   time.Now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	_, err := other.cert.Verify(opts)
	return err
}
