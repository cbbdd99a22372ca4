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

// Package identity implements spec.md §4.E: an X.509 v3 certificate plus
// RSA keypair, generated, self-signed, cross-signed, and checked for
// expiry. The RSA key generation and PKCS#1 v1.5 sign/verify follow
// crypto/keys/rs256.go's shape, with SHA-1 in place of SHA-256 per
// spec.md §4.E/§6.1.
package identity

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const (
	// ModulusBits is the system-wide RSA modulus size (§6.1 default).
	ModulusBits = 1024
	// ModulusBytes is ModulusBits in bytes — the fixed challenge and
	// signature size spec.md §4.G relies on.
	ModulusBytes = ModulusBits / 8
	// PublicExponent is the fixed RSA public exponent (§6.1).
	PublicExponent = 65537
	// DefaultValidity is the self-sign validity window new identities
	// get (§4.E "self-sign with the system-default validity window").
	DefaultValidity = 365 * 24 * time.Hour

	// emailAddressOID is the legacy PKCS#9 emailAddress DN attribute,
	// used by the original library's EMAIL_ADDRESS constant (§8
	// scenario 1).
)

var emailAddressOID = []int{1, 2, 840, 113549, 1, 9, 1}

// Errors returned by identity operations.
var (
	ErrNoPrivateKey  = errors.New("identity: no private key present")
	ErrNoCertificate = errors.New("identity: no certificate present")
	ErrPlaintextTooLarge = errors.New("identity: plaintext exceeds modulus-11 bytes")
	ErrCiphertextSize    = errors.New("identity: ciphertext must be exactly ModulusBytes")
	ErrExpired           = errors.New("identity: certificate has expired")
	ErrCrossSigned       = errors.New("identity: certificate is cross-signed, issuer controls it")
)

// Identity is a certificate plus, optionally, the matching private key.
// Invariant (i): the public modulus is always exactly ModulusBytes.
// Invariant (ii): a self-signed Identity has subject == issuer.
// Invariant (iii): Encrypt requires a certificate; Decrypt/Sign require a
// private key.
type Identity struct {
	priv *rsa.PrivateKey
	pub  *rsa.PublicKey

	subject pkix.Name
	issuer  pkix.Name

	notBefore time.Time
	notAfter  time.Time
	serial    *big.Int

	certDER []byte
	cert    *x509.Certificate
}

// New generates a fresh RSA keypair, sets subject CN to name, and
// self-signs with DefaultValidity.
func New(name string) (*Identity, error) {
	priv, err := rsa.GenerateKey(rand.Reader, ModulusBits)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	id := &Identity{
		priv:      priv,
		pub:       &priv.PublicKey,
		subject:   pkix.Name{CommonName: name},
		notBefore: now,
		notAfter:  now.Add(DefaultValidity),
		serial:    serial,
	}
	id.issuer = id.subject

	if err := id.selfSign(); err != nil {
		return nil, err
	}
	return id, nil
}

// FromCertificateDER reconstructs an Identity from a parsed certificate,
// with no private key — the "reconstructed from a certificate during
// import" lifecycle spec.md §3 describes.
func FromCertificateDER(der []byte) (*Identity, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("identity: parse certificate: %w", err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("identity: certificate does not carry an RSA public key")
	}
	return &Identity{
		pub:       pub,
		subject:   cert.Subject,
		issuer:    cert.Issuer,
		notBefore: cert.NotBefore,
		notAfter:  cert.NotAfter,
		serial:    cert.SerialNumber,
		certDER:   der,
		cert:      cert,
	}, nil
}

// FromCertificateDERWithKey reconstructs an Identity from a parsed
// certificate and its matching private key — the path used when loading
// an identity back out of a secure store that exported the key.
func FromCertificateDERWithKey(der []byte, priv *rsa.PrivateKey) (*Identity, error) {
	id, err := FromCertificateDER(der)
	if err != nil {
		return nil, err
	}
	if priv != nil {
		id.priv = priv
		id.pub = &priv.PublicKey
	}
	return id, nil
}

// RawPrivateKey returns id's private key and whether one is present, for
// callers (the secure store, PKCS#7 envelope helpers) that must operate
// on the raw *rsa.PrivateKey directly.
func (id *Identity) RawPrivateKey() (*rsa.PrivateKey, bool) {
	return id.priv, id.priv != nil
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, limit)
}

// Name returns the subject common name.
func (id *Identity) Name() string { return id.subject.CommonName }

// IssuerName returns the issuer common name.
func (id *Identity) IssuerName() string { return id.issuer.CommonName }

// HasPrivateKey reports whether id holds the matching private key.
func (id *Identity) HasPrivateKey() bool { return id.priv != nil }

// NotAfter returns the certificate's expiry time.
func (id *Identity) NotAfter() time.Time { return id.notAfter }

// IsExpired reports whether the certificate has expired as of now.
func (id *Identity) IsExpired() bool { return time.Now().After(id.notAfter) }

// PublicKey returns the RSA public key.
func (id *Identity) PublicKey() *rsa.PublicKey { return id.pub }

// CertificateDER returns the DER-encoded certificate.
func (id *Identity) CertificateDER() []byte { return id.certDER }

// Certificate returns the parsed certificate.
func (id *Identity) Certificate() *x509.Certificate { return id.cert }

// StripPrivateKey zeroizes and discards the private key, leaving a
// public-only Identity — one of the three mutations spec.md §3 allows,
// and spec.md §3/§9's "explicitly zeroize" teardown invariant applied to
// the one non-[]byte secret in this codebase. An *rsa.PrivateKey has no
// Destroy of its own, so each big.Int field's word slice is overwritten
// in place via Bits(), which shares the big.Int's backing array, before
// the reference is dropped.
func (id *Identity) StripPrivateKey() {
	if id.priv != nil {
		zeroizeBigInt(id.priv.D)
		for _, p := range id.priv.Primes {
			zeroizeBigInt(p)
		}
		zeroizeBigInt(id.priv.Precomputed.Dp)
		zeroizeBigInt(id.priv.Precomputed.Dq)
		zeroizeBigInt(id.priv.Precomputed.Qinv)
		for _, c := range id.priv.Precomputed.CRTValues {
			zeroizeBigInt(c.Exp)
			zeroizeBigInt(c.Coeff)
			zeroizeBigInt(c.R)
		}
	}
	id.priv = nil
}

// zeroizeBigInt overwrites x's underlying words in place, leaving x
// itself usable (but zero) rather than replacing it with a fresh value
// that would leave the original allocation's bits behind in memory.
func zeroizeBigInt(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
}

// selfSign (re)builds id's certificate with subject == issuer, signed by
// id's own private key. Every identity is its own CA (IsCA, KeyUsage
// includes CertSign) so that it can later cross-sign other identities and
// so that VerifyIdentity can use it directly as a trust root.
func (id *Identity) selfSign() error {
	if id.priv == nil {
		return ErrNoPrivateKey
	}
	id.issuer = id.subject

	template := &x509.Certificate{
		SerialNumber:          id.serial,
		Subject:               id.subject,
		Issuer:                id.subject,
		NotBefore:             id.notBefore,
		NotAfter:              id.notAfter,
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		SubjectKeyId:          subjectKeyID(&id.priv.PublicKey),
	}
	template.AuthorityKeyId = template.SubjectKeyId

	der, err := x509.CreateCertificate(rand.Reader, template, template, &id.priv.PublicKey, id.priv)
	if err != nil {
		return fmt.Errorf("identity: self-sign: %w", err)
	}
	return id.adopt(der)
}

func (id *Identity) adopt(der []byte) error {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return fmt.Errorf("identity: parse generated certificate: %w", err)
	}
	id.certDER = der
	id.cert = cert
	id.subject = cert.Subject
	id.issuer = cert.Issuer
	id.notBefore = cert.NotBefore
	id.notAfter = cert.NotAfter
	id.serial = cert.SerialNumber
	return nil
}

// isSelfSigned reports whether id's current certificate has issuer ==
// subject, i.e. id itself (and not some other identity's CrossSign) last
// controlled what the certificate says. Compared on the raw DER-encoded
// name bytes, since pkix.Name holds slices and isn't comparable with ==.
func (id *Identity) isSelfSigned() bool {
	if id.cert == nil {
		return true
	}
	return bytes.Equal(id.cert.RawIssuer, id.cert.RawSubject)
}

func subjectKeyID(pub *rsa.PublicKey) []byte {
	sum := sha1Sum(pub.N.Bytes())
	return sum[:]
}
