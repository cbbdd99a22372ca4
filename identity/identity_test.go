package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelfSignedRoundTrip(t *testing.T) {
	id, err := New("John Doe")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", id.Name())
	assert.Equal(t, "John Doe", id.IssuerName())
	assert.True(t, id.HasPrivateKey())
	assert.NoError(t, id.VerifyIdentity(id))
}

func TestSetAttributeUpdatesSubjectAndResigns(t *testing.T) {
	id, err := New("John Doe")
	require.NoError(t, err)
	before := id.CertificateDER()

	require.NoError(t, id.SetAttribute(EmailAddress, "john@doe.org"))
	after := id.CertificateDER()

	assert.NotEqual(t, before, after)
	assert.Equal(t, "John Doe", id.Name())
	assert.NoError(t, id.VerifyIdentity(id))
}

func TestImportFromCertificateDERHasNoPrivateKey(t *testing.T) {
	id, err := New("Jane Doe")
	require.NoError(t, err)

	imported, err := FromCertificateDER(id.CertificateDER())
	require.NoError(t, err)
	assert.False(t, imported.HasPrivateKey())
	assert.Equal(t, "Jane Doe", imported.Name())
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	id, err := New("Encryptor")
	require.NoError(t, err)

	msg := []byte("the quick brown fox")
	ct, err := id.Encrypt(msg)
	require.NoError(t, err)
	assert.Len(t, ct, ModulusBytes)

	pt, err := id.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, msg, pt)
}

func TestEncryptRejectsOversizePlaintext(t *testing.T) {
	id, err := New("Encryptor")
	require.NoError(t, err)

	_, err = id.Encrypt(make([]byte, ModulusBytes))
	assert.ErrorIs(t, err, ErrPlaintextTooLarge)
}

func TestSignVerifySignatureRoundTrip(t *testing.T) {
	id, err := New("Signer")
	require.NoError(t, err)

	data := []byte("message to authenticate")
	sig, err := id.Sign(data)
	require.NoError(t, err)
	assert.NoError(t, id.VerifySignature(data, sig))

	tampered := append([]byte(nil), data...)
	tampered[0] ^= 0xFF
	assert.Error(t, id.VerifySignature(tampered, sig))
}

func TestCrossSignAndVerifyIdentity(t *testing.T) {
	issuer, err := New("Trusted Issuer")
	require.NoError(t, err)
	subject, err := New("Leaf Identity")
	require.NoError(t, err)

	require.NoError(t, issuer.CrossSign(subject, time.Hour))
	assert.Equal(t, "Trusted Issuer", subject.IssuerName())
	assert.Equal(t, "Leaf Identity", subject.Name())

	assert.NoError(t, issuer.VerifyIdentity(subject))
}

func TestVerifyIdentityRejectsUnrelatedIdentity(t *testing.T) {
	issuer, err := New("Trusted Issuer")
	require.NoError(t, err)
	stranger, err := New("Stranger")
	require.NoError(t, err)

	assert.Error(t, issuer.VerifyIdentity(stranger))
}

func TestVerifyIdentityFailsWhenRootExpired(t *testing.T) {
	issuer, err := New("Expiring Issuer")
	require.NoError(t, err)
	subject, err := New("Leaf")
	require.NoError(t, err)
	require.NoError(t, issuer.CrossSign(subject, time.Hour))

	issuer.notBefore = time.Now().Add(-2 * DefaultValidity)
	issuer.notAfter = time.Now().Add(-time.Hour)
	require.NoError(t, issuer.selfSign())

	assert.ErrorIs(t, issuer.VerifyIdentity(subject), ErrExpired)
}

func TestStripPrivateKey(t *testing.T) {
	id, err := New("Strippable")
	require.NoError(t, err)
	id.StripPrivateKey()
	assert.False(t, id.HasPrivateKey())

	_, err = id.Sign([]byte("x"))
	assert.ErrorIs(t, err, ErrNoPrivateKey)
}
