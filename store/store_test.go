package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahenroid/ptptl-0.2/identity"
)

func TestInsertFindRemoveIdentity(t *testing.T) {
	s := New()
	id, err := identity.New("Alice")
	require.NoError(t, err)

	entryID, err := s.InsertIdentity(id, "alice", true)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	found, _, ok := s.FindIdentity("Alice", false, nil, 0)
	require.True(t, ok)
	assert.Equal(t, id, found)

	assert.True(t, s.RemoveByID(entryID))
	assert.Equal(t, 0, s.Len())
}

func TestRemoveIdentityByModulusEquality(t *testing.T) {
	s := New()
	id, err := identity.New("Bob")
	require.NoError(t, err)
	_, err = s.InsertIdentity(id, "bob", true)
	require.NoError(t, err)

	reimported, err := identity.FromCertificateDER(id.CertificateDER())
	require.NoError(t, err)

	assert.True(t, s.RemoveIdentity(reimported))
	assert.Equal(t, 0, s.Len())
}

func TestInsertSessionKeyReservedName(t *testing.T) {
	s := New()
	s.InsertSessionKey([]byte("0123456789abcdef"))
	entry, _, ok := s.Find(ReservedKeyDataName, nil, 0)
	require.True(t, ok)
	assert.True(t, entry.IsSessionKey())
}

func TestInsertSecretRejectsReservedName(t *testing.T) {
	s := New()
	_, err := s.InsertSecret(ReservedKeyDataName, []byte("x"))
	assert.ErrorIs(t, err, ErrEmptyFriendlyName)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.p12")

	s := New()
	s.SetPasswords("archive-pass", true, "mac-pass", true)

	id, err := identity.New("Carol")
	require.NoError(t, err)
	_, err = s.InsertIdentity(id, "carol", true)
	require.NoError(t, err)
	s.InsertSessionKey([]byte("sessionkeybytes!"))
	_, err = s.InsertSecret("app-secret", []byte("top secret value"))
	require.NoError(t, err)

	require.NoError(t, s.Save(path))

	loaded := New()
	loaded.SetPasswords("archive-pass", true, "mac-pass", true)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 3, loaded.Len())

	found, _, ok := loaded.FindIdentity("Carol", true, nil, 0)
	require.True(t, ok)
	assert.Equal(t, id.CertificateDER(), found.CertificateDER())
}

func TestLoadFailsOnWrongMACPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.p12")

	s := New()
	s.SetPasswords("archive-pass", true, "mac-pass", true)
	_, err := s.InsertSecret("app-secret", []byte("value"))
	require.NoError(t, err)
	require.NoError(t, s.Save(path))

	wrong := New()
	wrong.SetPasswords("archive-pass", true, "wrong-mac-pass", true)
	err = wrong.Load(path)
	assert.ErrorIs(t, err, ErrMACMismatch)
}

func TestEnvelopeEncryptDecryptRoundTrip(t *testing.T) {
	recipient, err := identity.New("Recipient")
	require.NoError(t, err)
	signer, err := identity.New("Signer")
	require.NoError(t, err)

	msg := []byte("envelope payload")
	sealed, err := EnvelopeEncrypt(msg, recipient, signer)
	require.NoError(t, err)

	opened, err := EnvelopeDecrypt(sealed, recipient, signer)
	require.NoError(t, err)
	assert.Equal(t, msg, opened)
}

func TestPEMExportImportRoundTrip(t *testing.T) {
	id, err := identity.New("PEM Identity")
	require.NoError(t, err)

	data, err := ExportIdentityPEM(id, true)
	require.NoError(t, err)

	imported, err := ImportIdentityPEM(data)
	require.NoError(t, err)
	assert.True(t, imported.HasPrivateKey())
	assert.Equal(t, id.CertificateDER(), imported.CertificateDER())
}
