package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/crypto/keys"
)

func TestFileKeyStorage(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileKeyStorage(dir, []byte("correct horse battery staple"))
	require.NoError(t, err)

	kp, err := keys.GenerateSigningKeyPair()
	require.NoError(t, err)

	require.NoError(t, store.Store("identity", kp))
	assert.True(t, store.Exists("identity"))

	loaded, err := store.Load("identity")
	require.NoError(t, err)
	assert.Equal(t, kp.ID(), loaded.ID())

	msg := []byte("ping")
	sig, err := loaded.Sign(msg)
	require.NoError(t, err)
	require.NoError(t, kp.Verify(msg, sig))

	ids, err := store.List()
	require.NoError(t, err)
	assert.Contains(t, ids, "identity")

	require.NoError(t, store.Delete("identity"))
	_, err = store.Load("identity")
	assert.ErrorIs(t, err, crypto.ErrKeyNotFound)
}

func TestFileKeyStorageWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileKeyStorage(dir, []byte("passphrase-one"))
	require.NoError(t, err)

	kp, err := keys.GenerateSigningKeyPair()
	require.NoError(t, err)
	require.NoError(t, store.Store("identity", kp))

	other, err := NewFileKeyStorage(dir, []byte("passphrase-two"))
	require.NoError(t, err)
	_, err = other.Load("identity")
	assert.Error(t, err)
}
