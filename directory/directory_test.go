package directory

import (
	"context"
	"crypto/ecdh"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/securemsg/crypto/keys"
)

func TestMemoryDirectoryLookup(t *testing.T) {
	d := NewMemoryDirectory()
	ctx := context.Background()

	signKP, err := keys.GenerateSigningKeyPair()
	require.NoError(t, err)
	ecdhKP, err := keys.GenerateECDHKeyPair()
	require.NoError(t, err)

	_, err = d.Lookup(ctx, "alice")
	assert.ErrorIs(t, err, ErrUserNotFound)

	d.Register(&Identity{
		UserID:      "alice",
		SigningKey:  signKP.PublicKey().(*rsa.PublicKey),
		ECDHKey:     ecdhKP.PublicKey().(*ecdh.PublicKey),
		Fingerprint: signKP.ID(),
	})

	got, err := d.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, signKP.ID(), got.Fingerprint)
}
