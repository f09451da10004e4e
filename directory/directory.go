// Package directory resolves user identities to their long-term public
// keys, generalizing the teacher's DID resolver from on-chain agent
// metadata lookup to a plain signing/ECDH key directory.
package directory

import (
	"context"
	"crypto/ecdh"
	"crypto/rsa"
	"errors"
	"sync"
)

// ErrUserNotFound is returned when no identity is registered for a user id.
var ErrUserNotFound = errors.New("directory: user not found")

// Identity is the public material a peer needs to verify and key-agree
// with a user: the RSA-PSS signing key and the P-256 ECDH key.
type Identity struct {
	UserID      string
	SigningKey  *rsa.PublicKey
	ECDHKey     *ecdh.PublicKey
	Fingerprint string
}

// DirectoryLookup is the collaborator interface named in SPEC_FULL.md §4.5:
// a read path from user id to published identity. Registration is a
// deployment concern outside the handshake/channel/relay core, so only
// the lookup side is part of the interface that those packages depend on.
type DirectoryLookup interface {
	Lookup(ctx context.Context, userID string) (*Identity, error)
}

// MemoryDirectory is an in-memory DirectoryLookup, the test and
// single-process default.
type MemoryDirectory struct {
	mu         sync.RWMutex
	identities map[string]*Identity
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{identities: make(map[string]*Identity)}
}

// Register publishes or replaces id's identity.
func (d *MemoryDirectory) Register(id *Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.identities[id.UserID] = id
}

// Lookup implements DirectoryLookup.
func (d *MemoryDirectory) Lookup(ctx context.Context, userID string) (*Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.identities[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return id, nil
}
