package main

import (
	"crypto/ecdh"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/crypto/formats"
	"github.com/sage-x-project/securemsg/directory"
)

// seedEntry is one line of the directory seed file: a user's published
// long-term keys, PEM-encoded (crypto/formats' PEM public-key shape).
// Publishing identities into the directory is a deployment concern
// spec.md §1 explicitly keeps out of this module's protocol core; this
// loader is the "how" for the single-process/dev deployment the relay
// binary targets, not a registration API.
type seedEntry struct {
	UserID        string `json:"userId"`
	SigningKeyPEM string `json:"signingKeyPem"`
	ECDHKeyPEM    string `json:"ecdhKeyPem"`
}

func loadSeedDirectory(path string) (*directory.MemoryDirectory, int, error) {
	dir := directory.NewMemoryDirectory()
	if path == "" {
		return dir, 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read directory seed: %w", err)
	}

	var entries []seedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, 0, fmt.Errorf("parse directory seed: %w", err)
	}

	importer := formats.NewPEMImporter()
	for _, e := range entries {
		if e.UserID == "" {
			return nil, 0, fmt.Errorf("directory seed: entry missing userId")
		}
		signingPub, err := importer.ImportPublic([]byte(e.SigningKeyPEM), sagecrypto.KeyFormatPEM)
		if err != nil {
			return nil, 0, fmt.Errorf("directory seed %s: signing key: %w", e.UserID, err)
		}
		rsaPub, ok := signingPub.(*rsa.PublicKey)
		if !ok {
			return nil, 0, fmt.Errorf("directory seed %s: signing key is not RSA", e.UserID)
		}

		ecdhPub, err := importer.ImportPublic([]byte(e.ECDHKeyPEM), sagecrypto.KeyFormatPEM)
		if err != nil {
			return nil, 0, fmt.Errorf("directory seed %s: ecdh key: %w", e.UserID, err)
		}
		ecPub, ok := ecdhPub.(*ecdh.PublicKey)
		if !ok {
			return nil, 0, fmt.Errorf("directory seed %s: ecdh key is not P-256", e.UserID)
		}

		dir.Register(&directory.Identity{
			UserID:     e.UserID,
			SigningKey: rsaPub,
			ECDHKey:    ecPub,
		})
	}
	return dir, len(entries), nil
}
