// Copyright (C) 2025 sage-x-project
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

package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
)

// signingKeyPair implements sagecrypto.KeyPair for a long-term RSA-PSS
// identity key. It is the only key type that ever signs or verifies.
type signingKeyPair struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	id         string
}

// GenerateSigningKeyPair generates a new 2048-bit RSA key pair for RSA-PSS
// handshake signatures.
func GenerateSigningKeyPair() (sagecrypto.KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("keys: generate RSA key: %w", err)
	}
	return NewSigningKeyPair(privateKey, "")
}

// NewSigningKeyPair wraps an existing RSA private key, deriving its ID from
// the SHA-256 of the key's SPKI (SubjectPublicKeyInfo) DER encoding unless id
// is explicitly provided (e.g. when reconstructing from storage).
func NewSigningKeyPair(privateKey *rsa.PrivateKey, id string) (sagecrypto.KeyPair, error) {
	publicKey := &privateKey.PublicKey
	if id == "" {
		fp, err := fingerprint(publicKey)
		if err != nil {
			return nil, err
		}
		id = fp
	}
	return &signingKeyPair{privateKey: privateKey, publicKey: publicKey, id: id}, nil
}

func fingerprint(pub *rsa.PublicKey) (string, error) {
	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("keys: marshal SPKI: %w", err)
	}
	hash := sha256.Sum256(spki)
	return hex.EncodeToString(hash[:16]), nil
}

func (kp *signingKeyPair) PublicKey() crypto.PublicKey  { return kp.publicKey }
func (kp *signingKeyPair) PrivateKey() crypto.PrivateKey { return kp.privateKey }
func (kp *signingKeyPair) Type() sagecrypto.KeyType      { return sagecrypto.KeyTypeSigning }
func (kp *signingKeyPair) ID() string                    { return kp.id }

// Sign produces an RSA-PSS signature (SHA-256, fixed 32-byte salt) over the
// SHA-256 digest of message. message is expected to already be a canonical
// JSON encoding of the payload being authenticated.
func (kp *signingKeyPair) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	opts := &rsa.PSSOptions{SaltLength: sagecrypto.PSSSaltLength, Hash: crypto.SHA256}
	sig, err := rsa.SignPSS(rand.Reader, kp.privateKey, crypto.SHA256, digest[:], opts)
	if err != nil {
		return nil, fmt.Errorf("keys: RSA-PSS sign: %w", err)
	}
	return sig, nil
}

// Verify checks an RSA-PSS signature produced by Sign.
func (kp *signingKeyPair) Verify(message, signature []byte) error {
	digest := sha256.Sum256(message)
	opts := &rsa.PSSOptions{SaltLength: sagecrypto.PSSSaltLength, Hash: crypto.SHA256}
	if err := rsa.VerifyPSS(kp.publicKey, crypto.SHA256, digest[:], signature, opts); err != nil {
		return sagecrypto.ErrInvalidSignature
	}
	return nil
}

// publicSigningKey wraps an RSA public key for verification-only use, e.g.
// a peer's identity key fetched from the directory.
type publicSigningKey struct {
	publicKey *rsa.PublicKey
	id        string
}

// NewPublicSigningKey wraps pub for signature verification only.
func NewPublicSigningKey(pub *rsa.PublicKey) (sagecrypto.KeyPair, error) {
	fp, err := fingerprint(pub)
	if err != nil {
		return nil, err
	}
	return &publicSigningKey{publicKey: pub, id: fp}, nil
}

func (pk *publicSigningKey) PublicKey() crypto.PublicKey   { return pk.publicKey }
func (pk *publicSigningKey) PrivateKey() crypto.PrivateKey { return nil }
func (pk *publicSigningKey) Type() sagecrypto.KeyType      { return sagecrypto.KeyTypeSigning }
func (pk *publicSigningKey) ID() string                    { return pk.id }

func (pk *publicSigningKey) Sign(message []byte) ([]byte, error) {
	return nil, errors.New("keys: cannot sign with a public key only")
}

func (pk *publicSigningKey) Verify(message, signature []byte) error {
	digest := sha256.Sum256(message)
	opts := &rsa.PSSOptions{SaltLength: sagecrypto.PSSSaltLength, Hash: crypto.SHA256}
	if err := rsa.VerifyPSS(pk.publicKey, crypto.SHA256, digest[:], signature, opts); err != nil {
		return sagecrypto.ErrInvalidSignature
	}
	return nil
}
