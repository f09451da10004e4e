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
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/hpke"
	sagecrypto "github.com/sage-x-project/securemsg/crypto"
)

// ecdhKeyPair implements sagecrypto.KeyPair for an ephemeral P-256 ECDH
// share. It never signs; Sign/Verify return ErrUnsupportedOperation.
type ecdhKeyPair struct {
	privateKey *ecdh.PrivateKey
	publicKey  *ecdh.PublicKey
	id         string
}

// GenerateECDHKeyPair generates a fresh ephemeral P-256 key pair.
func GenerateECDHKeyPair() (sagecrypto.KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keys: generate ECDH key: %w", err)
	}
	return NewECDHKeyPair(priv, "")
}

// NewECDHKeyPair wraps an existing P-256 private key.
func NewECDHKeyPair(priv *ecdh.PrivateKey, id string) (sagecrypto.KeyPair, error) {
	pub := priv.PublicKey()
	if id == "" {
		id = ecdhID(pub)
	}
	return &ecdhKeyPair{privateKey: priv, publicKey: pub, id: id}, nil
}

func ecdhID(pub *ecdh.PublicKey) string {
	hash := sha256.Sum256(pub.Bytes())
	return hex.EncodeToString(hash[:16])
}

func (kp *ecdhKeyPair) PublicKey() crypto.PublicKey   { return kp.publicKey }
func (kp *ecdhKeyPair) PrivateKey() crypto.PrivateKey { return kp.privateKey }
func (kp *ecdhKeyPair) Type() sagecrypto.KeyType      { return sagecrypto.KeyTypeECDH }
func (kp *ecdhKeyPair) ID() string                    { return kp.id }

func (kp *ecdhKeyPair) Sign(message []byte) ([]byte, error) {
	return nil, sagecrypto.ErrUnsupportedOperation
}

func (kp *ecdhKeyPair) Verify(message, signature []byte) error {
	return sagecrypto.ErrUnsupportedOperation
}

// publicECDHKey wraps a peer's P-256 public key, e.g. received over the wire
// during a handshake.
type publicECDHKey struct {
	publicKey *ecdh.PublicKey
	id        string
}

// NewPublicECDHKey wraps pub for use as a DH peer.
func NewPublicECDHKey(pub *ecdh.PublicKey) sagecrypto.KeyPair {
	return &publicECDHKey{publicKey: pub, id: ecdhID(pub)}
}

func (pk *publicECDHKey) PublicKey() crypto.PublicKey   { return pk.publicKey }
func (pk *publicECDHKey) PrivateKey() crypto.PrivateKey { return nil }
func (pk *publicECDHKey) Type() sagecrypto.KeyType      { return sagecrypto.KeyTypeECDH }
func (pk *publicECDHKey) ID() string                    { return pk.id }
func (pk *publicECDHKey) Sign(message []byte) ([]byte, error) {
	return nil, sagecrypto.ErrUnsupportedOperation
}
func (pk *publicECDHKey) Verify(message, signature []byte) error {
	return sagecrypto.ErrUnsupportedOperation
}

// hpkeSuite is the HPKE ciphersuite used for envelope-mode file-key wrapping
// (spec.md §4.3): P-256 KEM, HKDF-SHA-256, AES-256-GCM AEAD. Using the
// handshake's own curve for the KEM means a recipient's ECDH identity key
// doubles as their envelope-recipient key, with no separate key type to
// manage.
func hpkeSuite() hpke.Suite {
	return hpke.NewSuite(hpke.KEM_P256_HKDF_SHA256, hpke.KDF_HKDF_SHA256, hpke.AEAD_AES256GCM)
}

// Envelope is a file key wrapped to a single recipient's ECDH public key.
type Envelope struct {
	// Enc is the HPKE encapsulated key (the ephemeral sender share).
	Enc []byte
	// Ciphertext is the wrapped file key plus its AEAD tag.
	Ciphertext []byte
}

// SealEnvelope wraps fileKey to recipient's public key using HPKE Base mode.
// info binds the envelope to its context (e.g. the file id) so a ciphertext
// cannot be replayed against a different file.
func SealEnvelope(recipient *ecdh.PublicKey, fileKey, info []byte) (*Envelope, error) {
	suite := hpkeSuite()
	kem := hpke.KEM_P256_HKDF_SHA256.Scheme()
	recvPub, err := kem.UnmarshalBinaryPublicKey(recipient.Bytes())
	if err != nil {
		return nil, fmt.Errorf("keys: unmarshal HPKE recipient key: %w", err)
	}
	sender, err := suite.NewSender(recvPub, info)
	if err != nil {
		return nil, fmt.Errorf("keys: HPKE new sender: %w", err)
	}
	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keys: HPKE sender setup: %w", err)
	}
	ct, err := sealer.Seal(fileKey, nil)
	if err != nil {
		return nil, fmt.Errorf("keys: HPKE seal: %w", err)
	}
	return &Envelope{Enc: enc, Ciphertext: ct}, nil
}

// OpenEnvelope unwraps an Envelope produced by SealEnvelope using the
// recipient's ECDH private key. info must match the value passed to
// SealEnvelope.
func OpenEnvelope(recipient *ecdh.PrivateKey, env *Envelope, info []byte) ([]byte, error) {
	if env == nil {
		return nil, errors.New("keys: nil envelope")
	}
	suite := hpkeSuite()
	kem := hpke.KEM_P256_HKDF_SHA256.Scheme()
	recvPriv, err := kem.UnmarshalBinaryPrivateKey(recipient.Bytes())
	if err != nil {
		return nil, fmt.Errorf("keys: unmarshal HPKE recipient private key: %w", err)
	}
	receiver, err := suite.NewReceiver(recvPriv, info)
	if err != nil {
		return nil, fmt.Errorf("keys: HPKE new receiver: %w", err)
	}
	opener, err := receiver.Setup(env.Enc)
	if err != nil {
		return nil, fmt.Errorf("keys: HPKE receiver setup: %w", err)
	}
	plaintext, err := opener.Open(env.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("keys: HPKE open: %w", err)
	}
	return plaintext, nil
}
