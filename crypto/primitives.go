// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// PSSSaltLength is the fixed RSA-PSS salt length mandated for handshake
// signatures. A fixed length (rather than rsa.PSSSaltLengthAuto) keeps
// signatures reproducible in size and avoids ambiguity between signer and
// verifier about how much of the signature is salt.
const PSSSaltLength = 32

// NonceSize is the size, in bytes, of an AES-256-GCM nonce.
const NonceSize = 12

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("crypto: read random bytes: %w", err)
	}
	return b, nil
}

// GenerateECDHKeyPair generates an ephemeral P-256 key pair for use in a
// single handshake.
func GenerateECDHKeyPair() (*ecdh.PrivateKey, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate ECDH key: %w", err)
	}
	return priv, nil
}

// ParseECDHPublicKey decodes an uncompressed P-256 point into a public key.
func ParseECDHPublicKey(raw []byte) (*ecdh.PublicKey, error) {
	pub, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse ECDH public key: %w", err)
	}
	return pub, nil
}

// DeriveSharedSecret performs the ECDH(priv, pub) scalar multiplication.
func DeriveSharedSecret(priv *ecdh.PrivateKey, pub *ecdh.PublicKey) ([]byte, error) {
	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("crypto: ECDH: %w", err)
	}
	return secret, nil
}

// HKDFExpand derives keyLen bytes from sharedSecret using HKDF-SHA-256 with
// the given salt and info, per spec: salt = initiator_nonce || responder_nonce
// in that exact order, applied identically by both parties.
func HKDFExpand(sharedSecret, salt, info []byte, keyLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, sharedSecret, salt, info)
	out := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("crypto: HKDF expand: %w", err)
	}
	return out, nil
}

// SessionKeys holds the single 32-byte AEAD session key K that both parties
// derive identically from the completed handshake (spec.md §4.2). The two
// directions of the channel share this one key, differentiated only by
// each direction's own sequence counter (§4.3) — there is no separate
// per-direction or confirmation key.
type SessionKeys struct {
	Key []byte
}

// Zero overwrites the key material in place. Call once a session is closed.
func (k *SessionKeys) Zero() {
	if k == nil {
		return
	}
	zero(k.Key)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// DeriveSessionKeys computes K = hkdf(ikm=sharedSecret, salt=salt,
// info="secure-messaging-session-key", 32), the single session key
// spec.md §4.2 specifies. The confirmation tags are keyed by the raw
// shared secret directly, not by anything derived here.
func DeriveSessionKeys(sharedSecret, salt []byte) (*SessionKeys, error) {
	k, err := HKDFExpand(sharedSecret, salt, []byte("secure-messaging-session-key"), 32)
	if err != nil {
		return nil, err
	}
	return &SessionKeys{Key: k}, nil
}

// SealAESGCM encrypts plaintext with AES-256-GCM under key with the 12-byte
// nonce. additionalData, when non-nil, is authenticated but not encrypted.
// Returns ciphertext||tag.
func SealAESGCM(key, nonce, plaintext, additionalData []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("crypto: new GCM: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: nonce must be %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}
	return gcm.Seal(nil, nonce, plaintext, additionalData), nil
}

// OpenAESGCM decrypts and authenticates ciphertext produced by SealAESGCM.
func OpenAESGCM(key, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("crypto: new GCM: %w", err)
	}
	if len(ciphertext) < gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// HMACSHA256 computes an HMAC-SHA-256 tag over data under key.
func HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// VerifyHMACSHA256 reports whether tag is the correct HMAC-SHA-256 of data
// under key, using a constant-time comparison.
func VerifyHMACSHA256(key, data, tag []byte) bool {
	expected := HMACSHA256(key, data)
	return hmac.Equal(expected, tag)
}
