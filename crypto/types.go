package crypto

import (
	"crypto"
	"errors"
	"time"
)

// KeyType represents the type of cryptographic key held by a KeyPair.
type KeyType string

const (
	// KeyTypeSigning is a long-term RSA-PSS identity key used to sign and
	// verify handshake messages.
	KeyTypeSigning KeyType = "RSA-PSS"
	// KeyTypeECDH is a short-lived P-256 key used as a Diffie-Hellman
	// share during the handshake, or as a recipient key for envelope
	// encryption of a per-file key.
	KeyTypeECDH KeyType = "ECDH-P256"
)

// KeyFormat represents the format for key export/import.
type KeyFormat string

const (
	KeyFormatJWK KeyFormat = "JWK"
	KeyFormatPEM KeyFormat = "PEM"
)

// KeyPair represents a cryptographic key pair.
type KeyPair interface {
	PublicKey() crypto.PublicKey
	PrivateKey() crypto.PrivateKey
	Type() KeyType
	// Sign signs message. Only meaningful for KeyTypeSigning pairs;
	// KeyTypeECDH pairs return ErrUnsupportedOperation.
	Sign(message []byte) ([]byte, error)
	// Verify checks signature over message. Only meaningful for
	// KeyTypeSigning pairs.
	Verify(message, signature []byte) error
	// ID returns a stable fingerprint for this key pair, derived from the
	// SPKI encoding of the public key.
	ID() string
}

// KeyExporter handles key export operations.
type KeyExporter interface {
	Export(keyPair KeyPair, format KeyFormat) ([]byte, error)
	ExportPublic(keyPair KeyPair, format KeyFormat) ([]byte, error)
}

// KeyImporter handles key import operations.
type KeyImporter interface {
	Import(data []byte, format KeyFormat) (KeyPair, error)
	ImportPublic(data []byte, format KeyFormat) (crypto.PublicKey, error)
}

// KeyStorage provides storage for local key pairs (the private-key halves
// kept by an identity). Implementations decide at-rest protection.
type KeyStorage interface {
	Store(id string, keyPair KeyPair) error
	Load(id string) (KeyPair, error)
	Delete(id string) error
	List() ([]string, error)
	Exists(id string) bool
}

// KeyRotationConfig configures periodic rotation of a signing key.
type KeyRotationConfig struct {
	RotationInterval time.Duration
	MaxKeyAge        time.Duration
	KeepOldKeys      bool
}

// KeyRotator handles key rotation operations for signing keys.
type KeyRotator interface {
	Rotate(id string) (KeyPair, error)
	SetRotationConfig(config KeyRotationConfig)
	GetRotationHistory(id string) ([]KeyRotationEvent, error)
}

// KeyRotationEvent records a single rotation.
type KeyRotationEvent struct {
	Timestamp time.Time
	OldKeyID  string
	NewKeyID  string
	Reason    string
}

// KeyManager is the main entry point for key lifecycle management used by
// the keytool CLI and by identities bootstrapping themselves.
type KeyManager interface {
	GenerateKeyPair(keyType KeyType) (KeyPair, error)
	GetExporter() KeyExporter
	GetImporter() KeyImporter
	GetStorage() KeyStorage
	GetRotator() KeyRotator
}

// Common errors.
var (
	ErrKeyNotFound           = errors.New("crypto: key not found")
	ErrInvalidKeyType        = errors.New("crypto: invalid key type")
	ErrInvalidKeyFormat      = errors.New("crypto: invalid key format")
	ErrKeyExists             = errors.New("crypto: key already exists")
	ErrInvalidSignature      = errors.New("crypto: invalid signature")
	ErrUnsupportedOperation  = errors.New("crypto: operation not supported for this key type")
	ErrCiphertextTooShort    = errors.New("crypto: ciphertext too short")
	ErrDecryptionFailed      = errors.New("crypto: decryption failed")
)
