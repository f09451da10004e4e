package formats

import (
	"crypto"
	"crypto/ecdh"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/crypto/keys"
)

type pemExporter struct{}

// NewPEMExporter creates a new PEM exporter.
func NewPEMExporter() sagecrypto.KeyExporter {
	return &pemExporter{}
}

func (e *pemExporter) Export(keyPair sagecrypto.KeyPair, format sagecrypto.KeyFormat) ([]byte, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}
	der, err := marshalPrivate(keyPair)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

func (e *pemExporter) ExportPublic(keyPair sagecrypto.KeyPair, format sagecrypto.KeyFormat) ([]byte, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}
	der, err := x509.MarshalPKIXPublicKey(keyPair.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("formats: marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

func marshalPrivate(keyPair sagecrypto.KeyPair) ([]byte, error) {
	switch keyPair.Type() {
	case sagecrypto.KeyTypeSigning:
		priv, ok := keyPair.PrivateKey().(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("formats: invalid RSA private key")
		}
		return x509.MarshalPKCS8PrivateKey(priv)
	case sagecrypto.KeyTypeECDH:
		priv, ok := keyPair.PrivateKey().(*ecdh.PrivateKey)
		if !ok {
			return nil, errors.New("formats: invalid ECDH private key")
		}
		return x509.MarshalPKCS8PrivateKey(priv)
	default:
		return nil, sagecrypto.ErrInvalidKeyType
	}
}

type pemImporter struct{}

// NewPEMImporter creates a new PEM importer.
func NewPEMImporter() sagecrypto.KeyImporter {
	return &pemImporter{}
}

func (i *pemImporter) Import(data []byte, format sagecrypto.KeyFormat) (sagecrypto.KeyPair, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("formats: no PEM block found")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("formats: parse PKCS8 private key: %w", err)
	}
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return keys.NewSigningKeyPair(k, "")
	case *ecdh.PrivateKey:
		return keys.NewECDHKeyPair(k, "")
	default:
		return nil, fmt.Errorf("formats: unsupported private key type %T", key)
	}
}

func (i *pemImporter) ImportPublic(data []byte, format sagecrypto.KeyFormat) (crypto.PublicKey, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("formats: no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("formats: parse PKIX public key: %w", err)
	}
	switch pub.(type) {
	case *rsa.PublicKey, *ecdh.PublicKey:
		return pub, nil
	default:
		return nil, fmt.Errorf("formats: unsupported public key type %T", pub)
	}
}
