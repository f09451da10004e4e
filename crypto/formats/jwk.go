package formats

import (
	"crypto"
	"crypto/ecdh"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/crypto/keys"
)

// JWK represents a JSON Web Key, trimmed to the two key shapes this module
// produces: RSA (signing identity keys) and EC P-256 (ECDH shares).
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	D   string `json:"d,omitempty"`
	Kid string `json:"kid,omitempty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
}

type jwkExporter struct{}

// NewJWKExporter creates a new JWK exporter.
func NewJWKExporter() sagecrypto.KeyExporter {
	return &jwkExporter{}
}

func (e *jwkExporter) Export(keyPair sagecrypto.KeyPair, format sagecrypto.KeyFormat) ([]byte, error) {
	if format != sagecrypto.KeyFormatJWK {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	jwk := &JWK{Kid: keyPair.ID()}

	switch keyPair.Type() {
	case sagecrypto.KeyTypeSigning:
		priv, ok := keyPair.PrivateKey().(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("formats: invalid RSA private key")
		}
		jwk.Use = "sig"
		jwk.Kty = "RSA"
		jwk.Alg = "PS256"
		jwk.N = base64.RawURLEncoding.EncodeToString(priv.N.Bytes())
		jwk.E = base64.RawURLEncoding.EncodeToString(big.NewInt(int64(priv.E)).Bytes())
		jwk.D = base64.RawURLEncoding.EncodeToString(priv.D.Bytes())

	case sagecrypto.KeyTypeECDH:
		priv, ok := keyPair.PrivateKey().(*ecdh.PrivateKey)
		if !ok {
			return nil, errors.New("formats: invalid ECDH private key")
		}
		jwk.Use = "enc"
		jwk.Kty = "EC"
		jwk.Crv = "P-256"
		jwk.Alg = "ECDH-ES"
		jwk.X = base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes())
		jwk.D = base64.RawURLEncoding.EncodeToString(priv.Bytes())

	default:
		return nil, sagecrypto.ErrInvalidKeyType
	}

	return json.Marshal(jwk)
}

func (e *jwkExporter) ExportPublic(keyPair sagecrypto.KeyPair, format sagecrypto.KeyFormat) ([]byte, error) {
	if format != sagecrypto.KeyFormatJWK {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	jwk := &JWK{Kid: keyPair.ID()}

	switch keyPair.Type() {
	case sagecrypto.KeyTypeSigning:
		pub, ok := keyPair.PublicKey().(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("formats: invalid RSA public key")
		}
		jwk.Use = "sig"
		jwk.Kty = "RSA"
		jwk.Alg = "PS256"
		jwk.N = base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
		jwk.E = base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())

	case sagecrypto.KeyTypeECDH:
		pub, ok := keyPair.PublicKey().(*ecdh.PublicKey)
		if !ok {
			return nil, errors.New("formats: invalid ECDH public key")
		}
		jwk.Use = "enc"
		jwk.Kty = "EC"
		jwk.Crv = "P-256"
		jwk.Alg = "ECDH-ES"
		jwk.X = base64.RawURLEncoding.EncodeToString(pub.Bytes())

	default:
		return nil, sagecrypto.ErrInvalidKeyType
	}

	return json.Marshal(jwk)
}

type jwkImporter struct{}

// NewJWKImporter creates a new JWK importer.
func NewJWKImporter() sagecrypto.KeyImporter {
	return &jwkImporter{}
}

func (i *jwkImporter) Import(data []byte, format sagecrypto.KeyFormat) (sagecrypto.KeyPair, error) {
	if format != sagecrypto.KeyFormatJWK {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}
	var jwk JWK
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("formats: unmarshal JWK: %w", err)
	}
	switch jwk.Kty {
	case "RSA":
		return i.importRSA(&jwk)
	case "EC":
		if jwk.Crv != "P-256" {
			return nil, fmt.Errorf("formats: unsupported EC curve: %s", jwk.Crv)
		}
		return i.importECDH(&jwk)
	default:
		return nil, fmt.Errorf("formats: unsupported key type: %s", jwk.Kty)
	}
}

func (i *jwkImporter) ImportPublic(data []byte, format sagecrypto.KeyFormat) (crypto.PublicKey, error) {
	if format != sagecrypto.KeyFormatJWK {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}
	var jwk JWK
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("formats: unmarshal JWK: %w", err)
	}
	switch jwk.Kty {
	case "RSA":
		nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
		if err != nil {
			return nil, err
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
		if err != nil {
			return nil, err
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(new(big.Int).SetBytes(eBytes).Int64())}, nil
	case "EC":
		if jwk.Crv != "P-256" {
			return nil, fmt.Errorf("formats: unsupported EC curve: %s", jwk.Crv)
		}
		xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
		if err != nil {
			return nil, err
		}
		return ecdh.P256().NewPublicKey(xBytes)
	default:
		return nil, fmt.Errorf("formats: unsupported key type: %s", jwk.Kty)
	}
}

func (i *jwkImporter) importRSA(jwk *JWK) (sagecrypto.KeyPair, error) {
	if jwk.D == "" {
		return nil, errors.New("formats: missing private key component")
	}
	dBytes, err := base64.RawURLEncoding.DecodeString(jwk.D)
	if err != nil {
		return nil, err
	}
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, err
	}
	priv := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(new(big.Int).SetBytes(eBytes).Int64())},
		D:         new(big.Int).SetBytes(dBytes),
	}
	return keys.NewSigningKeyPair(priv, jwk.Kid)
}

func (i *jwkImporter) importECDH(jwk *JWK) (sagecrypto.KeyPair, error) {
	if jwk.D == "" {
		return nil, errors.New("formats: missing private key component")
	}
	dBytes, err := base64.RawURLEncoding.DecodeString(jwk.D)
	if err != nil {
		return nil, fmt.Errorf("formats: decode ECDH private key: %w", err)
	}
	priv, err := ecdh.P256().NewPrivateKey(dBytes)
	if err != nil {
		return nil, fmt.Errorf("formats: parse ECDH private key: %w", err)
	}
	return keys.NewECDHKeyPair(priv, jwk.Kid)
}
