package crypto

// This file provides wrapper functions implemented by a separate
// initialization package (internal/cryptoinit) to avoid a circular import
// between crypto and its subpackages (crypto/keys, crypto/storage,
// crypto/formats).

var (
	// generateSigningKeyPair generates a new RSA-PSS identity signing pair.
	generateSigningKeyPair func() (KeyPair, error)

	// generateECDHKeyPair generates a new ephemeral P-256 ECDH pair.
	generateECDHKeyPair func() (KeyPair, error)

	// newMemoryKeyStorage creates an in-memory KeyStorage.
	newMemoryKeyStorage func() KeyStorage

	// newFileKeyStorage creates a passphrase-encrypted file-backed KeyStorage.
	newFileKeyStorage func(dir string, passphrase []byte) (KeyStorage, error)

	newJWKExporter func() KeyExporter
	newPEMExporter func() KeyExporter
	newJWKImporter func() KeyImporter
	newPEMImporter func() KeyImporter
)

// SetKeyGenerators registers the key generation functions.
func SetKeyGenerators(signingGen, ecdhGen func() (KeyPair, error)) {
	generateSigningKeyPair = signingGen
	generateECDHKeyPair = ecdhGen
}

// SetStorageConstructors registers the storage constructor functions.
func SetStorageConstructors(memoryStorage func() KeyStorage, fileStorage func(dir string, passphrase []byte) (KeyStorage, error)) {
	newMemoryKeyStorage = memoryStorage
	newFileKeyStorage = fileStorage
}

// SetFormatConstructors registers the format constructor functions.
func SetFormatConstructors(jwkExp, pemExp func() KeyExporter, jwkImp, pemImp func() KeyImporter) {
	newJWKExporter = jwkExp
	newPEMExporter = pemExp
	newJWKImporter = jwkImp
	newPEMImporter = pemImp
}

// GenerateSigningKeyPair generates a new RSA-PSS identity signing pair.
func GenerateSigningKeyPair() (KeyPair, error) {
	if generateSigningKeyPair == nil {
		panic("crypto: signing key generator not initialized (import internal/cryptoinit)")
	}
	return generateSigningKeyPair()
}

// GenerateECDHKeyPair2 generates a new ephemeral P-256 ECDH pair as a KeyPair.
// (Named distinctly from the lower-level GenerateECDHKeyPair in primitives.go,
// which returns a raw *ecdh.PrivateKey.)
func GenerateECDHKeyPair2() (KeyPair, error) {
	if generateECDHKeyPair == nil {
		panic("crypto: ECDH key generator not initialized (import internal/cryptoinit)")
	}
	return generateECDHKeyPair()
}

// NewMemoryKeyStorage creates a new in-memory key storage.
func NewMemoryKeyStorage() KeyStorage {
	if newMemoryKeyStorage == nil {
		panic("crypto: memory key storage constructor not initialized")
	}
	return newMemoryKeyStorage()
}

// NewFileKeyStorage creates a passphrase-protected file key storage rooted at dir.
func NewFileKeyStorage(dir string, passphrase []byte) (KeyStorage, error) {
	if newFileKeyStorage == nil {
		panic("crypto: file key storage constructor not initialized")
	}
	return newFileKeyStorage(dir, passphrase)
}

// NewJWKExporter creates a new JWK exporter.
func NewJWKExporter() KeyExporter {
	if newJWKExporter == nil {
		panic("crypto: JWK exporter constructor not initialized")
	}
	return newJWKExporter()
}

// NewPEMExporter creates a new PEM exporter.
func NewPEMExporter() KeyExporter {
	if newPEMExporter == nil {
		panic("crypto: PEM exporter constructor not initialized")
	}
	return newPEMExporter()
}

// NewJWKImporter creates a new JWK importer.
func NewJWKImporter() KeyImporter {
	if newJWKImporter == nil {
		panic("crypto: JWK importer constructor not initialized")
	}
	return newJWKImporter()
}

// NewPEMImporter creates a new PEM importer.
func NewPEMImporter() KeyImporter {
	if newPEMImporter == nil {
		panic("crypto: PEM importer constructor not initialized")
	}
	return newPEMImporter()
}
