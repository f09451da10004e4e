// Package cryptoinit wires concrete implementations from crypto's
// subpackages back into crypto's function-pointer registry, avoiding an
// import cycle between crypto and crypto/{keys,storage,formats}. Any binary
// that uses crypto.Generate*/crypto.New* must blank-import this package.
package cryptoinit

import (
	"github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/crypto/formats"
	"github.com/sage-x-project/securemsg/crypto/keys"
	"github.com/sage-x-project/securemsg/crypto/storage"
)

func init() {
	crypto.SetKeyGenerators(
		func() (crypto.KeyPair, error) { return keys.GenerateSigningKeyPair() },
		func() (crypto.KeyPair, error) { return keys.GenerateECDHKeyPair() },
	)

	crypto.SetStorageConstructors(
		func() crypto.KeyStorage { return storage.NewMemoryKeyStorage() },
		func(dir string, passphrase []byte) (crypto.KeyStorage, error) {
			return storage.NewFileKeyStorage(dir, passphrase)
		},
	)

	crypto.SetFormatConstructors(
		func() crypto.KeyExporter { return formats.NewJWKExporter() },
		func() crypto.KeyExporter { return formats.NewPEMExporter() },
		func() crypto.KeyImporter { return formats.NewJWKImporter() },
		func() crypto.KeyImporter { return formats.NewPEMImporter() },
	)
}
