package main

import (
	"fmt"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/crypto/storage"
)

// loadSigningKey opens the keystore configured by --keystore-dir/--passphrase
// and returns the signing key pair this client authenticates handshake
// messages with, grounded on securemsg-keytool's own file-storage
// conventions so keys generated by one tool are usable by the other.
func loadSigningKey() (sagecrypto.KeyPair, error) {
	if flagPassphrase == "" {
		return nil, fmt.Errorf("--passphrase is required to open the keystore")
	}
	ks, err := storage.NewFileKeyStorage(flagKeystoreDir, []byte(flagPassphrase))
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}
	kp, err := ks.Load(keyID())
	if err != nil {
		return nil, fmt.Errorf("load signing key %q: %w", keyID(), err)
	}
	if kp.Type() != sagecrypto.KeyTypeSigning {
		return nil, fmt.Errorf("key %q is a %s key, not a signing key", keyID(), kp.Type())
	}
	return kp, nil
}
