package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/crypto/formats"
	"github.com/sage-x-project/securemsg/crypto/keys"
	"github.com/sage-x-project/securemsg/crypto/storage"
	"github.com/spf13/cobra"
)

var (
	keyType      string
	outputFormat string
	outputFile   string
	storageDir   string
	keyID        string
	passphrase   string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new key pair",
	Long: `Generate a new cryptographic key pair.

Supported key types:
  - signing: RSA-PSS 2048-bit identity key used to sign handshake messages
  - ecdh: ECDH-P256 key used as a Diffie-Hellman share or file-key recipient

Supported output formats:
  - jwk: JSON Web Key format
  - pem: PEM (Privacy Enhanced Mail) format
  - storage: Store directly in key storage`,
	Example: `  # Generate a signing identity and output as JWK
  securemsg-keytool generate --type signing --format jwk

  # Generate an ECDH key and save to file
  securemsg-keytool generate --type ecdh --format pem --output mykey.pem

  # Generate a key and store it in an encrypted local store
  securemsg-keytool generate --type signing --format storage --storage-dir ./keys --key-id alice --passphrase hunter2`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&keyType, "type", "t", "signing", "Key type (signing, ecdh)")
	generateCmd.Flags().StringVarP(&outputFormat, "format", "f", "jwk", "Output format (jwk, pem, storage)")
	generateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	generateCmd.Flags().StringVarP(&storageDir, "storage-dir", "s", "", "Storage directory (required for storage format)")
	generateCmd.Flags().StringVarP(&keyID, "key-id", "k", "", "Key ID (required for storage format)")
	generateCmd.Flags().StringVar(&passphrase, "passphrase", "", "Passphrase protecting storage format")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	var keyPair sagecrypto.KeyPair
	var err error

	switch keyType {
	case "signing":
		keyPair, err = keys.GenerateSigningKeyPair()
	case "ecdh":
		keyPair, err = keys.GenerateECDHKeyPair()
	default:
		return fmt.Errorf("unsupported key type: %s", keyType)
	}
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}

	switch outputFormat {
	case "jwk":
		return outputJWK(keyPair)
	case "pem":
		return outputPEM(keyPair)
	case "storage":
		return storeKey(keyPair)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func outputJWK(keyPair sagecrypto.KeyPair) error {
	exporter := formats.NewJWKExporter()

	privateJWK, err := exporter.Export(keyPair, sagecrypto.KeyFormatJWK)
	if err != nil {
		return fmt.Errorf("failed to export private key: %w", err)
	}
	publicJWK, err := exporter.ExportPublic(keyPair, sagecrypto.KeyFormatJWK)
	if err != nil {
		return fmt.Errorf("failed to export public key: %w", err)
	}

	output := map[string]json.RawMessage{
		"private_key": privateJWK,
		"public_key":  publicJWK,
		"key_id":      json.RawMessage(fmt.Sprintf(`"%s"`, keyPair.ID())),
		"key_type":    json.RawMessage(fmt.Sprintf(`"%s"`, keyPair.Type())),
	}

	jsonOutput, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return writeOutput(jsonOutput)
}

func outputPEM(keyPair sagecrypto.KeyPair) error {
	exporter := formats.NewPEMExporter()

	privatePEM, err := exporter.Export(keyPair, sagecrypto.KeyFormatPEM)
	if err != nil {
		return fmt.Errorf("failed to export private key: %w", err)
	}
	publicPEM, err := exporter.ExportPublic(keyPair, sagecrypto.KeyFormatPEM)
	if err != nil {
		return fmt.Errorf("failed to export public key: %w", err)
	}

	output := append(privatePEM, publicPEM...)
	metadata := fmt.Sprintf("# Key ID: %s\n# Key Type: %s\n", keyPair.ID(), keyPair.Type())
	output = append([]byte(metadata), output...)

	return writeOutput(output)
}

func storeKey(keyPair sagecrypto.KeyPair) error {
	if storageDir == "" {
		return fmt.Errorf("storage directory is required for storage format")
	}
	if keyID == "" {
		return fmt.Errorf("key ID is required for storage format")
	}
	if passphrase == "" {
		return fmt.Errorf("passphrase is required for storage format")
	}

	keyStorage, err := storage.NewFileKeyStorage(storageDir, []byte(passphrase))
	if err != nil {
		return fmt.Errorf("failed to create key storage: %w", err)
	}
	if err := keyStorage.Store(keyID, keyPair); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}

	fmt.Printf("Key successfully stored:\n")
	fmt.Printf("  Key ID: %s\n", keyID)
	fmt.Printf("  Key Type: %s\n", keyPair.Type())
	fmt.Printf("  Key Fingerprint: %s\n", keyPair.ID())
	fmt.Printf("  Storage Location: %s\n", filepath.Join(storageDir, keyID+".key.json"))

	return nil
}

func writeOutput(data []byte) error {
	if outputFile == "" {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(outputFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Printf("Key saved to: %s\n", outputFile)
	return nil
}
