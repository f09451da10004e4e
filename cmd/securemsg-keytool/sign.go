package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/crypto/formats"
	"github.com/sage-x-project/securemsg/crypto/storage"
	"github.com/spf13/cobra"
)

var (
	keyFile      string
	keyFormat    string
	messageFile  string
	message      string
	signatureOut string
	base64Output bool
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a message with a signing key",
	Long: `Sign a message using an RSA-PSS signing key.

The key can be loaded from:
  - A file in JWK or PEM format
  - Key storage using storage directory, key ID and passphrase

The message can be provided as:
  - Command line argument
  - File content
  - Stdin (if no message or file specified)`,
	Example: `  # Sign a message using a JWK key file
  securemsg-keytool sign --key alice.jwk --message "Hello, World!"

  # Sign using a key from storage
  securemsg-keytool sign --storage-dir ./keys --key-id alice --passphrase hunter2 --message "Test message"

  # Sign from stdin and output base64
  echo "Message to sign" | securemsg-keytool sign --key alice.jwk --base64`,
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringVar(&keyFile, "key", "", "Key file path")
	signCmd.Flags().StringVar(&keyFormat, "key-format", "jwk", "Key file format (jwk, pem)")
	signCmd.Flags().StringVarP(&storageDir, "storage-dir", "s", "", "Storage directory")
	signCmd.Flags().StringVarP(&keyID, "key-id", "k", "", "Key ID for storage")
	signCmd.Flags().StringVar(&passphrase, "passphrase", "", "Passphrase for storage")
	signCmd.Flags().StringVarP(&message, "message", "m", "", "Message to sign")
	signCmd.Flags().StringVar(&messageFile, "message-file", "", "File containing message to sign")
	signCmd.Flags().StringVarP(&signatureOut, "output", "o", "", "Output file for signature")
	signCmd.Flags().BoolVar(&base64Output, "base64", false, "Output signature as base64")
}

func runSign(cmd *cobra.Command, args []string) error {
	keyPair, err := loadKey()
	if err != nil {
		return err
	}
	messageBytes, err := getMessage()
	if err != nil {
		return err
	}
	signature, err := keyPair.Sign(messageBytes)
	if err != nil {
		return fmt.Errorf("failed to sign message: %w", err)
	}
	return outputSignature(signature, keyPair)
}

func loadKey() (sagecrypto.KeyPair, error) {
	if storageDir != "" && keyID != "" {
		if passphrase == "" {
			return nil, fmt.Errorf("--passphrase is required with --storage-dir")
		}
		keyStorage, err := storage.NewFileKeyStorage(storageDir, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("failed to create key storage: %w", err)
		}
		keyPair, err := keyStorage.Load(keyID)
		if err != nil {
			return nil, fmt.Errorf("failed to load key from storage: %w", err)
		}
		return keyPair, nil
	}

	if keyFile == "" {
		return nil, fmt.Errorf("either --key or --storage-dir with --key-id must be specified")
	}

	keyData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var importer sagecrypto.KeyImporter
	var format sagecrypto.KeyFormat
	switch keyFormat {
	case "jwk":
		importer = formats.NewJWKImporter()
		format = sagecrypto.KeyFormatJWK
	case "pem":
		importer = formats.NewPEMImporter()
		format = sagecrypto.KeyFormatPEM
	default:
		return nil, fmt.Errorf("unsupported key format: %s", keyFormat)
	}

	keyPair, err := importer.Import(keyData, format)
	if err != nil {
		return nil, fmt.Errorf("failed to import key: %w", err)
	}
	return keyPair, nil
}

func getMessage() ([]byte, error) {
	if message != "" {
		return []byte(message), nil
	}
	if messageFile != "" {
		data, err := os.ReadFile(messageFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read message file: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read from stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no message provided")
	}
	return data, nil
}

func outputSignature(signature []byte, keyPair sagecrypto.KeyPair) error {
	var output []byte

	if base64Output {
		output = []byte(base64.StdEncoding.EncodeToString(signature))
	} else {
		result := map[string]interface{}{
			"signature": base64.StdEncoding.EncodeToString(signature),
			"key_id":    keyPair.ID(),
			"key_type":  string(keyPair.Type()),
			"algorithm": "RSA-PSS-SHA256",
		}
		jsonOutput, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		output = jsonOutput
	}

	if signatureOut != "" {
		if err := os.WriteFile(signatureOut, output, 0644); err != nil {
			return fmt.Errorf("failed to write signature file: %w", err)
		}
		fmt.Printf("Signature saved to: %s\n", signatureOut)
	} else {
		fmt.Println(string(output))
	}
	return nil
}
