// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/crypto/formats"
	"github.com/sage-x-project/securemsg/crypto/keys"
	"github.com/spf13/cobra"
)

var (
	publicKeyFile string
	signatureFile string
	signatureB64  string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a signature using a signing public key",
	Long: `Verify a signature using an RSA-PSS public key.

The public key can be provided as:
  - A file in JWK or PEM format
  - Part of a private key file (will extract public key)

The signature can be provided as:
  - Base64 encoded string
  - JSON file containing signature data
  - Raw signature file`,
	Example: `  # Verify using a public key and base64 signature
  securemsg-keytool verify --key bob-public.jwk --message "Hello, World!" --signature-b64 "base64sig..."

  # Verify using a signature file
  securemsg-keytool verify --key bob.pem --key-format pem --message-file document.txt --signature-file sig.json`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&publicKeyFile, "key", "", "Public key file path (required)")
	verifyCmd.Flags().StringVar(&keyFormat, "key-format", "jwk", "Key file format (jwk, pem)")
	verifyCmd.Flags().StringVarP(&message, "message", "m", "", "Message to verify")
	verifyCmd.Flags().StringVar(&messageFile, "message-file", "", "File containing message to verify")
	verifyCmd.Flags().StringVar(&signatureFile, "signature-file", "", "Signature file (JSON or raw)")
	verifyCmd.Flags().StringVar(&signatureB64, "signature-b64", "", "Base64 encoded signature")

	verifyCmd.MarkFlagRequired("key")
}

func runVerify(cmd *cobra.Command, args []string) error {
	publicKey, keyPair, err := loadPublicKey()
	if err != nil {
		return err
	}
	messageBytes, err := getMessage()
	if err != nil {
		return err
	}
	signature, err := getSignature()
	if err != nil {
		return err
	}

	var verifyErr error
	if keyPair != nil {
		verifyErr = keyPair.Verify(messageBytes, signature)
	} else {
		verifyErr = verifyWithPublicKey(publicKey, messageBytes, signature)
	}

	if verifyErr != nil {
		fmt.Println("Signature verification FAILED")
		return fmt.Errorf("invalid signature: %w", verifyErr)
	}

	fmt.Println("Signature verification PASSED")
	fmt.Printf("Key Type: %s\n", sagecrypto.KeyTypeSigning)
	if keyPair != nil {
		fmt.Printf("Key ID: %s\n", keyPair.ID())
	}
	return nil
}

func loadPublicKey() (crypto.PublicKey, sagecrypto.KeyPair, error) {
	keyData, err := os.ReadFile(publicKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var importer sagecrypto.KeyImporter
	var format sagecrypto.KeyFormat
	switch keyFormat {
	case "jwk":
		importer = formats.NewJWKImporter()
		format = sagecrypto.KeyFormatJWK

		var wrapper struct {
			PrivateKey json.RawMessage `json:"private_key"`
			PublicKey  json.RawMessage `json:"public_key"`
		}
		if err := json.Unmarshal(keyData, &wrapper); err == nil && (wrapper.PrivateKey != nil || wrapper.PublicKey != nil) {
			if wrapper.PrivateKey != nil {
				keyData = wrapper.PrivateKey
			} else {
				keyData = wrapper.PublicKey
			}
		}

	case "pem":
		importer = formats.NewPEMImporter()
		format = sagecrypto.KeyFormatPEM
	default:
		return nil, nil, fmt.Errorf("unsupported key format: %s", keyFormat)
	}

	if keyPair, err := importer.Import(keyData, format); err == nil {
		return keyPair.PublicKey(), keyPair, nil
	}

	publicKey, err := importer.ImportPublic(keyData, format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to import key: %w", err)
	}
	return publicKey, nil, nil
}

func getSignature() ([]byte, error) {
	if signatureB64 != "" {
		signature, err := base64.StdEncoding.DecodeString(signatureB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 signature: %w", err)
		}
		return signature, nil
	}

	if signatureFile != "" {
		data, err := os.ReadFile(signatureFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read signature file: %w", err)
		}
		var sigData map[string]interface{}
		if err := json.Unmarshal(data, &sigData); err == nil {
			if sigStr, ok := sigData["signature"].(string); ok {
				signature, err := base64.StdEncoding.DecodeString(sigStr)
				if err != nil {
					return nil, fmt.Errorf("failed to decode signature from JSON: %w", err)
				}
				return signature, nil
			}
			return nil, fmt.Errorf("signature field not found in JSON")
		}
		return data, nil
	}

	if message != "" || messageFile != "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read signature from stdin: %w", err)
		}
		if len(data) > 0 {
			if signature, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
				return signature, nil
			}
			return data, nil
		}
	}

	return nil, fmt.Errorf("no signature provided")
}

// verifyWithPublicKey verifies a signature using only an RSA-PSS public key,
// for the case where loadPublicKey could not reconstruct a full KeyPair.
func verifyWithPublicKey(publicKey crypto.PublicKey, message, signature []byte) error {
	pub, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("unsupported public key type: %T", publicKey)
	}
	wrapped, err := keys.NewPublicSigningKey(pub)
	if err != nil {
		return fmt.Errorf("wrap public key: %w", err)
	}
	return wrapped.Verify(message, signature)
}
