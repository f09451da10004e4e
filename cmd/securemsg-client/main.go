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
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagRelayURL    string
	flagUserID      string
	flagKeystoreDir string
	flagKeyID       string
	flagPassphrase  string
	flagStateDir    string
	flagToken       string
)

var rootCmd = &cobra.Command{
	Use:   "securemsg-client",
	Short: "securemsg end-to-end encrypted messaging client",
	Long: `securemsg-client drives the three-message key-agreement handshake and the
sealed-message channel against a securemsg-relay server. It is a one-shot
CLI: each invocation performs one step of the protocol and persists
whatever local state (ephemeral key material, derived channel keys,
sequence counters) the next invocation needs, encrypted at rest under the
same passphrase-derived scheme securemsg-keytool uses for stored
identities.`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagRelayURL, "relay-url", "http://localhost:8443", "Base URL of the securemsg-relay server")
	flags.StringVar(&flagUserID, "user", "", "This client's identity id (required)")
	flags.StringVar(&flagKeystoreDir, "keystore-dir", ".securemsg/keys", "Directory holding this identity's signing key, as written by securemsg-keytool")
	flags.StringVar(&flagKeyID, "key-id", "", "Key id of the signing identity in the keystore (defaults to --user)")
	flags.StringVar(&flagPassphrase, "passphrase", "", "Passphrase protecting the keystore and local session state")
	flags.StringVar(&flagStateDir, "state-dir", ".securemsg/sessions", "Directory for local handshake/channel state")
	flags.StringVar(&flagToken, "token", "", "Bearer token for the relay (defaults to --user)")

	// Note: commands are registered in their respective files
	// - handshake.go: handshakeCmd and its init/respond/confirm/status/pending children
	// - message.go: messageCmd and its send/recv children
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func requireUser() error {
	if flagUserID == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

func keyID() string {
	if flagKeyID != "" {
		return flagKeyID
	}
	return flagUserID
}

func bearerToken() string {
	if flagToken != "" {
		return flagToken
	}
	return flagUserID
}
