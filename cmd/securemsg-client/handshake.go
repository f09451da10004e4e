package main

import (
	"context"
	"crypto/ecdh"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/handshake"
	"github.com/sage-x-project/securemsg/relay"
)

// errConfirmationMismatch is returned locally when a peer's posted
// confirmation tag does not match what this client independently derives
// from its own view of the shared secret — the client-side half of
// spec.md §8's MITM-detection property, since the relay never holds the
// shared secret needed to evaluate the tag itself.
var errConfirmationMismatch = errors.New("securemsg-client: peer confirmation mismatch — possible man-in-the-middle, session key discarded")

// verifyPeerConfirmation checks whatever confirmation tag the peer has
// already posted to the relay, if any, against the tag this client expects
// from sharedSecret. It does nothing if the peer has not confirmed yet —
// either party may confirm first (spec.md §4.2) — in which case the
// caller that confirms later carries this same check before trusting the
// session.
func verifyPeerConfirmation(sessionID string, peerIsInitiator bool, sharedSecret []byte, peerConfirmationB64 string) error {
	if peerConfirmationB64 == "" {
		return nil
	}
	peerTag, err := unb64(peerConfirmationB64)
	if err != nil {
		return fmt.Errorf("decode peer confirmation: %w", err)
	}
	if !handshake.VerifyConfirmation(sessionID, peerIsInitiator, sharedSecret, peerTag) {
		return errConfirmationMismatch
	}
	return nil
}

var flagSessionID string
var flagPeerID string

var handshakeCmd = &cobra.Command{
	Use:   "handshake",
	Short: "Run the authenticated key-agreement handshake against a peer",
	Long: `handshake drives the three-message Init/Respond/Confirm key-agreement
protocol described by the securemsg relay's /keys/exchange endpoints.

SUBCOMMANDS:
  init     Start a handshake with a responder (Init)
  respond  Answer a pending handshake addressed to you (Respond + Confirm)
  confirm  Complete a handshake you initiated, once the peer has responded
  status   Print a session's current status
  pending  List handshakes awaiting your response`,
}

var handshakeInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initiate a handshake with --peer",
	RunE:  runHandshakeInit,
}

var handshakeRespondCmd = &cobra.Command{
	Use:   "respond",
	Short: "Respond to and confirm a pending handshake identified by --session",
	RunE:  runHandshakeRespond,
}

var handshakeConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Complete a handshake you initiated, identified by --session",
	RunE:  runHandshakeConfirm,
}

var handshakeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of --session",
	RunE:  runHandshakeStatus,
}

var handshakePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List handshakes awaiting your response",
	RunE:  runHandshakePending,
}

func init() {
	rootCmd.AddCommand(handshakeCmd)
	handshakeCmd.AddCommand(handshakeInitCmd)
	handshakeCmd.AddCommand(handshakeRespondCmd)
	handshakeCmd.AddCommand(handshakeConfirmCmd)
	handshakeCmd.AddCommand(handshakeStatusCmd)
	handshakeCmd.AddCommand(handshakePendingCmd)

	handshakeInitCmd.Flags().StringVar(&flagPeerID, "peer", "", "Responder identity id (required)")

	handshakeRespondCmd.Flags().StringVar(&flagSessionID, "session", "", "Session id (required)")
	handshakeConfirmCmd.Flags().StringVar(&flagSessionID, "session", "", "Session id (required)")
	handshakeStatusCmd.Flags().StringVar(&flagSessionID, "session", "", "Session id (required)")
}

// parseSessionParties recovers the initiator and responder ids from a
// session id of the form "<initiatorId>|<responderId>|<creationMillis>"
// (spec.md §3), the only place the responder's identity is available to
// a party that only ever saw the relay-minted session id.
func parseSessionParties(sessionID string) (initiatorID, responderID string, ok bool) {
	parts := strings.Split(sessionID, "|")
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func unb64(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

func runHandshakeInit(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	if flagPeerID == "" {
		return fmt.Errorf("--peer is required")
	}
	ctx := context.Background()

	signingKey, err := loadSigningKey()
	if err != nil {
		return err
	}
	ephPriv, err := sagecrypto.GenerateECDHKeyPair()
	if err != nil {
		return fmt.Errorf("generate ephemeral key: %w", err)
	}
	nonce, err := sagecrypto.RandomBytes(32)
	if err != nil {
		return err
	}
	ts := time.Now().UnixMilli()

	payload, err := handshake.InitPayload(flagPeerID, ephPriv.PublicKey().Bytes(), nonce, ts)
	if err != nil {
		return fmt.Errorf("build init payload: %w", err)
	}
	sig, err := signingKey.Sign(payload)
	if err != nil {
		return fmt.Errorf("sign init payload: %w", err)
	}

	var resp relay.InitiateResponse
	err = post(ctx, newRelayClient(), "/keys/exchange/initiate", relay.InitiateRequest{
		ResponderID:     flagPeerID,
		EphemeralPublic: b64(ephPriv.PublicKey().Bytes()),
		Nonce:           b64(nonce),
		Timestamp:       ts,
		Signature:       b64(sig),
	}, &resp)
	if err != nil {
		return err
	}

	store, err := newStateStore()
	if err != nil {
		return err
	}
	if err := store.save(resp.SessionID, &sessionState{
		PeerID:           flagPeerID,
		IsInitiator:      true,
		Status:           "Initiated",
		EphemeralPrivate: ephPriv.Bytes(),
		OwnNonce:         nonce,
	}); err != nil {
		return fmt.Errorf("save local session state: %w", err)
	}

	fmt.Printf("session initiated: %s\n", resp.SessionID)
	fmt.Println("share this session id with the responder out of band")
	return nil
}

func runHandshakeRespond(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	if flagSessionID == "" {
		return fmt.Errorf("--session is required")
	}
	ctx := context.Background()

	signingKey, err := loadSigningKey()
	if err != nil {
		return err
	}
	ephPriv, err := sagecrypto.GenerateECDHKeyPair()
	if err != nil {
		return fmt.Errorf("generate ephemeral key: %w", err)
	}
	nonce, err := sagecrypto.RandomBytes(32)
	if err != nil {
		return err
	}
	ts := time.Now().UnixMilli()

	payload, err := handshake.RespondPayload(flagSessionID, ephPriv.PublicKey().Bytes(), nonce, ts)
	if err != nil {
		return fmt.Errorf("build respond payload: %w", err)
	}
	sig, err := signingKey.Sign(payload)
	if err != nil {
		return fmt.Errorf("sign respond payload: %w", err)
	}

	client := newRelayClient()
	var resp relay.RespondResponse
	if err := post(ctx, client, "/keys/exchange/respond", relay.RespondRequest{
		SessionID:       flagSessionID,
		EphemeralPublic: b64(ephPriv.PublicKey().Bytes()),
		Nonce:           b64(nonce),
		Timestamp:       ts,
		Signature:       b64(sig),
	}, &resp); err != nil {
		return err
	}

	initiatorPubRaw, err := unb64(resp.InitiatorPublicKey)
	if err != nil {
		return fmt.Errorf("decode initiator public key: %w", err)
	}
	initiatorNonce, err := unb64(resp.InitiatorNonce)
	if err != nil {
		return fmt.Errorf("decode initiator nonce: %w", err)
	}
	initiatorPub, err := sagecrypto.ParseECDHPublicKey(initiatorPubRaw)
	if err != nil {
		return fmt.Errorf("parse initiator public key: %w", err)
	}

	sharedSecret, err := sagecrypto.DeriveSharedSecret(ephPriv, initiatorPub)
	if err != nil {
		return fmt.Errorf("derive shared secret: %w", err)
	}
	sessionKeys, err := handshake.SessionKeys(sharedSecret, initiatorNonce, nonce)
	if err != nil {
		return fmt.Errorf("derive session keys: %w", err)
	}
	defer sessionKeys.Zero()

	// Either party may confirm first (spec.md §4.2): check whether the
	// initiator's tag is already on the relay before posting our own.
	var view relay.SessionView
	if err := get(ctx, client, "/keys/exchange/session/"+flagSessionID, &view); err != nil {
		return err
	}
	if err := verifyPeerConfirmation(flagSessionID, true, sharedSecret, view.InitiatorConfirmation); err != nil {
		return err
	}

	tag := handshake.ConfirmationTag(flagSessionID, false, sharedSecret)

	var confirmResp relay.ConfirmResponse
	if err := post(ctx, client, "/keys/exchange/confirm", relay.ConfirmRequest{
		SessionID:    flagSessionID,
		Confirmation: b64(tag),
		IsInitiator:  false,
	}, &confirmResp); err != nil {
		return err
	}

	initiatorID, _, _ := parseSessionParties(flagSessionID)
	store, err := newStateStore()
	if err != nil {
		return err
	}
	if err := store.save(flagSessionID, &sessionState{
		PeerID:      initiatorID,
		IsInitiator: false,
		Status:      confirmResp.Status,
		ChannelKey:  sessionKeys.Key,
	}); err != nil {
		return fmt.Errorf("save local session state: %w", err)
	}

	fmt.Printf("session %s: %s\n", flagSessionID, confirmResp.Status)
	return nil
}

func runHandshakeConfirm(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	if flagSessionID == "" {
		return fmt.Errorf("--session is required")
	}
	ctx := context.Background()

	store, err := newStateStore()
	if err != nil {
		return err
	}
	st, err := store.load(flagSessionID)
	if err != nil {
		return fmt.Errorf("load local session state: %w", err)
	}
	if !st.IsInitiator {
		return fmt.Errorf("session %s was not initiated by this client", flagSessionID)
	}
	if len(st.EphemeralPrivate) == 0 {
		return fmt.Errorf("session %s has already been confirmed locally", flagSessionID)
	}

	client := newRelayClient()
	var view relay.SessionView
	if err := get(ctx, client, "/keys/exchange/session/"+flagSessionID, &view); err != nil {
		return err
	}
	if view.ResponderPublicKey == "" {
		return fmt.Errorf("responder has not responded yet (status: %s)", view.Status)
	}

	ephPriv, err := ecdh.P256().NewPrivateKey(st.EphemeralPrivate)
	if err != nil {
		return fmt.Errorf("restore ephemeral key: %w", err)
	}
	responderPubRaw, err := unb64(view.ResponderPublicKey)
	if err != nil {
		return fmt.Errorf("decode responder public key: %w", err)
	}
	responderNonce, err := unb64(view.ResponderNonce)
	if err != nil {
		return fmt.Errorf("decode responder nonce: %w", err)
	}
	responderPub, err := sagecrypto.ParseECDHPublicKey(responderPubRaw)
	if err != nil {
		return fmt.Errorf("parse responder public key: %w", err)
	}

	sharedSecret, err := sagecrypto.DeriveSharedSecret(ephPriv, responderPub)
	if err != nil {
		return fmt.Errorf("derive shared secret: %w", err)
	}
	sessionKeys, err := handshake.SessionKeys(sharedSecret, st.OwnNonce, responderNonce)
	if err != nil {
		return fmt.Errorf("derive session keys: %w", err)
	}
	defer sessionKeys.Zero()

	// The responder's "respond" command confirms in the same call, so by
	// the time we reach here its tag is normally already on the relay;
	// verify it before trusting the session or posting our own tag.
	if err := verifyPeerConfirmation(flagSessionID, false, sharedSecret, view.ResponderConfirmation); err != nil {
		return err
	}

	tag := handshake.ConfirmationTag(flagSessionID, true, sharedSecret)

	var confirmResp relay.ConfirmResponse
	if err := post(ctx, client, "/keys/exchange/confirm", relay.ConfirmRequest{
		SessionID:    flagSessionID,
		Confirmation: b64(tag),
		IsInitiator:  true,
	}, &confirmResp); err != nil {
		return err
	}

	if err := store.save(flagSessionID, &sessionState{
		PeerID:      st.PeerID,
		IsInitiator: true,
		Status:      confirmResp.Status,
		ChannelKey:  sessionKeys.Key,
	}); err != nil {
		return fmt.Errorf("save local session state: %w", err)
	}

	fmt.Printf("session %s: %s\n", flagSessionID, confirmResp.Status)
	return nil
}

func runHandshakeStatus(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	if flagSessionID == "" {
		return fmt.Errorf("--session is required")
	}
	var status relay.StatusView
	if err := get(context.Background(), newRelayClient(), "/keys/exchange/status/"+flagSessionID, &status); err != nil {
		return err
	}
	fmt.Println(status.Status)
	return nil
}

func runHandshakePending(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	var pending []relay.PendingEntry
	if err := get(context.Background(), newRelayClient(), "/keys/exchange/pending", &pending); err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("no pending handshakes")
		return nil
	}
	for _, p := range pending {
		fmt.Printf("%s  from=%s  created=%s\n", p.SessionID, p.InitiatorID, time.UnixMilli(p.CreatedAt).Format(time.RFC3339))
	}
	return nil
}
