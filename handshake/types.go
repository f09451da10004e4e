// Package handshake implements the three-message authenticated key
// agreement state machine (Init / Respond / Confirm), generalized from the
// teacher's A2A/gRPC-envelope Server/Client pair to plain JSON messages
// delivered over the transport.Transport abstraction. Engine is the
// relay-side orchestration: it assumes the caller (relay.Validator) has
// already run authentication, field-presence, freshness, signature, status
// and expiry gating, and only performs the ledger read/write each
// transition requires.
package handshake

import "github.com/sage-x-project/securemsg/ledger"

// InitRequest carries the initiator's signed Init message, already
// gate-checked by the caller.
type InitRequest struct {
	InitiatorID     string
	ResponderID     string
	EphemeralPublic []byte
	Nonce           []byte
	Signature       []byte
	TimestampMillis int64
}

// RespondRequest carries the responder's signed Respond message.
type RespondRequest struct {
	SessionID       string
	EphemeralPublic []byte
	Nonce           []byte
	Signature       []byte
	TimestampMillis int64
}

// ResponseResult is returned to the caller of Respond so it can hand the
// initiator's ephemeral public key back to the responding client, which
// needs it to derive the shared secret.
type ResponseResult struct {
	SessionID          string
	InitiatorPublicKey []byte
	InitiatorNonce      []byte
}

// ConfirmRequest carries one party's confirmation tag.
type ConfirmRequest struct {
	SessionID   string
	Confirmation []byte
	IsInitiator bool
}

// Status re-exports ledger.Status so callers of this package don't need to
// import ledger directly just to name a status value.
type Status = ledger.Status
