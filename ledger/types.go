// Package ledger defines the durable handshake and message record store
// consumed by the handshake engine and the relay validator. Persistence
// choice is explicitly a collaborator concern (spec.md §1); this package
// only fixes the shape of the records and the store contract, with
// concrete backends in ledger/memledger and ledger/pgledger.
package ledger

import "time"

// Status is the handshake record's position in the state machine of
// SPEC_FULL.md §4.2.
type Status string

const (
	StatusInitiated Status = "Initiated"
	StatusResponded Status = "Responded"
	StatusConfirmed Status = "Confirmed"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusExpired   Status = "Expired"
)

// HandshakeRecord is the durable state of one key-agreement session,
// keyed by SessionID. All byte fields are stored raw; wire encodings
// (base64) are a transport concern.
type HandshakeRecord struct {
	SessionID   string
	InitiatorID string
	ResponderID string

	InitiatorEphemeralPub []byte // raw uncompressed P-256 point, 65 bytes
	ResponderEphemeralPub []byte

	InitiatorNonce []byte // 32 bytes
	ResponderNonce []byte

	InitiatorSignature []byte
	ResponderSignature []byte

	InitiatorConfirmation []byte // HMAC tag, nil until sent
	ResponderConfirmation []byte

	InitiatorLastSequence uint64
	ResponderLastSequence uint64

	Status Status

	CreatedAt   time.Time
	ExpiresAt   time.Time
	CompletedAt time.Time
}

// IsTerminal reports whether the record can no longer transition.
func (r *HandshakeRecord) IsTerminal() bool {
	return r.Status == StatusFailed || r.Status == StatusExpired
}

// MessageType distinguishes channel payload kinds.
type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeFile MessageType = "file"
)

// Message is an immutable sealed channel payload as stored by the relay.
// No plaintext or key material is ever held here.
type Message struct {
	ID             string
	From           string
	To             string
	SessionID      string
	Ciphertext     []byte
	IV             []byte
	MessageType    MessageType
	SequenceNumber uint64
	ServerTime     time.Time
}
