package ledger

import (
	"context"
	"errors"
	"time"
)

// Common store errors, surfaced by the relay as the matching taxonomy code.
var (
	ErrSessionExists   = errors.New("ledger: session already exists")
	ErrSessionNotFound = errors.New("ledger: session not found")
)

// LedgerStore is the collaborator interface named in SPEC_FULL.md §4.5: a
// durable key-value store of handshake records plus an append-only message
// log. It is the sole owner of mutation for both; the relay validator
// never mutates state outside of a store call.
type LedgerStore interface {
	// CreateHandshake inserts rec. Returns ErrSessionExists if rec.SessionID
	// is already present — this is how the validator's Init status gate
	// (§4.4 rule 5) is enforced without a separate existence check racing
	// the insert.
	CreateHandshake(ctx context.Context, rec *HandshakeRecord) error

	// GetHandshake returns the current record, or ErrSessionNotFound.
	GetHandshake(ctx context.Context, sessionID string) (*HandshakeRecord, error)

	// UpdateHandshake serializes access to sessionID's record (per-session
	// lock or equivalent compare-and-set) and runs mutate against a copy of
	// the current record. If mutate returns an error, the record is left
	// unchanged and UpdateHandshake returns that error. Otherwise the
	// mutated copy is persisted atomically. This is the single choke point
	// through which every handshake state transition flows, satisfying the
	// "two concurrent Respond calls on the same record: exactly one wins"
	// requirement in SPEC_FULL.md §4.4.
	UpdateHandshake(ctx context.Context, sessionID string, mutate func(*HandshakeRecord) error) error

	// ListPendingFor returns Initiated records addressed to responderID.
	ListPendingFor(ctx context.Context, responderID string) ([]*HandshakeRecord, error)

	// DeleteExpiredHandshakes marks records stuck below Completed past their
	// ExpiresAt as Expired and returns how many it marked, per SPEC_FULL.md
	// §3 lifecycle. The records themselves are kept.
	DeleteExpiredHandshakes(ctx context.Context, now time.Time) (int64, error)

	// AppendMessage stores an immutable sealed message.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListConversation returns every message exchanged between userA and
	// userB, in chronological order.
	ListConversation(ctx context.Context, userA, userB string) ([]*Message, error)

	// Close releases any underlying connection.
	Close() error
}
