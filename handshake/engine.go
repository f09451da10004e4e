package handshake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sage-x-project/securemsg/ledger"
)

// ErrInvalidStatus is returned when a transition is attempted against a
// record whose status does not permit it (spec's InvalidStatus code).
var ErrInvalidStatus = errors.New("handshake: invalid status for transition")

// DefaultFreshnessWindow is the maximum allowed clock drift between a
// signed message's timestamp and the relay's clock.
const DefaultFreshnessWindow = 5 * time.Minute

// DefaultSessionTTL is how long a record may remain below Completed before
// the relay expires it.
const DefaultSessionTTL = 5 * time.Minute

// Clock is the minimal time source the engine needs; satisfied by
// clock.Clock without importing it, keeping this package's dependency
// surface to ledger only.
type Clock interface {
	Now() time.Time
}

// Engine orchestrates ledger state transitions for the handshake protocol.
// It performs no authentication, freshness, or signature checks itself —
// those are the relay validator's job; Engine assumes its caller already
// ran them and focuses purely on the ledger read/write each transition
// requires, mirroring the teacher's separation between Server.SendMessage
// (transport/auth layer) and the session logic it delegates to.
type Engine struct {
	Ledger    ledger.LedgerStore
	Clock     Clock
	SessionTTL time.Duration
}

// NewEngine returns an Engine with spec-mandated defaults where zero
// values are passed.
func NewEngine(store ledger.LedgerStore, clk Clock) *Engine {
	return &Engine{
		Ledger:     store,
		Clock:      clk,
		SessionTTL: DefaultSessionTTL,
	}
}

func (e *Engine) ttl() time.Duration {
	if e.SessionTTL <= 0 {
		return DefaultSessionTTL
	}
	return e.SessionTTL
}

// Init mints a new session id and creates the Initiated record. A new
// session_id is always minted; Init never mutates an existing record.
func (e *Engine) Init(ctx context.Context, req InitRequest) (string, error) {
	now := e.Clock.Now()
	sessionID := fmt.Sprintf("%s|%s|%d", req.InitiatorID, req.ResponderID, now.UnixMilli())

	rec := &ledger.HandshakeRecord{
		SessionID:             sessionID,
		InitiatorID:           req.InitiatorID,
		ResponderID:           req.ResponderID,
		InitiatorEphemeralPub: req.EphemeralPublic,
		InitiatorNonce:        req.Nonce,
		InitiatorSignature:    req.Signature,
		Status:                ledger.StatusInitiated,
		CreatedAt:             now,
		ExpiresAt:             now.Add(e.ttl()),
	}

	if err := e.Ledger.CreateHandshake(ctx, rec); err != nil {
		return "", err
	}
	return sessionID, nil
}

// Respond stores the responder's ephemeral material and transitions
// Initiated -> Responded. Duplicate Respond on a record already past
// Initiated fails with ErrInvalidStatus.
func (e *Engine) Respond(ctx context.Context, req RespondRequest) (ResponseResult, error) {
	var initiatorPub, initiatorNonce []byte

	err := e.Ledger.UpdateHandshake(ctx, req.SessionID, func(rec *ledger.HandshakeRecord) error {
		if rec.Status != ledger.StatusInitiated {
			return ErrInvalidStatus
		}
		rec.ResponderEphemeralPub = req.EphemeralPublic
		rec.ResponderNonce = req.Nonce
		rec.ResponderSignature = req.Signature
		rec.Status = ledger.StatusResponded
		initiatorPub = rec.InitiatorEphemeralPub
		initiatorNonce = rec.InitiatorNonce
		return nil
	})
	if err != nil {
		return ResponseResult{}, err
	}

	return ResponseResult{SessionID: req.SessionID, InitiatorPublicKey: initiatorPub, InitiatorNonce: initiatorNonce}, nil
}

// Confirm records one party's confirmation tag. The record moves
// Responded -> Confirmed on the first confirmation and -> Completed once
// both slots are filled. Either party may confirm first. A party whose
// confirmation slot is already set gets ErrInvalidStatus.
func (e *Engine) Confirm(ctx context.Context, req ConfirmRequest) (Status, error) {
	var result Status

	err := e.Ledger.UpdateHandshake(ctx, req.SessionID, func(rec *ledger.HandshakeRecord) error {
		if rec.Status != ledger.StatusResponded && rec.Status != ledger.StatusConfirmed {
			return ErrInvalidStatus
		}

		if req.IsInitiator {
			if rec.InitiatorConfirmation != nil {
				return ErrInvalidStatus
			}
			rec.InitiatorConfirmation = req.Confirmation
		} else {
			if rec.ResponderConfirmation != nil {
				return ErrInvalidStatus
			}
			rec.ResponderConfirmation = req.Confirmation
		}

		if rec.Status == ledger.StatusResponded {
			rec.Status = ledger.StatusConfirmed
		}

		if rec.InitiatorConfirmation != nil && rec.ResponderConfirmation != nil {
			rec.Status = ledger.StatusCompleted
			rec.CompletedAt = e.Clock.Now()
		}

		result = rec.Status
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// Resume re-hydrates a client's handshake state from the ledger after a
// restart, per spec.md §9's resume requirement.
func (e *Engine) Resume(ctx context.Context, sessionID string) (*ledger.HandshakeRecord, error) {
	return e.Ledger.GetHandshake(ctx, sessionID)
}
