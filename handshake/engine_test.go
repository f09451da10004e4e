package handshake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/securemsg/clock"
	"github.com/sage-x-project/securemsg/ledger"
	"github.com/sage-x-project/securemsg/ledger/memledger"
)

func newTestEngine(t *testing.T) (*Engine, *memledger.Store, *clock.Fixed) {
	t.Helper()
	store := memledger.New(time.Hour)
	t.Cleanup(func() { store.Close() })
	fixed := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewEngine(store, fixed), store, fixed
}

func TestEngineInitCreatesRecord(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	sessionID, err := e.Init(ctx, InitRequest{
		InitiatorID:     "alice",
		ResponderID:     "bob",
		EphemeralPublic: []byte("eph-a"),
		Nonce:           []byte("nonce-a"),
		Signature:       []byte("sig-a"),
		TimestampMillis: 1000,
	})
	require.NoError(t, err)
	assert.Contains(t, sessionID, "alice|bob|")

	rec, err := e.Resume(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusInitiated, rec.Status)
	assert.Equal(t, "alice", rec.InitiatorID)
}

func TestEngineRespondTransitionsAndRejectsDuplicate(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	sessionID, err := e.Init(ctx, InitRequest{InitiatorID: "alice", ResponderID: "bob", EphemeralPublic: []byte("eph-a"), Nonce: []byte("nonce-a")})
	require.NoError(t, err)

	result, err := e.Respond(ctx, RespondRequest{SessionID: sessionID, EphemeralPublic: []byte("eph-b")})
	require.NoError(t, err)
	assert.Equal(t, []byte("eph-a"), result.InitiatorPublicKey)
	assert.Equal(t, []byte("nonce-a"), result.InitiatorNonce)

	rec, _ := e.Resume(ctx, sessionID)
	assert.Equal(t, ledger.StatusResponded, rec.Status)

	_, err = e.Respond(ctx, RespondRequest{SessionID: sessionID, EphemeralPublic: []byte("eph-b-again")})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestEngineConfirmBothSidesCompletesSession(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	sessionID, err := e.Init(ctx, InitRequest{InitiatorID: "alice", ResponderID: "bob"})
	require.NoError(t, err)
	_, err = e.Respond(ctx, RespondRequest{SessionID: sessionID})
	require.NoError(t, err)

	status, err := e.Confirm(ctx, ConfirmRequest{SessionID: sessionID, Confirmation: []byte("c_a"), IsInitiator: true})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusConfirmed, status)

	status, err = e.Confirm(ctx, ConfirmRequest{SessionID: sessionID, Confirmation: []byte("c_b"), IsInitiator: false})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, status)

	rec, _ := e.Resume(ctx, sessionID)
	assert.False(t, rec.CompletedAt.IsZero())
}

func TestEngineConfirmRejectsDuplicateSlot(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	sessionID, err := e.Init(ctx, InitRequest{InitiatorID: "alice", ResponderID: "bob"})
	require.NoError(t, err)
	_, err = e.Respond(ctx, RespondRequest{SessionID: sessionID})
	require.NoError(t, err)

	_, err = e.Confirm(ctx, ConfirmRequest{SessionID: sessionID, Confirmation: []byte("c_a"), IsInitiator: true})
	require.NoError(t, err)

	_, err = e.Confirm(ctx, ConfirmRequest{SessionID: sessionID, Confirmation: []byte("c_a_again"), IsInitiator: true})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestEngineRespondEitherOrderOfConfirm(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	sessionID, err := e.Init(ctx, InitRequest{InitiatorID: "alice", ResponderID: "bob"})
	require.NoError(t, err)
	_, err = e.Respond(ctx, RespondRequest{SessionID: sessionID})
	require.NoError(t, err)

	// Responder confirms first.
	status, err := e.Confirm(ctx, ConfirmRequest{SessionID: sessionID, Confirmation: []byte("c_b"), IsInitiator: false})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusConfirmed, status)

	status, err = e.Confirm(ctx, ConfirmRequest{SessionID: sessionID, Confirmation: []byte("c_a"), IsInitiator: true})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, status)
}
