package memledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/securemsg/ledger"
)

func newRecord(id string, created time.Time) *ledger.HandshakeRecord {
	return &ledger.HandshakeRecord{
		SessionID:   id,
		InitiatorID: "alice",
		ResponderID: "bob",
		Status:      ledger.StatusInitiated,
		CreatedAt:   created,
		ExpiresAt:   created.Add(5 * time.Minute),
	}
}

func TestCreateAndGetHandshake(t *testing.T) {
	store := New(time.Hour)
	defer store.Close()
	ctx := context.Background()

	rec := newRecord("s1", time.Now())
	require.NoError(t, store.CreateHandshake(ctx, rec))

	require.ErrorIs(t, store.CreateHandshake(ctx, rec), ledger.ErrSessionExists)

	got, err := store.GetHandshake(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.InitiatorID)

	_, err = store.GetHandshake(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrSessionNotFound)
}

func TestUpdateHandshakeMutatesAtomically(t *testing.T) {
	store := New(time.Hour)
	defer store.Close()
	ctx := context.Background()

	rec := newRecord("s1", time.Now())
	require.NoError(t, store.CreateHandshake(ctx, rec))

	err := store.UpdateHandshake(ctx, "s1", func(r *ledger.HandshakeRecord) error {
		if r.Status != ledger.StatusInitiated {
			return ledger.ErrSessionExists // stand-in for an InvalidStatus sentinel
		}
		r.Status = ledger.StatusResponded
		return nil
	})
	require.NoError(t, err)

	got, _ := store.GetHandshake(ctx, "s1")
	assert.Equal(t, ledger.StatusResponded, got.Status)

	// Second transition attempt from the now-stale expectation must fail,
	// and must not corrupt the stored record.
	err = store.UpdateHandshake(ctx, "s1", func(r *ledger.HandshakeRecord) error {
		if r.Status != ledger.StatusInitiated {
			return ledger.ErrSessionExists
		}
		r.Status = ledger.StatusResponded
		return nil
	})
	assert.Error(t, err)

	got, _ = store.GetHandshake(ctx, "s1")
	assert.Equal(t, ledger.StatusResponded, got.Status)
}

func TestListPendingFor(t *testing.T) {
	store := New(time.Hour)
	defer store.Close()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.CreateHandshake(ctx, newRecord("s1", now)))
	require.NoError(t, store.CreateHandshake(ctx, newRecord("s2", now.Add(time.Second))))

	require.NoError(t, store.UpdateHandshake(ctx, "s2", func(r *ledger.HandshakeRecord) error {
		r.Status = ledger.StatusCompleted
		return nil
	}))

	pending, err := store.ListPendingFor(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "s1", pending[0].SessionID)
}

func TestDeleteExpiredHandshakes(t *testing.T) {
	store := New(time.Hour)
	defer store.Close()
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.CreateHandshake(ctx, newRecord("s1", past)))

	n, err := store.DeleteExpiredHandshakes(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetHandshake(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusExpired, got.Status)
}

func TestAppendAndListConversation(t *testing.T) {
	store := New(time.Hour)
	defer store.Close()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.AppendMessage(ctx, &ledger.Message{
		From: "alice", To: "bob", SessionID: "s1", ServerTime: now,
	}))
	require.NoError(t, store.AppendMessage(ctx, &ledger.Message{
		From: "bob", To: "alice", SessionID: "s1", ServerTime: now.Add(time.Second),
	}))
	require.NoError(t, store.AppendMessage(ctx, &ledger.Message{
		From: "carol", To: "dave", SessionID: "s2", ServerTime: now,
	}))

	msgs, err := store.ListConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.NotEmpty(t, msgs[0].ID)
	assert.True(t, msgs[0].ServerTime.Before(msgs[1].ServerTime))
}
