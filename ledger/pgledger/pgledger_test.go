package pgledger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/securemsg/ledger"
)

// newTestStore connects to a live Postgres instance. Set
// SAGE_INTEGRATION_TEST=1 to run; SECUREMSG_TEST_DB_HOST, _USER, _PASSWORD
// and _NAME override the connection defaults, and the port is fixed at
// 5432. Without SAGE_INTEGRATION_TEST=1 the test is skipped,
// matching this codebase's convention for tests that need real
// infrastructure.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("SAGE_INTEGRATION_TEST") != "1" {
		t.Skip("Skipping integration test. Set SAGE_INTEGRATION_TEST=1 to run")
	}

	cfg := &Config{
		Host:     envOr("SECUREMSG_TEST_DB_HOST", "localhost"),
		Port:     5432,
		User:     envOr("SECUREMSG_TEST_DB_USER", "postgres"),
		Password: envOr("SECUREMSG_TEST_DB_PASSWORD", "postgres"),
		Database: envOr("SECUREMSG_TEST_DB_NAME", "securemsg_test"),
		SSLMode:  "disable",
	}

	ctx := context.Background()
	store, err := New(ctx, cfg)
	require.NoError(t, err)

	_, err = store.pool.Exec(ctx, Schema)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = store.pool.Exec(ctx, "TRUNCATE handshake_records, messages, audit_log")
		store.Close()
	})

	return store
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestPgLedgerCreateAndUpdateHandshake(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := &ledger.HandshakeRecord{
		SessionID:   "alice|bob|1",
		InitiatorID: "alice",
		ResponderID: "bob",
		Status:      ledger.StatusInitiated,
		CreatedAt:   now,
		ExpiresAt:   now.Add(5 * time.Minute),
	}
	require.NoError(t, store.CreateHandshake(ctx, rec))
	require.ErrorIs(t, store.CreateHandshake(ctx, rec), ledger.ErrSessionExists)

	err := store.UpdateHandshake(ctx, rec.SessionID, func(r *ledger.HandshakeRecord) error {
		r.Status = ledger.StatusResponded
		r.ResponderNonce = []byte("nonce-bytes-000000000000000000")
		return nil
	})
	require.NoError(t, err)

	got, err := store.GetHandshake(ctx, rec.SessionID)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusResponded, got.Status)
	require.Equal(t, []byte("nonce-bytes-000000000000000000"), got.ResponderNonce)
}

func TestPgLedgerMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.AppendMessage(ctx, &ledger.Message{
		ID: "m1", From: "alice", To: "bob", SessionID: "s1",
		Ciphertext: []byte("ct"), IV: []byte("iv"), MessageType: ledger.MessageTypeText,
		SequenceNumber: 1, ServerTime: now,
	}))

	msgs, err := store.ListConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "m1", msgs[0].ID)
}
