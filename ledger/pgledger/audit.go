package pgledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sage-x-project/securemsg/audit"
)

// AuditSink writes audit.Entry values to the audit_log table created by
// Schema. It is kept separate from Store's LedgerStore methods since
// audit.Sink is not part of the ledger.LedgerStore contract — a deployment
// is free to pair a Postgres ledger with an in-memory or logging audit
// sink instead.
type AuditSink struct {
	store *Store
}

// NewAuditSink returns an AuditSink backed by store's connection pool.
func NewAuditSink(store *Store) *AuditSink {
	return &AuditSink{store: store}
}

// Record inserts one audit_log row. Reason is carried in the JSONB
// details column so the schema doesn't need to grow a column per gating
// step's free-form context.
func (a *AuditSink) Record(ctx context.Context, e audit.Entry) error {
	details, err := json.Marshal(map[string]string{"reason": e.Reason})
	if err != nil {
		return fmt.Errorf("pgledger: marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_log (event_type, session_id, user_id, details, ip, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`
	_, err = a.store.pool.Exec(ctx, query,
		e.EventType, nullString(e.SessionID), nullString(e.CallerID), details, nullString(e.IP), e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("pgledger: record audit: %w", err)
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
