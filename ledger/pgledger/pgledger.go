// Package pgledger is the Postgres-backed ledger.LedgerStore, grounded on
// the pgx/v5 pool + per-table-struct pattern used throughout this
// codebase's storage layer.
package pgledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/securemsg/ledger"
)

// Schema is the DDL required by Store. Callers run this against a fresh
// database before constructing a Store; this package does not migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS handshake_records (
	session_id               TEXT PRIMARY KEY,
	initiator_id              TEXT NOT NULL,
	responder_id              TEXT NOT NULL,
	initiator_ephemeral_pub   BYTEA,
	responder_ephemeral_pub   BYTEA,
	initiator_nonce           BYTEA,
	responder_nonce           BYTEA,
	initiator_signature       BYTEA,
	responder_signature       BYTEA,
	initiator_confirmation    BYTEA,
	responder_confirmation    BYTEA,
	initiator_last_sequence   BIGINT NOT NULL DEFAULT 0,
	responder_last_sequence  BIGINT NOT NULL DEFAULT 0,
	status                    TEXT NOT NULL,
	created_at                TIMESTAMPTZ NOT NULL,
	expires_at                TIMESTAMPTZ NOT NULL,
	completed_at              TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_handshake_records_responder_status
	ON handshake_records (responder_id, status);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	from_user       TEXT NOT NULL,
	to_user         TEXT NOT NULL,
	session_id      TEXT NOT NULL,
	ciphertext      BYTEA NOT NULL,
	iv              BYTEA NOT NULL,
	message_type    TEXT NOT NULL,
	sequence_number BIGINT NOT NULL,
	server_time     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages (from_user, to_user, server_time);

CREATE TABLE IF NOT EXISTS audit_log (
	id         BIGSERIAL PRIMARY KEY,
	event_type TEXT NOT NULL,
	session_id TEXT,
	user_id    TEXT,
	details    JSONB,
	ip         TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
`

// Store is a Postgres-backed LedgerStore.
type Store struct {
	pool *pgxpool.Pool
}

// Config holds the connection parameters, mirroring the other Postgres
// backends in this codebase.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// New opens a pool and verifies connectivity. Callers are responsible for
// having applied Schema beforehand.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("pgledger: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgledger: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity, for wiring into health.DatabaseHealthCheck.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) CreateHandshake(ctx context.Context, rec *ledger.HandshakeRecord) error {
	query := `
		INSERT INTO handshake_records (
			session_id, initiator_id, responder_id,
			initiator_ephemeral_pub, responder_ephemeral_pub,
			initiator_nonce, responder_nonce,
			initiator_signature, responder_signature,
			initiator_confirmation, responder_confirmation,
			initiator_last_sequence, responder_last_sequence,
			status, created_at, expires_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`
	_, err := s.pool.Exec(ctx, query,
		rec.SessionID, rec.InitiatorID, rec.ResponderID,
		rec.InitiatorEphemeralPub, rec.ResponderEphemeralPub,
		rec.InitiatorNonce, rec.ResponderNonce,
		rec.InitiatorSignature, rec.ResponderSignature,
		rec.InitiatorConfirmation, rec.ResponderConfirmation,
		rec.InitiatorLastSequence, rec.ResponderLastSequence,
		string(rec.Status), rec.CreatedAt, rec.ExpiresAt, nullTime(rec.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrSessionExists
		}
		return fmt.Errorf("pgledger: create handshake: %w", err)
	}
	return nil
}

func (s *Store) GetHandshake(ctx context.Context, sessionID string) (*ledger.HandshakeRecord, error) {
	return s.getHandshakeTx(ctx, s.pool, sessionID)
}

func (s *Store) getHandshakeTx(ctx context.Context, q querier, sessionID string) (*ledger.HandshakeRecord, error) {
	query := `
		SELECT session_id, initiator_id, responder_id,
			initiator_ephemeral_pub, responder_ephemeral_pub,
			initiator_nonce, responder_nonce,
			initiator_signature, responder_signature,
			initiator_confirmation, responder_confirmation,
			initiator_last_sequence, responder_last_sequence,
			status, created_at, expires_at, completed_at
		FROM handshake_records WHERE session_id = $1
	`
	var rec ledger.HandshakeRecord
	var status string
	var completedAt *time.Time

	err := q.QueryRow(ctx, query, sessionID).Scan(
		&rec.SessionID, &rec.InitiatorID, &rec.ResponderID,
		&rec.InitiatorEphemeralPub, &rec.ResponderEphemeralPub,
		&rec.InitiatorNonce, &rec.ResponderNonce,
		&rec.InitiatorSignature, &rec.ResponderSignature,
		&rec.InitiatorConfirmation, &rec.ResponderConfirmation,
		&rec.InitiatorLastSequence, &rec.ResponderLastSequence,
		&status, &rec.CreatedAt, &rec.ExpiresAt, &completedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ledger.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgledger: get handshake: %w", err)
	}
	rec.Status = ledger.Status(status)
	if completedAt != nil {
		rec.CompletedAt = *completedAt
	}
	return &rec, nil
}

// UpdateHandshake runs mutate inside a serializable transaction: it reads
// the row with SELECT ... FOR UPDATE, so a concurrent Respond/Confirm on
// the same session_id blocks until this transaction commits or rolls
// back, giving exactly the "one winner" semantics the validator needs.
func (s *Store) UpdateHandshake(ctx context.Context, sessionID string, mutate func(*ledger.HandshakeRecord) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgledger: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.getHandshakeTxForUpdate(ctx, tx, sessionID)
	if err != nil {
		return err
	}

	if err := mutate(rec); err != nil {
		return err
	}

	query := `
		UPDATE handshake_records SET
			initiator_ephemeral_pub = $2, responder_ephemeral_pub = $3,
			initiator_nonce = $4, responder_nonce = $5,
			initiator_signature = $6, responder_signature = $7,
			initiator_confirmation = $8, responder_confirmation = $9,
			initiator_last_sequence = $10, responder_last_sequence = $11,
			status = $12, expires_at = $13, completed_at = $14
		WHERE session_id = $1
	`
	_, err = tx.Exec(ctx, query,
		rec.SessionID,
		rec.InitiatorEphemeralPub, rec.ResponderEphemeralPub,
		rec.InitiatorNonce, rec.ResponderNonce,
		rec.InitiatorSignature, rec.ResponderSignature,
		rec.InitiatorConfirmation, rec.ResponderConfirmation,
		rec.InitiatorLastSequence, rec.ResponderLastSequence,
		string(rec.Status), rec.ExpiresAt, nullTime(rec.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("pgledger: update handshake: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) getHandshakeTxForUpdate(ctx context.Context, tx pgx.Tx, sessionID string) (*ledger.HandshakeRecord, error) {
	query := `
		SELECT session_id, initiator_id, responder_id,
			initiator_ephemeral_pub, responder_ephemeral_pub,
			initiator_nonce, responder_nonce,
			initiator_signature, responder_signature,
			initiator_confirmation, responder_confirmation,
			initiator_last_sequence, responder_last_sequence,
			status, created_at, expires_at, completed_at
		FROM handshake_records WHERE session_id = $1 FOR UPDATE
	`
	var rec ledger.HandshakeRecord
	var status string
	var completedAt *time.Time

	err := tx.QueryRow(ctx, query, sessionID).Scan(
		&rec.SessionID, &rec.InitiatorID, &rec.ResponderID,
		&rec.InitiatorEphemeralPub, &rec.ResponderEphemeralPub,
		&rec.InitiatorNonce, &rec.ResponderNonce,
		&rec.InitiatorSignature, &rec.ResponderSignature,
		&rec.InitiatorConfirmation, &rec.ResponderConfirmation,
		&rec.InitiatorLastSequence, &rec.ResponderLastSequence,
		&status, &rec.CreatedAt, &rec.ExpiresAt, &completedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ledger.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgledger: lock handshake: %w", err)
	}
	rec.Status = ledger.Status(status)
	if completedAt != nil {
		rec.CompletedAt = *completedAt
	}
	return &rec, nil
}

func (s *Store) ListPendingFor(ctx context.Context, responderID string) ([]*ledger.HandshakeRecord, error) {
	query := `
		SELECT session_id, initiator_id, responder_id,
			initiator_ephemeral_pub, responder_ephemeral_pub,
			initiator_nonce, responder_nonce,
			initiator_signature, responder_signature,
			initiator_confirmation, responder_confirmation,
			initiator_last_sequence, responder_last_sequence,
			status, created_at, expires_at, completed_at
		FROM handshake_records
		WHERE responder_id = $1 AND status = $2
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, responderID, string(ledger.StatusInitiated))
	if err != nil {
		return nil, fmt.Errorf("pgledger: list pending: %w", err)
	}
	defer rows.Close()

	var out []*ledger.HandshakeRecord
	for rows.Next() {
		var rec ledger.HandshakeRecord
		var status string
		var completedAt *time.Time
		if err := rows.Scan(
			&rec.SessionID, &rec.InitiatorID, &rec.ResponderID,
			&rec.InitiatorEphemeralPub, &rec.ResponderEphemeralPub,
			&rec.InitiatorNonce, &rec.ResponderNonce,
			&rec.InitiatorSignature, &rec.ResponderSignature,
			&rec.InitiatorConfirmation, &rec.ResponderConfirmation,
			&rec.InitiatorLastSequence, &rec.ResponderLastSequence,
			&status, &rec.CreatedAt, &rec.ExpiresAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("pgledger: scan pending: %w", err)
		}
		rec.Status = ledger.Status(status)
		if completedAt != nil {
			rec.CompletedAt = *completedAt
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *Store) DeleteExpiredHandshakes(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE handshake_records SET status = $1
		WHERE status NOT IN ($2, $3, $4) AND expires_at <= $5
	`
	result, err := s.pool.Exec(ctx, query,
		string(ledger.StatusExpired),
		string(ledger.StatusCompleted), string(ledger.StatusFailed), string(ledger.StatusExpired),
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("pgledger: expire handshakes: %w", err)
	}
	return result.RowsAffected(), nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *ledger.Message) error {
	query := `
		INSERT INTO messages (id, from_user, to_user, session_id, ciphertext, iv, message_type, sequence_number, server_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	_, err := s.pool.Exec(ctx, query,
		msg.ID, msg.From, msg.To, msg.SessionID, msg.Ciphertext, msg.IV,
		string(msg.MessageType), msg.SequenceNumber, msg.ServerTime,
	)
	if err != nil {
		return fmt.Errorf("pgledger: append message: %w", err)
	}
	return nil
}

func (s *Store) ListConversation(ctx context.Context, userA, userB string) ([]*ledger.Message, error) {
	query := `
		SELECT id, from_user, to_user, session_id, ciphertext, iv, message_type, sequence_number, server_time
		FROM messages
		WHERE (from_user = $1 AND to_user = $2) OR (from_user = $2 AND to_user = $1)
		ORDER BY server_time ASC
	`
	rows, err := s.pool.Query(ctx, query, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("pgledger: list conversation: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Message
	for rows.Next() {
		var m ledger.Message
		var msgType string
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.SessionID, &m.Ciphertext, &m.IV, &msgType, &m.SequenceNumber, &m.ServerTime); err != nil {
			return nil, fmt.Errorf("pgledger: scan message: %w", err)
		}
		m.MessageType = ledger.MessageType(msgType)
		out = append(out, &m)
	}
	return out, rows.Err()
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
