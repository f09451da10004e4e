// Package audit records the validator's gating decisions so every
// rejected or completed transition leaves a trail, per spec.md §4.4's
// "all validation failures are logged" requirement and §6's audit_log
// table shape.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/sage-x-project/securemsg/internal/logger"
)

// Entry is one audit record. SessionID and CallerID are optional since
// some events (e.g. a malformed request with no parseable session id)
// predate having either.
type Entry struct {
	EventType string
	SessionID string
	CallerID  string
	Reason    string
	IP        string
	Timestamp time.Time
}

// Sink persists audit entries. Implementations must not block the
// request path for long; a slow sink should buffer internally.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// MemorySink collects entries in memory, for tests that inspect what was
// recorded.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends e.
func (s *MemorySink) Record(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a snapshot of everything recorded so far.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// LoggingSink adapts a Sink onto the ambient structured logger, used when
// no durable audit_log table is configured.
type LoggingSink struct {
	Log logger.Logger
}

// NewLoggingSink wraps l as a Sink.
func NewLoggingSink(l logger.Logger) *LoggingSink {
	return &LoggingSink{Log: l}
}

// Record logs e at info level. LoggingSink never returns an error since a
// logging failure must not abort the caller's validation flow.
func (s *LoggingSink) Record(_ context.Context, e Entry) error {
	if s.Log == nil {
		return nil
	}
	s.Log.Info("audit event",
		logger.String("event_type", e.EventType),
		logger.String("session_id", e.SessionID),
		logger.String("caller_id", e.CallerID),
		logger.String("reason", e.Reason),
		logger.String("ip", e.IP),
	)
	return nil
}

// MultiSink fans a single Record call out to every configured sink, so a
// deployment can keep entries both durably (pgledger's audit_log table)
// and in the process log.
type MultiSink []Sink

// Record calls every sink in order, continuing past individual failures so
// one broken sink cannot suppress audit trail for the others; the first
// error encountered, if any, is returned after all sinks have run.
func (m MultiSink) Record(ctx context.Context, e Entry) error {
	var firstErr error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
