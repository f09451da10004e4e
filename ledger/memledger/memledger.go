// Package memledger is an in-memory ledger.LedgerStore, grounded on the
// mutex-guarded map + cleanup-ticker pattern used throughout this codebase
// for ephemeral server-side state. It is meant for tests and single-process
// deployments; ledger/pgledger is the durable backend.
package memledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sage-x-project/securemsg/ledger"
)

// Store is an in-memory LedgerStore.
type Store struct {
	mu       sync.Mutex
	records  map[string]*ledger.HandshakeRecord
	messages []*ledger.Message
	nextMsg  uint64

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
}

// New creates an in-memory store and starts its background expiry sweep.
func New(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &Store{
		records:       make(map[string]*ledger.HandshakeRecord),
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}
	go s.runCleanup()
	return s
}

func (s *Store) runCleanup() {
	defer close(s.cleanupDone)
	for {
		select {
		case <-s.cleanupTicker.C:
			_, _ = s.DeleteExpiredHandshakes(context.Background(), time.Now())
		case <-s.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine.
func (s *Store) Close() error {
	s.cleanupTicker.Stop()
	close(s.stopCleanup)
	<-s.cleanupDone
	return nil
}

func clone(rec *ledger.HandshakeRecord) *ledger.HandshakeRecord {
	cp := *rec
	return &cp
}

func (s *Store) CreateHandshake(ctx context.Context, rec *ledger.HandshakeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.SessionID]; exists {
		return ledger.ErrSessionExists
	}
	s.records[rec.SessionID] = clone(rec)
	return nil
}

func (s *Store) GetHandshake(ctx context.Context, sessionID string) (*ledger.HandshakeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, ledger.ErrSessionNotFound
	}
	return clone(rec), nil
}

func (s *Store) UpdateHandshake(ctx context.Context, sessionID string, mutate func(*ledger.HandshakeRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return ledger.ErrSessionNotFound
	}
	working := clone(rec)
	if err := mutate(working); err != nil {
		return err
	}
	s.records[sessionID] = working
	return nil
}

func (s *Store) ListPendingFor(ctx context.Context, responderID string) ([]*ledger.HandshakeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ledger.HandshakeRecord
	for _, rec := range s.records {
		if rec.ResponderID == responderID && rec.Status == ledger.StatusInitiated {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteExpiredHandshakes(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, rec := range s.records {
		if rec.Status == ledger.StatusCompleted || rec.IsTerminal() {
			continue
		}
		if now.After(rec.ExpiresAt) {
			rec.Status = ledger.StatusExpired
			count++
			_ = id
		}
	}
	return count, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *ledger.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		s.nextMsg++
		msg.ID = msgID(s.nextMsg)
	}
	cp := *msg
	s.messages = append(s.messages, &cp)
	return nil
}

func (s *Store) ListConversation(ctx context.Context, userA, userB string) ([]*ledger.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ledger.Message
	for _, m := range s.messages {
		if (m.From == userA && m.To == userB) || (m.From == userB && m.To == userA) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerTime.Before(out[j].ServerTime) })
	return out, nil
}

func msgID(n uint64) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hex[n&0xf]
		n >>= 4
	}
	return "msg-" + string(buf)
}
