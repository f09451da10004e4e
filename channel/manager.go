package channel

import (
	"sync"
	"time"
)

// DefaultIdleTimeout is how long a channel pair may sit unused before
// Manager's cleanup loop evicts it.
const DefaultIdleTimeout = 30 * time.Minute

// Pair bundles the two directional Channels that make up one session's
// secure channel, as seen by one of the two peers.
type Pair struct {
	Send *Channel
	Recv *Channel
}

type entry struct {
	pair     Pair
	lastUsed time.Time
}

// Manager owns the live Channel pairs for a running process, keyed by
// (peerID, sessionID) the way session.Manager keys by session ID alone —
// the peer component is needed here because a relay or client process may
// hold channels for many counterparties at once.
type Manager struct {
	mu            sync.RWMutex
	entries       map[string]*entry
	idleTimeout   time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// NewManager starts a Manager with a background eviction loop.
func NewManager(idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	m := &Manager{
		entries:       make(map[string]*entry),
		idleTimeout:   idleTimeout,
		cleanupTicker: time.NewTicker(time.Minute),
		stopCleanup:   make(chan struct{}),
	}
	go m.runCleanup()
	return m
}

func key(peerID, sessionID string) string {
	return peerID + "|" + sessionID
}

// GetOrCreate returns the existing pair for (peerID, sessionID), or builds
// one from key if absent. Both directions of the channel share the single
// session key K (spec.md §4.2); Send and Recv are distinguished only by
// their own independent *SequenceCounter, never by different key material.
func (m *Manager) GetOrCreate(peerID, sessionID string, sessionKey [32]byte) Pair {
	k := key(peerID, sessionID)

	m.mu.RLock()
	e, ok := m.entries[k]
	m.mu.RUnlock()
	if ok {
		m.touch(k, e)
		return e.pair
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[k]; ok {
		e.lastUsed = time.Now()
		return e.pair
	}
	pair := Pair{
		Send: newWithCounter(sessionID, sessionKey, &SequenceCounter{}),
		Recv: newWithCounter(sessionID, sessionKey, &SequenceCounter{}),
	}
	m.entries[k] = &entry{pair: pair, lastUsed: time.Now()}
	return pair
}

func (m *Manager) touch(k string, e *entry) {
	m.mu.Lock()
	e.lastUsed = time.Now()
	m.mu.Unlock()
}

// Get returns the pair for (peerID, sessionID) if one has been created.
func (m *Manager) Get(peerID, sessionID string) (Pair, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key(peerID, sessionID)]
	if !ok {
		return Pair{}, false
	}
	return e.pair, true
}

// Remove closes and discards a pair, e.g. when the underlying handshake
// record transitions to Failed or Expired.
func (m *Manager) Remove(peerID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(peerID, sessionID)
	if e, ok := m.entries[k]; ok {
		e.pair.Send.Close()
		e.pair.Recv.Close()
		delete(m.entries, k)
	}
}

// Count returns the number of live pairs, for metrics.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the cleanup loop and closes every held channel.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stopCleanup) })
	m.cleanupTicker.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		e.pair.Send.Close()
		e.pair.Recv.Close()
		delete(m.entries, k)
	}
	return nil
}

func (m *Manager) runCleanup() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.evictIdle()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := time.Now().Add(-m.idleTimeout)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if e.lastUsed.Before(cutoff) {
			e.pair.Send.Close()
			e.pair.Recv.Close()
			delete(m.entries, k)
		}
	}
}
