package channel

import (
	"encoding/base64"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
)

// SequenceCounter is a per-direction strictly-monotonic counter, shared
// between a Channel and whatever tracks the "last accepted" sequence number
// on the receiving side. It never decrements and never resets within the
// lifetime of a session, per spec's per-direction sequencing invariant.
type SequenceCounter struct {
	v atomic.Uint64
}

// Next atomically increments and returns the new value.
func (c *SequenceCounter) Next() uint64 {
	return c.v.Add(1)
}

// Load returns the current value without incrementing.
func (c *SequenceCounter) Load() uint64 {
	return c.v.Load()
}

// Channel is one direction of a completed handshake's secure channel: a
// 32-byte AES-256-GCM key plus the monotonic counter for whichever side
// owns this instance. A bidirectional session is represented by two
// Channel values sharing a sessionID and the single key from
// crypto.SessionKeys, told apart only by which one owns the send counter
// and which owns the recv counter — Manager wires that pairing together.
type Channel struct {
	mu        sync.Mutex
	sessionID string
	key       [32]byte
	counter   *SequenceCounter
	closed    bool
}

// New constructs a Channel bound to sessionID and key. Both a Channel used
// with Seal and a Channel used with Open take the same session key K; only
// their counters differ.
func New(sessionID string, key [32]byte) *Channel {
	return &Channel{
		sessionID: sessionID,
		key:       key,
		counter:   &SequenceCounter{},
	}
}

// newWithCounter lets Manager share a single counter instance across
// repeated lookups of the same direction.
func newWithCounter(sessionID string, key [32]byte, counter *SequenceCounter) *Channel {
	return &Channel{sessionID: sessionID, key: key, counter: counter}
}

// NewResuming constructs a Channel whose counter starts at lastSequence
// instead of zero, for a process that persists channel state across
// restarts (e.g. a one-shot CLI invoked once per message) and must not
// reuse a sequence number the relay has already accepted.
func NewResuming(sessionID string, key [32]byte, lastSequence uint64) *Channel {
	counter := &SequenceCounter{}
	counter.v.Store(lastSequence)
	return newWithCounter(sessionID, key, counter)
}

// Close zeroes the key material and marks the channel unusable.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for i := range c.key {
		c.key[i] = 0
	}
}

// Seal encrypts plaintext as a text message, atomically advancing the send
// counter first (§4.3 step 1) so a failed send never reuses a sequence
// number.
func (c *Channel) Seal(plaintext []byte) (Envelope, error) {
	return c.SealMessage(plaintext, MessageTypeText)
}

// SealMessage encrypts plaintext tagged with messageType (text or file).
func (c *Channel) SealMessage(plaintext []byte, messageType MessageType) (Envelope, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return Envelope{}, ErrClosed
	}

	seq := c.counter.Next()

	iv, err := sagecrypto.RandomBytes(sagecrypto.NonceSize)
	if err != nil {
		return Envelope{}, fmt.Errorf("channel: generate iv: %w", err)
	}
	ciphertext, err := sagecrypto.SealAESGCM(c.key[:], iv, plaintext, nil)
	if err != nil {
		return Envelope{}, fmt.Errorf("channel: seal: %w", err)
	}
	if len(ciphertext)+len(iv) > MaxCiphertextSize {
		return Envelope{}, ErrPayloadTooLarge
	}

	canary, err := sagecrypto.RandomBytes(32)
	if err != nil {
		return Envelope{}, fmt.Errorf("channel: generate nonce: %w", err)
	}

	return Envelope{
		SessionID:      c.sessionID,
		CiphertextB64:  base64.StdEncoding.EncodeToString(ciphertext),
		IVB64:          base64.StdEncoding.EncodeToString(iv),
		SequenceNumber: seq,
		NonceB64:       base64.StdEncoding.EncodeToString(canary),
		Timestamp:      time.Now().UnixMilli(),
		MessageType:    messageType,
	}, nil
}

// Open decrypts env's ciphertext. It performs no sequence validation — that
// is the relay's job (spec §4.4 item 7, §5) — and it does not mutate any
// counter, so an authentication failure can never desynchronize sequencing.
func (c *Channel) Open(env Envelope) ([]byte, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	iv, err := base64.StdEncoding.DecodeString(env.IVB64)
	if err != nil {
		return nil, fmt.Errorf("channel: decode iv: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.CiphertextB64)
	if err != nil {
		return nil, fmt.Errorf("channel: decode ciphertext: %w", err)
	}

	plaintext, err := sagecrypto.OpenAESGCM(c.key[:], iv, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// LastSequence returns the highest sequence number this Channel has sent
// (for a send-direction Channel) without advancing it.
func (c *Channel) LastSequence() uint64 {
	return c.counter.Load()
}
