package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
)

// sessionState is one handshake's local bookkeeping: the material this
// client generated itself plus what it needs from the peer to finish
// deriving the channel keys, persisted across the separate process
// invocations a one-shot CLI is run as. EphemeralPrivate is left out of
// the state saved once the handshake is confirmed, so only K remains on
// disk after that point.
type sessionState struct {
	PeerID           string `json:"peerId"`
	IsInitiator      bool   `json:"isInitiator"`
	Status           string `json:"status"`
	EphemeralPrivate []byte `json:"ephemeralPrivate,omitempty"`
	OwnNonce         []byte `json:"ownNonce,omitempty"`
	// ChannelKey is the single 32-byte session key K (spec.md §4.2), used
	// for both Seal and Open — the two directions are told apart only by
	// SendSeq/RecvSeq, never by separate key material.
	ChannelKey []byte `json:"channelKey,omitempty"`
	SendSeq    uint64 `json:"sendSeq"`
	RecvSeq    uint64 `json:"recvSeq"`
}

var errSessionNotFound = errors.New("securemsg-client: no local state for session")

// sessionStore persists sessionState as passphrase-encrypted JSON blobs,
// one file per session, mirroring crypto/storage's file-backed key store
// (same HKDF-derived-key/AES-GCM scheme) since it guards the same class of
// secret: raw key material that must not sit on disk in the clear.
type sessionStore struct {
	dir        string
	passphrase []byte
	mu         sync.Mutex
}

type encryptedSessionFile struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func newSessionStore(dir string, passphrase []byte) (*sessionStore, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("securemsg-client: --passphrase is required for local session state")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session state directory: %w", err)
	}
	return &sessionStore{dir: dir, passphrase: passphrase}, nil
}

func (s *sessionStore) path(sessionID string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "|", "_").Replace(sessionID)
	return filepath.Join(s.dir, safe+".session.json")
}

func (s *sessionStore) deriveKey(salt []byte) ([]byte, error) {
	return sagecrypto.HKDFExpand(s.passphrase, salt, []byte("securemsg client session state"), 32)
}

func (s *sessionStore) save(sessionID string, st *sessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plaintext, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	salt, err := sagecrypto.RandomBytes(16)
	if err != nil {
		return err
	}
	nonce, err := sagecrypto.RandomBytes(sagecrypto.NonceSize)
	if err != nil {
		return err
	}
	key, err := s.deriveKey(salt)
	if err != nil {
		return err
	}
	ciphertext, err := sagecrypto.SealAESGCM(key, nonce, plaintext, []byte(sessionID))
	if err != nil {
		return fmt.Errorf("encrypt session state: %w", err)
	}
	blob, err := json.Marshal(encryptedSessionFile{Salt: salt, Nonce: nonce, Ciphertext: ciphertext})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(sessionID), blob, 0o600)
}

func (s *sessionStore) load(sessionID string) (*sessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errSessionNotFound
		}
		return nil, fmt.Errorf("read session state: %w", err)
	}
	var enc encryptedSessionFile
	if err := json.Unmarshal(raw, &enc); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	key, err := s.deriveKey(enc.Salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := sagecrypto.OpenAESGCM(key, enc.Nonce, enc.Ciphertext, []byte(sessionID))
	if err != nil {
		return nil, fmt.Errorf("decrypt session state (wrong passphrase?): %w", err)
	}
	var st sessionState
	if err := json.Unmarshal(plaintext, &st); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	return &st, nil
}

func (s *sessionStore) delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session state: %w", err)
	}
	return nil
}

func newStateStore() (*sessionStore, error) {
	return newSessionStore(flagStateDir, []byte(flagPassphrase))
}
