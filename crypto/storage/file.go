// SPDX-License-Identifier: LGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/crypto/formats"
)

// fileKeyStorage persists key pairs as passphrase-encrypted JWK blobs under
// dir, one file per key ID. It implements the same KeyStorage contract as
// memoryKeyStorage; callers pick a backend at startup (spec.md §3: "private
// halves live in an encrypted-at-rest local key store").
type fileKeyStorage struct {
	dir        string
	passphrase []byte
	mu         sync.Mutex
}

type encryptedKeyFile struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	KeyFormat  string `json:"key_format"`
}

// NewFileKeyStorage opens (creating if necessary) a file-backed key store
// rooted at dir, encrypting every key at rest under a key derived from
// passphrase via HKDF-SHA-256 with a per-file random salt.
func NewFileKeyStorage(dir string, passphrase []byte) (sagecrypto.KeyStorage, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("storage: passphrase must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: create key directory: %w", err)
	}
	return &fileKeyStorage{dir: dir, passphrase: passphrase}, nil
}

func (s *fileKeyStorage) path(id string) string {
	return filepath.Join(s.dir, safeFileName(id)+".key.json")
}

func safeFileName(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(id)
}

func (s *fileKeyStorage) Store(id string, keyPair sagecrypto.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exporter := formats.NewJWKExporter()
	plaintext, err := exporter.Export(keyPair, sagecrypto.KeyFormatJWK)
	if err != nil {
		return fmt.Errorf("storage: export key for storage: %w", err)
	}

	salt, err := sagecrypto.RandomBytes(16)
	if err != nil {
		return err
	}
	nonce, err := sagecrypto.RandomBytes(sagecrypto.NonceSize)
	if err != nil {
		return err
	}
	encKey, err := sagecrypto.HKDFExpand(s.passphrase, salt, []byte("securemsg file key storage"), 32)
	if err != nil {
		return err
	}
	ciphertext, err := sagecrypto.SealAESGCM(encKey, nonce, plaintext, []byte(id))
	if err != nil {
		return fmt.Errorf("storage: encrypt key: %w", err)
	}

	blob, err := json.Marshal(encryptedKeyFile{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ciphertext,
		KeyFormat:  string(sagecrypto.KeyFormatJWK),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(id), blob, 0o600)
}

func (s *fileKeyStorage) Load(id string) (sagecrypto.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sagecrypto.ErrKeyNotFound
		}
		return nil, fmt.Errorf("storage: read key file: %w", err)
	}
	var enc encryptedKeyFile
	if err := json.Unmarshal(raw, &enc); err != nil {
		return nil, fmt.Errorf("storage: decode key file: %w", err)
	}
	decKey, err := sagecrypto.HKDFExpand(s.passphrase, enc.Salt, []byte("securemsg file key storage"), 32)
	if err != nil {
		return nil, err
	}
	plaintext, err := sagecrypto.OpenAESGCM(decKey, enc.Nonce, enc.Ciphertext, []byte(id))
	if err != nil {
		return nil, fmt.Errorf("storage: decrypt key (wrong passphrase?): %w", err)
	}
	importer := formats.NewJWKImporter()
	return importer.Import(plaintext, sagecrypto.KeyFormat(enc.KeyFormat))
}

func (s *fileKeyStorage) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return sagecrypto.ErrKeyNotFound
		}
		return fmt.Errorf("storage: delete key file: %w", err)
	}
	return nil
}

func (s *fileKeyStorage) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list key directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".key.json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".key.json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fileKeyStorage) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.path(id))
	return err == nil
}
