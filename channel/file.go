package channel

import (
	"fmt"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
)

// SplitFile partitions plaintext into ChunkSize-sized slices, ready to be
// sealed independently under the same session_id. The final chunk may be
// shorter. An empty input yields a single empty chunk so zero-length files
// still produce exactly one sealed message.
func SplitFile(plaintext []byte) [][]byte {
	if len(plaintext) == 0 {
		return [][]byte{{}}
	}
	chunks := make([][]byte, 0, (len(plaintext)+ChunkSize-1)/ChunkSize)
	for offset := 0; offset < len(plaintext); offset += ChunkSize {
		end := offset + ChunkSize
		if end > len(plaintext) {
			end = len(plaintext)
		}
		chunks = append(chunks, plaintext[offset:end])
	}
	return chunks
}

// WrappedFileKey is a per-recipient file key sealed under the session key,
// for envelope mode: the file's bytes are encrypted under a freshly
// generated key, and that key is wrapped per-recipient rather than
// re-encrypting the file for each recipient.
type WrappedFileKey struct {
	IVB64         string `json:"iv"`
	CiphertextB64 string `json:"ciphertext"`
}

// WrapFileKey AES-256-GCM-wraps fileKey under the session key shared with
// one recipient, independent of the handshake's own directional keys.
func WrapFileKey(sessionKey [32]byte, fileKey []byte) (WrappedFileKey, error) {
	iv, err := sagecrypto.RandomBytes(sagecrypto.NonceSize)
	if err != nil {
		return WrappedFileKey{}, fmt.Errorf("channel: generate wrap iv: %w", err)
	}
	ciphertext, err := sagecrypto.SealAESGCM(sessionKey[:], iv, fileKey, []byte("securemsg file key wrap"))
	if err != nil {
		return WrappedFileKey{}, fmt.Errorf("channel: wrap file key: %w", err)
	}
	return WrappedFileKey{
		IVB64:         encodeB64(iv),
		CiphertextB64: encodeB64(ciphertext),
	}, nil
}

// UnwrapFileKey reverses WrapFileKey.
func UnwrapFileKey(sessionKey [32]byte, wrapped WrappedFileKey) ([]byte, error) {
	iv, err := decodeB64(wrapped.IVB64)
	if err != nil {
		return nil, fmt.Errorf("channel: decode wrap iv: %w", err)
	}
	ciphertext, err := decodeB64(wrapped.CiphertextB64)
	if err != nil {
		return nil, fmt.Errorf("channel: decode wrapped key: %w", err)
	}
	fileKey, err := sagecrypto.OpenAESGCM(sessionKey[:], iv, ciphertext, []byte("securemsg file key wrap"))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return fileKey, nil
}
