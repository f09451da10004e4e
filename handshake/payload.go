package handshake

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
)

// InitPayload builds the exact canonical-JSON byte string the initiator
// signs and the relay re-derives for signature verification. Field names
// and the literal "type" discriminator are part of the signed contract and
// must not change.
func InitPayload(responderID string, ephemeralPublic, nonce []byte, timestampMillis int64) ([]byte, error) {
	return sagecrypto.CanonicalJSON(map[string]any{
		"responderId":     responderID,
		"ephemeralPublic": base64.StdEncoding.EncodeToString(ephemeralPublic),
		"nonce":           base64.StdEncoding.EncodeToString(nonce),
		"timestamp":       timestampMillis,
		"type":            "key_exchange_init",
	})
}

// RespondPayload builds the responder's signed payload.
func RespondPayload(sessionID string, ephemeralPublic, nonce []byte, timestampMillis int64) ([]byte, error) {
	return sagecrypto.CanonicalJSON(map[string]any{
		"sessionId":       sessionID,
		"ephemeralPublic": base64.StdEncoding.EncodeToString(ephemeralPublic),
		"nonce":           base64.StdEncoding.EncodeToString(nonce),
		"timestamp":       timestampMillis,
		"type":            "key_exchange_response",
	})
}

// SessionKeys derives the single 32-byte AEAD session key K from the raw
// ECDH shared secret and both nonces, salt = n_A ‖ n_B in that exact order
// regardless of which party is deriving.
func SessionKeys(sharedSecret, initiatorNonce, responderNonce []byte) (*sagecrypto.SessionKeys, error) {
	salt := make([]byte, 0, len(initiatorNonce)+len(responderNonce))
	salt = append(salt, initiatorNonce...)
	salt = append(salt, responderNonce...)
	return sagecrypto.DeriveSessionKeys(sharedSecret, salt)
}

// ConfirmationInput builds the HMAC input for a party's confirmation tag:
// "<sessionId>|<role>|<base64(sha256(z))>".
func ConfirmationInput(sessionID string, isInitiator bool, zHash []byte) []byte {
	role := "responder"
	if isInitiator {
		role = "initiator"
	}
	return []byte(fmt.Sprintf("%s|%s|%s", sessionID, role, base64.StdEncoding.EncodeToString(zHash)))
}

// ConfirmationTag computes hmac_sha256(z, "<sessionId>|<role>|<base64(h)>"),
// keyed by the raw ECDH shared secret itself — not a derived key — per
// spec.md §4.2's c_A/c_B definitions.
func ConfirmationTag(sessionID string, isInitiator bool, sharedSecret []byte) []byte {
	zHash := sha256.Sum256(sharedSecret)
	return sagecrypto.HMACSHA256(sharedSecret, ConfirmationInput(sessionID, isInitiator, zHash[:]))
}

// VerifyConfirmation reports whether tag is the confirmation the party
// playing role isInitiatorRole would have produced from sharedSecret for
// sessionID. Both honest parties derive bytewise-identical z (P1), so a
// mismatch here is the MITM-substitution signal of spec.md's P8: an
// attacker running two separate handshakes with each victim cannot produce
// a z that matches what the honest peer independently derives.
func VerifyConfirmation(sessionID string, isInitiatorRole bool, sharedSecret, tag []byte) bool {
	zHash := sha256.Sum256(sharedSecret)
	return sagecrypto.VerifyHMACSHA256(sharedSecret, ConfirmationInput(sessionID, isInitiatorRole, zHash[:]), tag)
}
