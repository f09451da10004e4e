package relay

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/securemsg/audit"
	"github.com/sage-x-project/securemsg/clock"
	sagecrypto "github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/crypto/keys"
	"github.com/sage-x-project/securemsg/directory"
	"github.com/sage-x-project/securemsg/handshake"
	"github.com/sage-x-project/securemsg/ledger/memledger"
)

// identity bundles a registered user's signing key pair and directory
// identity for test convenience.
type identity struct {
	userID string
	signer sagecrypto.KeyPair
}

func registerIdentity(t *testing.T, dir *directory.MemoryDirectory, userID string) identity {
	t.Helper()
	signKP, err := keys.GenerateSigningKeyPair()
	require.NoError(t, err)
	ecdhKP, err := sagecrypto.GenerateECDHKeyPair()
	require.NoError(t, err)

	dir.Register(&directory.Identity{
		UserID:      userID,
		SigningKey:  signKP.PublicKey().(*rsa.PublicKey),
		ECDHKey:     ecdhKP.PublicKey(),
		Fingerprint: signKP.ID(),
	})
	return identity{userID: userID, signer: signKP}
}

func newTestValidator(t *testing.T, now time.Time) (*Validator, *directory.MemoryDirectory, *clock.Fixed) {
	t.Helper()
	store := memledger.New(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	dir := directory.NewMemoryDirectory()
	fixedClock := clock.NewFixed(now)
	engine := handshake.NewEngine(store, fixedClock)
	v := NewValidator(store, dir, engine, audit.NewMemorySink(), fixedClock)
	t.Cleanup(v.Close)
	return v, dir, fixedClock
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func signedInit(t *testing.T, initiator identity, responderID string, ts int64) InitiateRequest {
	t.Helper()
	ephPriv, err := sagecrypto.GenerateECDHKeyPair()
	require.NoError(t, err)
	nonce, err := sagecrypto.RandomBytes(32)
	require.NoError(t, err)
	ephPub := ephPriv.PublicKey().Bytes()

	payload, err := handshake.InitPayload(responderID, ephPub, nonce, ts)
	require.NoError(t, err)
	sig, err := initiator.signer.Sign(payload)
	require.NoError(t, err)

	return InitiateRequest{
		ResponderID:     responderID,
		EphemeralPublic: b64(ephPub),
		Nonce:           b64(nonce),
		Timestamp:       ts,
		Signature:       b64(sig),
	}
}

func signedRespond(t *testing.T, responder identity, sessionID string, ts int64) RespondRequest {
	t.Helper()
	ephPriv, err := sagecrypto.GenerateECDHKeyPair()
	require.NoError(t, err)
	nonce, err := sagecrypto.RandomBytes(32)
	require.NoError(t, err)
	ephPub := ephPriv.PublicKey().Bytes()

	payload, err := handshake.RespondPayload(sessionID, ephPub, nonce, ts)
	require.NoError(t, err)
	sig, err := responder.signer.Sign(payload)
	require.NoError(t, err)

	return RespondRequest{
		SessionID:       sessionID,
		EphemeralPublic: b64(ephPub),
		Nonce:           b64(nonce),
		Timestamp:       ts,
		Signature:       b64(sig),
	}
}

func TestInitRespondConfirmHappyPath(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, dir, _ := newTestValidator(t, now)
	ctx := context.Background()

	alice := registerIdentity(t, dir, "alice")
	bob := registerIdentity(t, dir, "bob")

	initResp, verr := v.Init(ctx, alice.userID, signedInit(t, alice, bob.userID, now.UnixMilli()))
	require.Nil(t, verr)
	require.NotEmpty(t, initResp.SessionID)

	view, verr := v.GetSession(ctx, alice.userID, initResp.SessionID)
	require.Nil(t, verr)
	assert.Equal(t, "Initiated", view.Status)

	respResp, verr := v.Respond(ctx, bob.userID, signedRespond(t, bob, initResp.SessionID, now.UnixMilli()))
	require.Nil(t, verr)
	assert.Equal(t, initResp.SessionID, respResp.SessionID)
	assert.NotEmpty(t, respResp.InitiatorPublicKey)
	assert.NotEmpty(t, respResp.InitiatorNonce)

	// The initiator recovers the responder's ephemeral material from
	// GetSession rather than a second copy of RespondResponse.
	viewAfterRespond, verr := v.GetSession(ctx, alice.userID, initResp.SessionID)
	require.Nil(t, verr)
	assert.Equal(t, respResp.InitiatorPublicKey, viewAfterRespond.InitiatorPublicKey)
	assert.NotEmpty(t, viewAfterRespond.ResponderPublicKey)
	assert.NotEmpty(t, viewAfterRespond.ResponderNonce)

	confirmA, verr := v.Confirm(ctx, alice.userID, ConfirmRequest{SessionID: initResp.SessionID, Confirmation: b64([]byte("tag-a")), IsInitiator: true})
	require.Nil(t, verr)
	assert.Equal(t, "Confirmed", confirmA.Status)

	viewAfterConfirmA, verr := v.GetSession(ctx, bob.userID, initResp.SessionID)
	require.Nil(t, verr)
	assert.Equal(t, b64([]byte("tag-a")), viewAfterConfirmA.InitiatorConfirmation)
	assert.Empty(t, viewAfterConfirmA.ResponderConfirmation)

	confirmB, verr := v.Confirm(ctx, bob.userID, ConfirmRequest{SessionID: initResp.SessionID, Confirmation: b64([]byte("tag-b")), IsInitiator: false})
	require.Nil(t, verr)
	assert.Equal(t, "Completed", confirmB.Status)

	status, verr := v.GetStatus(ctx, bob.userID, initResp.SessionID)
	require.Nil(t, verr)
	assert.Equal(t, "Completed", status.Status)

	viewAfterConfirmB, verr := v.GetSession(ctx, alice.userID, initResp.SessionID)
	require.Nil(t, verr)
	assert.Equal(t, b64([]byte("tag-a")), viewAfterConfirmB.InitiatorConfirmation)
	assert.Equal(t, b64([]byte("tag-b")), viewAfterConfirmB.ResponderConfirmation)
}

func TestInitRejectsStaleTimestamp(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, dir, _ := newTestValidator(t, now)
	ctx := context.Background()

	alice := registerIdentity(t, dir, "alice")
	bob := registerIdentity(t, dir, "bob")

	req := signedInit(t, alice, bob.userID, now.Add(-10*time.Minute).UnixMilli())
	_, verr := v.Init(ctx, alice.userID, req)
	require.NotNil(t, verr)
	assert.Equal(t, CodeTimestampExpired, verr.Code)
}

func TestInitRejectsForgedSignature(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, dir, _ := newTestValidator(t, now)
	ctx := context.Background()

	alice := registerIdentity(t, dir, "alice")
	bob := registerIdentity(t, dir, "bob")

	req := signedInit(t, alice, bob.userID, now.UnixMilli())
	req.Signature = b64([]byte("not-a-real-signature"))

	_, verr := v.Init(ctx, alice.userID, req)
	require.NotNil(t, verr)
	assert.Equal(t, CodeInvalidSignature, verr.Code)
}

func TestInitRejectsUnknownResponder(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, dir, _ := newTestValidator(t, now)
	ctx := context.Background()

	alice := registerIdentity(t, dir, "alice")

	req := signedInit(t, alice, "ghost", now.UnixMilli())
	_, verr := v.Init(ctx, alice.userID, req)
	require.NotNil(t, verr)
	assert.Equal(t, CodeUserNotFound, verr.Code)
}

func TestRespondRejectsWrongCaller(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, dir, _ := newTestValidator(t, now)
	ctx := context.Background()

	alice := registerIdentity(t, dir, "alice")
	bob := registerIdentity(t, dir, "bob")
	mallory := registerIdentity(t, dir, "mallory")

	initResp, verr := v.Init(ctx, alice.userID, signedInit(t, alice, bob.userID, now.UnixMilli()))
	require.Nil(t, verr)

	_, verr = v.Respond(ctx, mallory.userID, signedRespond(t, mallory, initResp.SessionID, now.UnixMilli()))
	require.NotNil(t, verr)
	assert.Equal(t, CodeUnauthorized, verr.Code)

	view, verr := v.GetSession(ctx, alice.userID, initResp.SessionID)
	require.Nil(t, verr)
	assert.Equal(t, "Initiated", view.Status)
}

func TestRespondRejectsExpiredSession(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, dir, fc := newTestValidator(t, now)
	ctx := context.Background()

	alice := registerIdentity(t, dir, "alice")
	bob := registerIdentity(t, dir, "bob")

	initResp, verr := v.Init(ctx, alice.userID, signedInit(t, alice, bob.userID, now.UnixMilli()))
	require.Nil(t, verr)

	fc.Advance(6 * time.Minute)
	req := signedRespond(t, bob, initResp.SessionID, fc.Now().UnixMilli())
	_, verr = v.Respond(ctx, bob.userID, req)
	require.NotNil(t, verr)
	assert.Equal(t, CodeSessionExpired, verr.Code)

	status, verr := v.GetStatus(ctx, alice.userID, initResp.SessionID)
	require.Nil(t, verr)
	assert.Equal(t, "Expired", status.Status)
}

func completeSession(t *testing.T, v *Validator, alice, bob identity, now time.Time) string {
	t.Helper()
	ctx := context.Background()

	initResp, verr := v.Init(ctx, alice.userID, signedInit(t, alice, bob.userID, now.UnixMilli()))
	require.Nil(t, verr)

	_, verr = v.Respond(ctx, bob.userID, signedRespond(t, bob, initResp.SessionID, now.UnixMilli()))
	require.Nil(t, verr)

	_, verr = v.Confirm(ctx, alice.userID, ConfirmRequest{SessionID: initResp.SessionID, Confirmation: b64([]byte("tag-a")), IsInitiator: true})
	require.Nil(t, verr)
	_, verr = v.Confirm(ctx, bob.userID, ConfirmRequest{SessionID: initResp.SessionID, Confirmation: b64([]byte("tag-b")), IsInitiator: false})
	require.Nil(t, verr)

	return initResp.SessionID
}

func TestMessageEnforcesStrictSequence(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, dir, _ := newTestValidator(t, now)
	ctx := context.Background()

	alice := registerIdentity(t, dir, "alice")
	bob := registerIdentity(t, dir, "bob")
	sessionID := completeSession(t, v, alice, bob, now)

	var callCount int
	send := func(from, to string, seq uint64) *Error {
		callCount++
		nonce := []byte(fmt.Sprintf("nonce-%02d-noncenoncenoncenonce", callCount))
		_, verr := v.Message(ctx, from, SendMessageRequest{
			To:             to,
			SessionID:      sessionID,
			Ciphertext:     b64([]byte("ct")),
			IV:             b64([]byte("iviviviviv12")),
			MessageType:    "text",
			SequenceNumber: seq,
			Nonce:          b64(nonce),
			Timestamp:      now.UnixMilli(),
		})
		return verr
	}

	require.Nil(t, send(alice.userID, bob.userID, 1))
	require.Nil(t, send(bob.userID, alice.userID, 1))

	verr := send(alice.userID, bob.userID, 1)
	require.NotNil(t, verr)
	assert.Equal(t, CodeReplayDetected, verr.Code)

	verr = send(alice.userID, bob.userID, 3)
	require.NotNil(t, verr)
	assert.Equal(t, CodeReplayDetected, verr.Code)

	require.Nil(t, send(alice.userID, bob.userID, 2))

	convo, cerr := v.ListConversation(ctx, alice.userID, bob.userID)
	require.Nil(t, cerr)
	assert.Len(t, convo, 3)
}

func TestMessageRejectsOversizedPayload(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, dir, _ := newTestValidator(t, now)
	ctx := context.Background()

	alice := registerIdentity(t, dir, "alice")
	bob := registerIdentity(t, dir, "bob")
	sessionID := completeSession(t, v, alice, bob, now)

	huge := make([]byte, 300*1024)
	_, verr := v.Message(ctx, alice.userID, SendMessageRequest{
		To:             bob.userID,
		SessionID:      sessionID,
		Ciphertext:     b64(huge),
		IV:             b64([]byte("iviviviviv12")),
		MessageType:    "text",
		SequenceNumber: 1,
		Nonce:          b64([]byte("noncenoncenoncenoncenoncenonce12")),
		Timestamp:      now.UnixMilli(),
	})
	require.NotNil(t, verr)
	assert.Equal(t, CodeMessageTooLarge, verr.Code)
}

func TestMessageRejectsNonParty(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, dir, _ := newTestValidator(t, now)
	ctx := context.Background()

	alice := registerIdentity(t, dir, "alice")
	bob := registerIdentity(t, dir, "bob")
	_ = registerIdentity(t, dir, "mallory")
	sessionID := completeSession(t, v, alice, bob, now)

	_, verr := v.Message(ctx, "mallory", SendMessageRequest{
		To:             bob.userID,
		SessionID:      sessionID,
		Ciphertext:     b64([]byte("ct")),
		IV:             b64([]byte("iviviviviv12")),
		MessageType:    "text",
		SequenceNumber: 1,
		Nonce:          b64([]byte("noncenoncenoncenoncenoncenonce12")),
		Timestamp:      now.UnixMilli(),
	})
	require.NotNil(t, verr)
	assert.Equal(t, CodeUnauthorized, verr.Code)
}

func TestListPendingReturnsInitiatedForResponder(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, dir, _ := newTestValidator(t, now)
	ctx := context.Background()

	alice := registerIdentity(t, dir, "alice")
	bob := registerIdentity(t, dir, "bob")

	initResp, verr := v.Init(ctx, alice.userID, signedInit(t, alice, bob.userID, now.UnixMilli()))
	require.Nil(t, verr)

	pending, perr := v.ListPending(ctx, bob.userID)
	require.Nil(t, perr)
	require.Len(t, pending, 1)
	assert.Equal(t, initResp.SessionID, pending[0].SessionID)
	assert.Equal(t, alice.userID, pending[0].InitiatorID)
}
