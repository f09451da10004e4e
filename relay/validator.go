package relay

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/sage-x-project/securemsg/audit"
	"github.com/sage-x-project/securemsg/channel"
	"github.com/sage-x-project/securemsg/clock"
	"github.com/sage-x-project/securemsg/core/message/nonce"
	"github.com/sage-x-project/securemsg/crypto/keys"
	"github.com/sage-x-project/securemsg/directory"
	"github.com/sage-x-project/securemsg/handshake"
	"github.com/sage-x-project/securemsg/ledger"
)

// Validator implements the gating pipeline of spec.md §4.4: authentication
// (performed by its caller and passed in as callerID) → field presence →
// freshness → signature → status gate → expiry → sequence. It is the only
// place that touches ledger.LedgerStore for a handshake transition or a
// channel message; handshake.Engine itself performs no gating.
//
// The relay never holds a derived session key (spec.md §5 "Secret
// handling"), so it cannot evaluate a Confirm's HMAC tag: confirmation
// mismatch detection is necessarily client-side. Validator.Confirm only
// stores the opaque tag and drives the ledger's status machine; see
// DESIGN.md for the full rationale.
type Validator struct {
	Ledger    ledger.LedgerStore
	Directory directory.DirectoryLookup
	Engine    *handshake.Engine
	Audit     audit.Sink
	Clock     clock.Clock
	Freshness time.Duration

	// Nonces tracks the handshake and channel-message nonces this relay has
	// already accepted, within the freshness window, so a captured request
	// cannot be replayed verbatim after the fact (spec.md §4.4 item 3).
	Nonces *nonce.Manager

	locks *sessionLocks
}

// NewValidator wires a Validator from its collaborators, defaulting
// Freshness to handshake.DefaultFreshnessWindow when zero.
func NewValidator(store ledger.LedgerStore, dir directory.DirectoryLookup, engine *handshake.Engine, sink audit.Sink, clk clock.Clock) *Validator {
	return &Validator{
		Ledger:    store,
		Directory: dir,
		Engine:    engine,
		Audit:     sink,
		Clock:     clk,
		Freshness: handshake.DefaultFreshnessWindow,
		Nonces:    nonce.NewManager(handshake.DefaultFreshnessWindow, time.Minute),
		locks:     newSessionLocks(),
	}
}

// Close stops the nonce manager's background eviction loop.
func (v *Validator) Close() {
	v.Nonces.Close()
}

// checkNonceReplay rejects a nonce this relay has already seen within the
// freshness window and marks it used otherwise. The same helper guards
// handshake Init/Respond nonces and channel-message replay canaries: both
// are one-time-use values scoped by caller and purpose so two different
// callers (or an Init and a Message) never collide on the same raw bytes.
func (v *Validator) checkNonceReplay(scope, callerID string, raw []byte) *Error {
	key := scope + "|" + callerID + "|" + base64.StdEncoding.EncodeToString(raw)
	if v.Nonces.IsNonceUsed(key) {
		return newError(CodeReplayDetected, "nonce already used")
	}
	v.Nonces.MarkNonceUsed(key)
	return nil
}

func (v *Validator) freshness() time.Duration {
	if v.Freshness <= 0 {
		return handshake.DefaultFreshnessWindow
	}
	return v.Freshness
}

func (v *Validator) audit(ctx context.Context, eventType, sessionID, callerID, reason string) {
	if v.Audit == nil {
		return
	}
	ip, _ := ctx.Value(remoteAddrKey{}).(string)
	_ = v.Audit.Record(ctx, audit.Entry{
		EventType: eventType,
		SessionID: sessionID,
		CallerID:  callerID,
		Reason:    reason,
		IP:        ip,
		Timestamp: v.Clock.Now(),
	})
}

func (v *Validator) fail(ctx context.Context, eventType, sessionID, callerID string, err *Error) *Error {
	v.audit(ctx, eventType, sessionID, callerID, err.Error())
	return err
}

// remoteAddrKey is set by Server before delegating to Validator, so audit
// entries can carry the caller's IP without threading it through every
// method signature.
type remoteAddrKey struct{}

func withRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey{}, addr)
}

func decodeB64Field(name, s string) ([]byte, *Error) {
	if s == "" {
		return nil, newError(CodeMissingFields, "%s is required", name)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, newError(CodeInvalidEncoding, "%s: %v", name, err)
	}
	return b, nil
}

func (v *Validator) checkFreshness(timestampMillis int64) *Error {
	if timestampMillis == 0 {
		return newError(CodeMissingFields, "timestamp is required")
	}
	ts := time.UnixMilli(timestampMillis)
	now := v.Clock.Now()
	drift := now.Sub(ts)
	if drift < 0 {
		drift = -drift
	}
	if drift > v.freshness() {
		return newError(CodeTimestampExpired, "timestamp %d outside %s freshness window", timestampMillis, v.freshness())
	}
	return nil
}

// verifySigner fetches userID's identity and verifies signature over
// payload with its long-term signing key. directory.ErrUserNotFound maps
// to NoSigningKey here, since this is always checking the signer's own
// registration, not an unrelated peer lookup.
func (v *Validator) verifySigner(ctx context.Context, userID string, payload, signature []byte) *Error {
	id, err := v.Directory.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return newError(CodeNoSigningKey, "no signing key registered for %s", userID)
		}
		return newError(CodeInternal, "directory lookup: %v", err)
	}
	verifier, err := keys.NewPublicSigningKey(id.SigningKey)
	if err != nil {
		return newError(CodeInternal, "load signing key: %v", err)
	}
	if err := verifier.Verify(payload, signature); err != nil {
		return newError(CodeInvalidSignature, "signature verification failed")
	}
	return nil
}

func (v *Validator) checkPeerExists(ctx context.Context, userID string) *Error {
	if _, err := v.Directory.Lookup(ctx, userID); err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return newError(CodeUserNotFound, "%s is not registered", userID)
		}
		return newError(CodeInternal, "directory lookup: %v", err)
	}
	return nil
}

// Init runs the field-presence, freshness, signature and user-existence
// gates for a key-exchange initiation and, on success, mints a new
// session via Engine.Init. callerID becomes the session's initiator_id.
func (v *Validator) Init(ctx context.Context, callerID string, req InitiateRequest) (InitiateResponse, *Error) {
	if req.ResponderID == "" {
		return InitiateResponse{}, v.fail(ctx, "init", "", callerID, newError(CodeMissingFields, "responderId is required"))
	}
	ephPub, gerr := decodeB64Field("ephemeralPublic", req.EphemeralPublic)
	if gerr != nil {
		return InitiateResponse{}, v.fail(ctx, "init", "", callerID, gerr)
	}
	initNonce, gerr := decodeB64Field("nonce", req.Nonce)
	if gerr != nil {
		return InitiateResponse{}, v.fail(ctx, "init", "", callerID, gerr)
	}
	sig, gerr := decodeB64Field("signature", req.Signature)
	if gerr != nil {
		return InitiateResponse{}, v.fail(ctx, "init", "", callerID, gerr)
	}

	if gerr := v.checkFreshness(req.Timestamp); gerr != nil {
		return InitiateResponse{}, v.fail(ctx, "init", "", callerID, gerr)
	}
	if gerr := v.checkNonceReplay("init", callerID, initNonce); gerr != nil {
		return InitiateResponse{}, v.fail(ctx, "init", "", callerID, gerr)
	}

	payload, err := handshake.InitPayload(req.ResponderID, ephPub, initNonce, req.Timestamp)
	if err != nil {
		return InitiateResponse{}, v.fail(ctx, "init", "", callerID, newError(CodeInternal, "build payload: %v", err))
	}
	if gerr := v.verifySigner(ctx, callerID, payload, sig); gerr != nil {
		return InitiateResponse{}, v.fail(ctx, "init", "", callerID, gerr)
	}
	if gerr := v.checkPeerExists(ctx, req.ResponderID); gerr != nil {
		return InitiateResponse{}, v.fail(ctx, "init", "", callerID, gerr)
	}

	sessionID, err := v.Engine.Init(ctx, handshake.InitRequest{
		InitiatorID:     callerID,
		ResponderID:     req.ResponderID,
		EphemeralPublic: ephPub,
		Nonce:           initNonce,
		Signature:       sig,
		TimestampMillis: req.Timestamp,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrSessionExists) {
			return InitiateResponse{}, v.fail(ctx, "init", "", callerID, newError(CodeInternal, "session id collision"))
		}
		return InitiateResponse{}, v.fail(ctx, "init", "", callerID, newError(CodeInternal, "create handshake: %v", err))
	}
	v.audit(ctx, "init", sessionID, callerID, "ok")
	return InitiateResponse{SessionID: sessionID}, nil
}

// loadRecord fetches sessionID's record, returning SessionNotFound when
// it is missing. Party/role authorization is the caller's responsibility.
func (v *Validator) loadRecord(ctx context.Context, sessionID string) (*ledger.HandshakeRecord, *Error) {
	rec, err := v.Ledger.GetHandshake(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ledger.ErrSessionNotFound) {
			return nil, newError(CodeSessionNotFound, "no session %s", sessionID)
		}
		return nil, newError(CodeInternal, "get handshake: %v", err)
	}
	return rec, nil
}

// checkExpiry transitions rec to Expired and returns SessionExpired if
// rec's deadline has passed. It does not evaluate terminal statuses.
func (v *Validator) checkExpiry(ctx context.Context, rec *ledger.HandshakeRecord) *Error {
	if rec.IsTerminal() || rec.Status == ledger.StatusCompleted {
		return nil
	}
	if !v.Clock.Now().After(rec.ExpiresAt) {
		return nil
	}
	_ = v.Ledger.UpdateHandshake(ctx, rec.SessionID, func(r *ledger.HandshakeRecord) error {
		if r.Status != ledger.StatusCompleted && !r.IsTerminal() {
			r.Status = ledger.StatusExpired
		}
		return nil
	})
	return newError(CodeSessionExpired, "session %s expired", rec.SessionID)
}

// Respond runs the authorization, field-presence, freshness, signature,
// status and expiry gates for a key-exchange response.
func (v *Validator) Respond(ctx context.Context, callerID string, req RespondRequest) (RespondResponse, *Error) {
	if req.SessionID == "" {
		return RespondResponse{}, v.fail(ctx, "respond", "", callerID, newError(CodeMissingFields, "sessionId is required"))
	}

	unlock := v.locks.Lock(req.SessionID)
	defer unlock()

	rec, gerr := v.loadRecord(ctx, req.SessionID)
	if gerr != nil {
		return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, gerr)
	}
	if callerID != rec.ResponderID {
		return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, newError(CodeUnauthorized, "%s is not the responder", callerID))
	}

	ephPub, gerr := decodeB64Field("ephemeralPublic", req.EphemeralPublic)
	if gerr != nil {
		return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, gerr)
	}
	respNonce, gerr := decodeB64Field("nonce", req.Nonce)
	if gerr != nil {
		return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, gerr)
	}
	sig, gerr := decodeB64Field("signature", req.Signature)
	if gerr != nil {
		return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, gerr)
	}

	if gerr := v.checkFreshness(req.Timestamp); gerr != nil {
		return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, gerr)
	}
	if gerr := v.checkNonceReplay("respond", callerID, respNonce); gerr != nil {
		return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, gerr)
	}

	payload, err := handshake.RespondPayload(req.SessionID, ephPub, respNonce, req.Timestamp)
	if err != nil {
		return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, newError(CodeInternal, "build payload: %v", err))
	}
	if gerr := v.verifySigner(ctx, callerID, payload, sig); gerr != nil {
		return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, gerr)
	}

	if rec.Status != ledger.StatusInitiated {
		return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, newError(CodeInvalidStatus, "session is %s, not Initiated", rec.Status))
	}
	if gerr := v.checkExpiry(ctx, rec); gerr != nil {
		return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, gerr)
	}

	result, err := v.Engine.Respond(ctx, handshake.RespondRequest{
		SessionID:       req.SessionID,
		EphemeralPublic: ephPub,
		Nonce:           respNonce,
		Signature:       sig,
		TimestampMillis: req.Timestamp,
	})
	if err != nil {
		if errors.Is(err, handshake.ErrInvalidStatus) {
			return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, newError(CodeInvalidStatus, "concurrent transition won"))
		}
		return RespondResponse{}, v.fail(ctx, "respond", req.SessionID, callerID, newError(CodeInternal, "respond: %v", err))
	}
	v.audit(ctx, "respond", req.SessionID, callerID, "ok")
	return RespondResponse{
		SessionID:          result.SessionID,
		InitiatorPublicKey: base64.StdEncoding.EncodeToString(result.InitiatorPublicKey),
		InitiatorNonce:     base64.StdEncoding.EncodeToString(result.InitiatorNonce),
	}, nil
}

// Confirm runs the authorization, field-presence and status gates for a
// confirmation tag. It cannot verify the tag's correctness (the relay
// never holds K or the raw shared secret); it only records it and drives
// the status machine. See the Validator doc comment.
func (v *Validator) Confirm(ctx context.Context, callerID string, req ConfirmRequest) (ConfirmResponse, *Error) {
	if req.SessionID == "" {
		return ConfirmResponse{}, v.fail(ctx, "confirm", "", callerID, newError(CodeMissingFields, "sessionId is required"))
	}
	confirmation, gerr := decodeB64Field("confirmation", req.Confirmation)
	if gerr != nil {
		return ConfirmResponse{}, v.fail(ctx, "confirm", req.SessionID, callerID, gerr)
	}

	unlock := v.locks.Lock(req.SessionID)
	defer unlock()

	rec, gerr := v.loadRecord(ctx, req.SessionID)
	if gerr != nil {
		return ConfirmResponse{}, v.fail(ctx, "confirm", req.SessionID, callerID, gerr)
	}

	expected := rec.ResponderID
	if req.IsInitiator {
		expected = rec.InitiatorID
	}
	if callerID != expected {
		return ConfirmResponse{}, v.fail(ctx, "confirm", req.SessionID, callerID, newError(CodeUnauthorized, "%s is not the %s", callerID, roleName(req.IsInitiator)))
	}

	if rec.Status != ledger.StatusResponded && rec.Status != ledger.StatusConfirmed {
		return ConfirmResponse{}, v.fail(ctx, "confirm", req.SessionID, callerID, newError(CodeInvalidStatus, "session is %s", rec.Status))
	}
	if gerr := v.checkExpiry(ctx, rec); gerr != nil {
		return ConfirmResponse{}, v.fail(ctx, "confirm", req.SessionID, callerID, gerr)
	}

	status, err := v.Engine.Confirm(ctx, handshake.ConfirmRequest{
		SessionID:    req.SessionID,
		Confirmation: confirmation,
		IsInitiator:  req.IsInitiator,
	})
	if err != nil {
		if errors.Is(err, handshake.ErrInvalidStatus) {
			return ConfirmResponse{}, v.fail(ctx, "confirm", req.SessionID, callerID, newError(CodeInvalidStatus, "confirmation slot already set"))
		}
		return ConfirmResponse{}, v.fail(ctx, "confirm", req.SessionID, callerID, newError(CodeInternal, "confirm: %v", err))
	}
	v.audit(ctx, "confirm", req.SessionID, callerID, "ok")
	return ConfirmResponse{Status: string(status)}, nil
}

func roleName(isInitiator bool) string {
	if isInitiator {
		return "initiator"
	}
	return "responder"
}

// Message runs the field-presence, size-bound, freshness, status and
// per-direction sequence gates for a sealed channel message, then appends
// it to the ledger's message log.
func (v *Validator) Message(ctx context.Context, callerID string, req SendMessageRequest) (SendMessageResponse, *Error) {
	if req.To == "" || req.SessionID == "" || req.Ciphertext == "" || req.IV == "" || req.Nonce == "" {
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, newError(CodeMissingFields, "to, sessionId, ciphertext, iv and nonce are required"))
	}
	ciphertext, gerr := decodeB64Field("ciphertext", req.Ciphertext)
	if gerr != nil {
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, gerr)
	}
	iv, gerr := decodeB64Field("iv", req.IV)
	if gerr != nil {
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, gerr)
	}
	msgNonce, gerr := decodeB64Field("nonce", req.Nonce)
	if gerr != nil {
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, gerr)
	}
	if len(ciphertext)+len(iv) > channel.MaxCiphertextSize {
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, newError(CodeMessageTooLarge, "ciphertext+iv exceeds %d bytes", channel.MaxCiphertextSize))
	}
	if gerr := v.checkFreshness(req.Timestamp); gerr != nil {
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, gerr)
	}
	if gerr := v.checkNonceReplay("message", callerID, msgNonce); gerr != nil {
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, gerr)
	}

	unlock := v.locks.Lock(req.SessionID)
	defer unlock()

	rec, gerr := v.loadRecord(ctx, req.SessionID)
	if gerr != nil {
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, gerr)
	}

	var isInitiator bool
	switch callerID {
	case rec.InitiatorID:
		isInitiator = true
	case rec.ResponderID:
		isInitiator = false
	default:
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, newError(CodeUnauthorized, "%s is not a party to session %s", callerID, req.SessionID))
	}
	peer := rec.ResponderID
	if !isInitiator {
		peer = rec.InitiatorID
	}
	if req.To != peer {
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, newError(CodeUnauthorized, "to must be %s", peer))
	}
	if rec.Status != ledger.StatusCompleted {
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, newError(CodeInvalidStatus, "session is %s, not Completed", rec.Status))
	}

	messageType := ledger.MessageTypeText
	if req.MessageType == string(ledger.MessageTypeFile) {
		messageType = ledger.MessageTypeFile
	}

	now := v.Clock.Now()
	var expected uint64
	err := v.Ledger.UpdateHandshake(ctx, req.SessionID, func(r *ledger.HandshakeRecord) error {
		counter := &r.ResponderLastSequence
		if isInitiator {
			counter = &r.InitiatorLastSequence
		}
		expected = *counter + 1
		if req.SequenceNumber != expected {
			return errSequenceMismatch
		}
		*counter = req.SequenceNumber
		return nil
	})
	if err != nil {
		if errors.Is(err, errSequenceMismatch) {
			return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, newError(CodeReplayDetected, "expected sequence %d", expected))
		}
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, newError(CodeInternal, "update sequence: %v", err))
	}

	msg := &ledger.Message{
		ID:             newMessageID(callerID, req.SessionID, req.SequenceNumber),
		From:           callerID,
		To:             req.To,
		SessionID:      req.SessionID,
		Ciphertext:     ciphertext,
		IV:             iv,
		MessageType:    messageType,
		SequenceNumber: req.SequenceNumber,
		ServerTime:     now,
	}
	if err := v.Ledger.AppendMessage(ctx, msg); err != nil {
		return SendMessageResponse{}, v.fail(ctx, "message", req.SessionID, callerID, newError(CodeInternal, "append message: %v", err))
	}

	v.audit(ctx, "message", req.SessionID, callerID, "ok")
	return SendMessageResponse{MessageID: msg.ID, Timestamp: now.UnixMilli()}, nil
}

var errSequenceMismatch = errors.New("relay: sequence mismatch")

func newMessageID(callerID, sessionID string, seq uint64) string {
	return callerID + "|" + sessionID + "|" + strconv.FormatUint(seq, 10)
}

// GetSession returns sessionID's record as a SessionView, if callerID is a
// party to it.
func (v *Validator) GetSession(ctx context.Context, callerID, sessionID string) (SessionView, *Error) {
	rec, gerr := v.loadRecord(ctx, sessionID)
	if gerr != nil {
		return SessionView{}, gerr
	}
	if callerID != rec.InitiatorID && callerID != rec.ResponderID {
		return SessionView{}, newError(CodeUnauthorized, "%s is not a party to session %s", callerID, sessionID)
	}
	view := SessionView{
		SessionID:   rec.SessionID,
		InitiatorID: rec.InitiatorID,
		ResponderID: rec.ResponderID,
		Status:      string(rec.Status),
		CreatedAt:   rec.CreatedAt.UnixMilli(),
		ExpiresAt:   rec.ExpiresAt.UnixMilli(),
	}
	if len(rec.InitiatorEphemeralPub) > 0 {
		view.InitiatorPublicKey = base64.StdEncoding.EncodeToString(rec.InitiatorEphemeralPub)
		view.InitiatorNonce = base64.StdEncoding.EncodeToString(rec.InitiatorNonce)
	}
	if len(rec.ResponderEphemeralPub) > 0 {
		view.ResponderPublicKey = base64.StdEncoding.EncodeToString(rec.ResponderEphemeralPub)
		view.ResponderNonce = base64.StdEncoding.EncodeToString(rec.ResponderNonce)
	}
	if !rec.CompletedAt.IsZero() {
		view.CompletedAt = rec.CompletedAt.UnixMilli()
	}
	if len(rec.InitiatorConfirmation) > 0 {
		view.InitiatorConfirmation = base64.StdEncoding.EncodeToString(rec.InitiatorConfirmation)
	}
	if len(rec.ResponderConfirmation) > 0 {
		view.ResponderConfirmation = base64.StdEncoding.EncodeToString(rec.ResponderConfirmation)
	}
	return view, nil
}

// GetStatus returns sessionID's status, if callerID is a party to it.
func (v *Validator) GetStatus(ctx context.Context, callerID, sessionID string) (StatusView, *Error) {
	rec, gerr := v.loadRecord(ctx, sessionID)
	if gerr != nil {
		return StatusView{}, gerr
	}
	if callerID != rec.InitiatorID && callerID != rec.ResponderID {
		return StatusView{}, newError(CodeUnauthorized, "%s is not a party to session %s", callerID, sessionID)
	}
	return StatusView{Status: string(rec.Status)}, nil
}

// ListPending returns Initiated records addressed to callerID.
func (v *Validator) ListPending(ctx context.Context, callerID string) ([]PendingEntry, *Error) {
	recs, err := v.Ledger.ListPendingFor(ctx, callerID)
	if err != nil {
		return nil, newError(CodeInternal, "list pending: %v", err)
	}
	out := make([]PendingEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, PendingEntry{
			SessionID:   rec.SessionID,
			InitiatorID: rec.InitiatorID,
			CreatedAt:   rec.CreatedAt.UnixMilli(),
		})
	}
	return out, nil
}

// ListConversation returns the chronological ciphertext exchange between
// callerID and otherUserID.
func (v *Validator) ListConversation(ctx context.Context, callerID, otherUserID string) ([]ConversationMessage, *Error) {
	msgs, err := v.Ledger.ListConversation(ctx, callerID, otherUserID)
	if err != nil {
		return nil, newError(CodeInternal, "list conversation: %v", err)
	}
	out := make([]ConversationMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ConversationMessage{
			From:           m.From,
			To:             m.To,
			SessionID:      m.SessionID,
			Ciphertext:     base64.StdEncoding.EncodeToString(m.Ciphertext),
			IV:             base64.StdEncoding.EncodeToString(m.IV),
			MessageType:    string(m.MessageType),
			SequenceNumber: m.SequenceNumber,
			Timestamp:      m.ServerTime.UnixMilli(),
		})
	}
	return out, nil
}
