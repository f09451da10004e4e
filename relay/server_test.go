package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/securemsg/audit"
	"github.com/sage-x-project/securemsg/clock"
	"github.com/sage-x-project/securemsg/directory"
	"github.com/sage-x-project/securemsg/handshake"
	"github.com/sage-x-project/securemsg/ledger/memledger"
)

// tokenAuthenticator treats the bearer token as the caller id verbatim,
// the minimal BearerAuthenticator a test harness needs.
type tokenAuthenticator struct{}

func (tokenAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", newError(CodeUnauthorized, "empty token")
	}
	return token, nil
}

func newTestServer(t *testing.T, now time.Time) (*httptest.Server, identity, identity) {
	t.Helper()
	store := memledger.New(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	dir := directory.NewMemoryDirectory()
	alice := registerIdentity(t, dir, "alice")
	bob := registerIdentity(t, dir, "bob")

	fixedClock := clock.NewFixed(now)
	engine := handshake.NewEngine(store, fixedClock)
	v := NewValidator(store, dir, engine, audit.NewMemorySink(), fixedClock)
	t.Cleanup(v.Close)

	srv := httptest.NewServer(NewServer(v, tokenAuthenticator{}))
	return srv, alice, bob
}

func doJSON(t *testing.T, method, url, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestServerRejectsMissingBearerToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	srv, _, _ := newTestServer(t, now)
	defer srv.Close()

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/keys/exchange/pending", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, body["code"])
}

func TestServerInitiateThenPendingThenStatus(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	srv, alice, bob := newTestServer(t, now)
	defer srv.Close()

	initReq := signedInit(t, alice, bob.userID, now.UnixMilli())
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/keys/exchange/initiate", alice.userID, initReq)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionID, _ := body["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/keys/exchange/pending", bob.userID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, statusBody := doJSON(t, http.MethodGet, srv.URL+"/keys/exchange/status/"+url.PathEscape(sessionID), alice.userID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Initiated", statusBody["status"])
}

func TestServerInitiateWithForgedSignatureIsBadRequest(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	srv, alice, bob := newTestServer(t, now)
	defer srv.Close()

	initReq := signedInit(t, alice, bob.userID, now.UnixMilli())
	initReq.Signature = b64([]byte("garbage"))

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/keys/exchange/initiate", alice.userID, initReq)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(CodeInvalidSignature), body["code"])
}
