package httptransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendRoundTrip(t *testing.T) {
	mux := NewMux()
	mux.Handle("/echo", func(r *http.Request) (int, any, error) {
		return http.StatusOK, map[string]string{"ok": "true"}, nil
	})
	mux.Handle("/fail", func(r *http.Request) (int, any, error) {
		return http.StatusConflict, nil, &CodedError{Code: "ReplayDetected", Message: "sequence mismatch"}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL)

	body, err := client.Send(context.Background(), "/echo", []byte(`{}`))
	require.NoError(t, err)
	assert.Contains(t, string(body), "ok")

	_, err = client.Send(context.Background(), "/fail", []byte(`{}`))
	require.Error(t, err)
	statusErr, ok := err.(*StatusError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, statusErr.Code)
	assert.Contains(t, string(statusErr.Body), "ReplayDetected")
}

func TestClientGet(t *testing.T) {
	mux := NewMux()
	mux.Handle("/status/s1", func(r *http.Request) (int, any, error) {
		return http.StatusOK, map[string]string{"status": "Confirmed"}, nil
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL)
	body, err := client.Get(context.Background(), "/status/s1")
	require.NoError(t, err)
	assert.Contains(t, string(body), "Confirmed")
}
