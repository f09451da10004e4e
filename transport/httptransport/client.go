// Package httptransport is the plain net/http Transport implementation
// used by the reference CLI, grounded on the teacher's
// pkg/agent/transport/http client/server pair (no router framework, same
// choice the teacher itself made for this concern).
package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a Transport backed by an http.Client posting JSON bodies to
// baseURL+to. Token, when set, is sent as a bearer credential on every
// request — the relay's authentication step (spec.md §4.4 item 1) rejects
// anything else.
type Client struct {
	baseURL    string
	httpClient *http.Client
	Token      string
}

// NewClient returns a Client posting to baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithHTTPClient allows overriding transport/TLS/timeout config.
func NewClientWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// WithToken sets the bearer token attached to every subsequent request and
// returns c for chaining.
func (c *Client) WithToken(token string) *Client {
	c.Token = token
	return c
}

func (c *Client) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

// Send implements transport.Transport.
func (c *Client) Send(ctx context.Context, to string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+to, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httptransport: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httptransport: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httptransport: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return respBody, &StatusError{Code: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

// Get issues a GET and returns the raw response body, for the read-only
// session/status/pending/conversation endpoints that have no request body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("httptransport: build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httptransport: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httptransport: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return respBody, &StatusError{Code: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

// StatusError carries the HTTP status and body of a non-2xx response so
// callers can inspect the relay's error taxonomy code in the JSON body.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httptransport: status %d: %s", e.Code, string(e.Body))
}
