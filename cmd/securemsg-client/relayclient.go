package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sage-x-project/securemsg/transport/httptransport"
)

func newRelayClient() *httptransport.Client {
	return httptransport.NewClient(flagRelayURL).WithToken(bearerToken())
}

// post sends body as JSON to path and decodes the response into out.
func post(ctx context.Context, c *httptransport.Client, path string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	respBody, err := c.Send(ctx, path, reqBody)
	if err != nil {
		return relayErr(err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// get issues a GET against path and decodes the response into out.
func get(ctx context.Context, c *httptransport.Client, path string, out any) error {
	respBody, err := c.Get(ctx, path)
	if err != nil {
		return relayErr(err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// relayErr surfaces the relay's {error, code} body on a non-2xx response
// instead of the raw transport error.
func relayErr(err error) error {
	statusErr, ok := err.(*httptransport.StatusError)
	if !ok {
		return err
	}
	var coded struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if jsonErr := json.Unmarshal(statusErr.Body, &coded); jsonErr == nil && coded.Code != "" {
		return fmt.Errorf("relay: %s: %s", coded.Code, coded.Error)
	}
	return err
}
