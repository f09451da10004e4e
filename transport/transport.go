// Package transport abstracts authenticated delivery of opaque JSON
// bodies between parties via the relay, generalizing the teacher's
// MessageTransport abstraction (which carried A2A/gRPC SecureMessage
// envelopes) down to the plain send/receive shape the handshake client
// and channel client need.
package transport

import "context"

// Transport sends body to the named recipient and returns whatever the
// relay responds with. "to" is a relay-side route, not a network address;
// httptransport resolves it to an HTTP endpoint.
type Transport interface {
	Send(ctx context.Context, to string, body []byte) ([]byte, error)
}
