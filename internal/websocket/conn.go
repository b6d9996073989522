package websocket

import "pongrelay/pkg/types"

// Conn is what the rest of the system sees of a client connection: an opaque
// identifier and a thread-safe JSON writer.
type Conn interface {
	// ID returns the connection's opaque identifier.
	ID() string

	// WriteJSON sends a JSON message to the client (thread-safe).
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its resources. Idempotent.
	Close() error
}

// EventSink receives decoded inbound events and transport-level disconnect
// notices. Implemented by the hub; declared here so the transport layer does
// not import it.
type EventSink interface {
	Submit(conn Conn, event *types.Event) error
	SubmitDisconnect(connID string) error
}
