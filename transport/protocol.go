package transport

import (
	"context"
	"net/http"
)

// ConnConfig describes how to open one shared socket for a device class.
// It is produced by a Protocol's Config factory from an arbitrary
// representative device, since all devices of a class share one connection
// and one set of connection parameters.
type ConnConfig struct {
	// URL is the WebSocket endpoint (ws:// or wss://).
	URL string

	// Header carries connection headers (typically authorisation).
	Header http.Header

	// Handshake, if non-nil, is sent as a JSON frame immediately after the
	// socket opens and before any per-device subscriptions.
	Handshake any
}

// Protocol isolates all device-class-specific wire details from the generic
// Monitor logic. It is a pure configuration value; every field except Config
// is optional.
type Protocol struct {
	// Config builds the connection parameters for the class. It must be
	// safely callable with any currently registered device as the
	// representative. An error here aborts the current connection attempt
	// and is retried with backoff like any transport failure.
	Config func(d Device) (ConnConfig, error)

	// Subscribe registers one device on an open socket. It is invoked once
	// per device at connection time and once for each device joining
	// mid-session. Implementations must be idempotent: the monitor may
	// re-invoke Subscribe for an already-subscribed device on reconnect.
	Subscribe func(ctx context.Context, d Device, s Socket) error

	// Unsubscribe removes one device from an open socket. Best-effort:
	// failures are logged, never raised.
	Unsubscribe func(ctx context.Context, d Device, s Socket) error

	// Handle is invoked once per registered device for every inbound text
	// message. Implementations decide whether the message is relevant to
	// that specific device (typically by matching an embedded identifier)
	// and update it if so. Errors and panics are isolated per device.
	Handle func(d Device, message []byte) error
}

// Socket is the minimal surface a Monitor needs from an open connection.
// The gorilla-backed implementation lives in this package; tests and the
// session package supply their own.
type Socket interface {
	// ReadMessage blocks until the next inbound text message, the socket
	// closes, or an error occurs.
	ReadMessage() ([]byte, error)

	// WriteJSON marshals v and sends it as a single text frame.
	// Safe for concurrent use.
	WriteJSON(v any) error

	// Close tears the connection down, unblocking any pending read.
	Close() error
}

// Dialer opens sockets through the orchestrator's shared network session.
// Transports never own the session itself, only the sockets they open.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (Socket, error)
}
