// Package transport keeps remote-backed device objects synchronised with the
// vendor cloud across heterogeneous delivery channels.
//
// Two concrete strategies are provided:
//
//   - Monitor maintains one shared WebSocket connection per device class,
//     fanning inbound messages out to every registered device and
//     reconnecting with exponential backoff on transport failure.
//   - Poller keeps a single device fresh by periodically calling its
//     Refresh method, for device classes with no push channel.
//
// All wire details (connection URL, handshake, subscribe/unsubscribe message
// shapes, message routing) are isolated in a Protocol value supplied per
// device class, so one Monitor implementation serves every push-capable
// generation.
//
// # Failure Semantics
//
// Nothing in this package surfaces steady-state failures to callers of
// Start/Stop. Socket-level errors are absorbed into the reconnect/backoff
// loop; a failing message handler or refresh call is isolated per device and
// logged. The only externally observable failure mode is staleness, visible
// through LastReceived.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Registration mutations
// and connection teardown decisions happen under an internal lock; blocking
// waits for loop termination happen outside it, so Start and Stop for
// different devices never deadlock each other.
package transport
