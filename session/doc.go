// Package session provides the shared network session owned by an account.
//
// One Session carries the HTTP client, the WebSocket dialer and the bearer
// credentials for every device of an account. Devices use it for one-shot
// REST and GraphQL refresh calls; the transport layer uses it as the socket
// factory for shared WebSocket connections. Transports treat the session as
// a shared, read-only-during-use resource: they open and close sockets
// through it but never own or close the session itself.
package session
