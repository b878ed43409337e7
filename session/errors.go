package session

import "errors"

// Domain-specific errors for session operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMissingToken is returned when a session is created without credentials.
	ErrMissingToken = errors.New("session: access token is required")

	// ErrUnauthorized is returned when the cloud rejects the credentials.
	ErrUnauthorized = errors.New("session: unauthorized")

	// ErrRequestFailed is returned for any other non-2xx response.
	ErrRequestFailed = errors.New("session: request failed")

	// ErrGraphQL is returned when a GraphQL response carries errors.
	ErrGraphQL = errors.New("session: graphql request returned errors")
)
