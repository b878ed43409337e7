package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strayware/pawlink/transport"
)

// Default timeouts for cloud communication.
const (
	// defaultRequestTimeout bounds one-shot REST/GraphQL calls.
	defaultRequestTimeout = 30 * time.Second

	// defaultHandshakeTimeout bounds the WebSocket upgrade handshake.
	defaultHandshakeTimeout = 15 * time.Second

	// maxResponseBytes caps response bodies read into memory.
	maxResponseBytes = 4 << 20 // 4MB
)

// Config holds session credentials and optional overrides.
type Config struct {
	// Token is the bearer token used for every request and socket dial.
	Token string

	// UserID identifies the account on per-user REST endpoints.
	UserID string

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// HTTPClient overrides the default HTTP client (tests, custom TLS).
	HTTPClient *http.Client
}

// Session is the shared network session for one account.
//
// Thread Safety: all methods are safe for concurrent use; the session is
// immutable after construction.
type Session struct {
	http      *http.Client
	dialer    *websocket.Dialer
	token     string
	userID    string
	userAgent string
}

// Ensure Session satisfies the transport socket factory contract.
var _ transport.Dialer = (*Session)(nil)

// New creates a session from credentials.
func New(cfg Config) (*Session, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "pawlink-go"
	}

	return &Session{
		http:      client,
		dialer:    &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		token:     cfg.Token,
		userID:    cfg.UserID,
		userAgent: ua,
	}, nil
}

// UserID returns the account identifier supplied at construction.
func (s *Session) UserID() string {
	return s.userID
}

// Header returns the authorisation headers applied to every request.
// Callers receive a fresh copy and may extend it.
func (s *Session) Header() http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+s.token)
	h.Set("User-Agent", s.userAgent)
	return h
}

// Get performs a GET request and decodes the JSON response into out.
func (s *Session) Get(ctx context.Context, url string, out any) error {
	return s.do(ctx, http.MethodGet, url, nil, out)
}

// PostJSON performs a POST request with a JSON body and decodes the JSON
// response into out. out may be nil for fire-and-forget commands.
func (s *Session) PostJSON(ctx context.Context, url string, body, out any) error {
	return s.do(ctx, http.MethodPost, url, body, out)
}

// graphQLRequest is the wire shape of a GraphQL POST.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLResponse is the standard GraphQL response envelope.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GraphQL posts a query with variables and decodes the data field into out.
// A response carrying GraphQL errors fails with ErrGraphQL even when the
// HTTP status is 200.
func (s *Session) GraphQL(ctx context.Context, url, query string, vars map[string]any, out any) error {
	var resp graphQLResponse
	if err := s.do(ctx, http.MethodPost, url, graphQLRequest{Query: query, Variables: vars}, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrGraphQL, resp.Errors[0].Message)
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("decoding graphql data: %w", err)
		}
	}
	return nil
}

// DialContext opens a WebSocket through the session, injecting the
// session's authorisation headers, and wraps it as a transport.Socket.
func (s *Session) DialContext(ctx context.Context, url string, header http.Header) (transport.Socket, error) {
	h := s.Header()
	for k, vs := range header {
		for _, v := range vs {
			h.Set(k, v)
		}
	}

	conn, resp, err := s.dialer.DialContext(ctx, url, h)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // Handshake response body is advisory
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return transport.NewSocket(conn), nil
}

// do performs one HTTP round trip with auth headers and JSON codec.
func (s *Session) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header = s.Header()
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read side already consumed

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s returned %d", ErrUnauthorized, method, url, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s %s returned %d", ErrRequestFailed, method, url, resp.StatusCode)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
