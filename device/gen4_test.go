package device

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// captureSocket records frames written through the protocol hooks.
type captureSocket struct {
	writes []any
}

func (s *captureSocket) ReadMessage() ([]byte, error) { return nil, nil }
func (s *captureSocket) WriteJSON(v any) error {
	s.writes = append(s.writes, v)
	return nil
}
func (s *captureSocket) Close() error { return nil }

func TestGen4RefreshQueriesGraphQL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding graphql request: %v", err)
		}
		if req.Variables["serial"] != "G4-001" {
			t.Errorf("serial variable = %v, want G4-001", req.Variables["serial"])
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // Test response
			"data": map[string]any{
				"litterBox": map[string]any{
					"unitStatus":  "cleaning",
					"litterLevel": 61.5,
				},
			},
		})
	}))
	defer srv.Close()

	g := NewGen4(newTestSession(t), srv.URL, map[string]any{
		"serial": "G4-001",
		"name":   "Bedroom",
	}, nil)

	if err := g.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := g.UnitStatus(); got != "cleaning" {
		t.Errorf("UnitStatus = %q, want cleaning", got)
	}
	if got := g.LitterLevel(); got != 61.5 {
		t.Errorf("LitterLevel = %v, want 61.5", got)
	}
}

func TestGen4ProtocolConfigCarriesHandshake(t *testing.T) {
	proto := Gen4Protocol(newTestSession(t), "wss://updates.example/graphql")
	g := NewGen4(nil, "", map[string]any{"serial": "G4-001"}, nil)

	cfg, err := proto.Config(g)
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if cfg.URL != "wss://updates.example/graphql" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if got := cfg.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q", got)
	}
	hs, ok := cfg.Handshake.(map[string]any)
	if !ok || hs["type"] != "connection_init" {
		t.Errorf("Handshake = %v, want connection_init frame", cfg.Handshake)
	}
}

func TestGen4ProtocolSubscribeFrames(t *testing.T) {
	proto := Gen4Protocol(newTestSession(t), "wss://updates.example/graphql")
	g := NewGen4(nil, "", map[string]any{"serial": "G4-001"}, nil)
	sock := &captureSocket{}
	ctx := context.Background()

	if err := proto.Subscribe(ctx, g, sock); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := proto.Unsubscribe(ctx, g, sock); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	if len(sock.writes) != 2 {
		t.Fatalf("got %d frames, want 2", len(sock.writes))
	}
	start := sock.writes[0].(map[string]any)
	if start["id"] != "G4-001" || start["type"] != "start" {
		t.Errorf("start frame = %v", start)
	}
	payload, _ := start["payload"].(map[string]any) //nolint:errcheck // Asserted below
	if payload["query"] == "" {
		t.Error("start frame carries no subscription query")
	}
	stop := sock.writes[1].(map[string]any)
	if stop["id"] != "G4-001" || stop["type"] != "stop" {
		t.Errorf("stop frame = %v", stop)
	}
}

func TestGen4ProtocolHandleRoutesBySubscriptionID(t *testing.T) {
	proto := Gen4Protocol(newTestSession(t), "wss://updates.example/graphql")
	g := NewGen4(nil, "", map[string]any{"serial": "G4-001"}, nil)

	frame := func(id string) []byte {
		b, _ := json.Marshal(map[string]any{ //nolint:errcheck // Static input
			"id":   id,
			"type": "data",
			"payload": map[string]any{
				"data": map[string]any{
					"litterBoxUpdated": map[string]any{"unitStatus": "cleaning"},
				},
			},
		})
		return b
	}

	// A frame for a different subscription leaves state untouched.
	if err := proto.Handle(g, frame("G4-OTHER")); err != nil {
		t.Fatalf("Handle(other): %v", err)
	}
	if got := g.UnitStatus(); got != "" {
		t.Errorf("state changed by foreign frame: %q", got)
	}

	if err := proto.Handle(g, frame("G4-001")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := g.UnitStatus(); got != "cleaning" {
		t.Errorf("UnitStatus = %q, want cleaning", got)
	}
}

func TestGen4ProtocolHandleIgnoresControlFrames(t *testing.T) {
	proto := Gen4Protocol(newTestSession(t), "wss://updates.example/graphql")
	g := NewGen4(nil, "", map[string]any{"serial": "G4-001"}, nil)

	if err := proto.Handle(g, []byte(`{"type":"connection_ack"}`)); err != nil {
		t.Fatalf("Handle(ack): %v", err)
	}
	if err := proto.Handle(g, []byte(`{"id":"G4-001","type":"ka"}`)); err != nil {
		t.Fatalf("Handle(keepalive): %v", err)
	}
	if len(g.Data()) != 1 { // serial from construction only
		t.Errorf("control frames mutated state: %v", g.Data())
	}

	if err := proto.Handle(g, []byte(`{not json`)); err == nil {
		t.Error("malformed frame did not error")
	}
}
