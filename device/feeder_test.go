package device

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestFeederFeedPostsCommandWithUniqueID(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/feeders/f-1/commands" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding command body: %v", err)
		}
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewFeeder(newTestSession(t), srv.URL, map[string]any{"deviceId": "f-1"}, nil)
	ctx := context.Background()

	if err := f.Feed(ctx, 0); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if err := f.Feed(ctx, 0.5); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	if len(bodies) != 2 {
		t.Fatalf("got %d commands, want 2", len(bodies))
	}
	if got := bodies[0]["portion"]; got != DefaultFeederPortion {
		t.Errorf("default portion = %v, want %v", got, DefaultFeederPortion)
	}
	if got := bodies[1]["portion"]; got != 0.5 {
		t.Errorf("portion = %v, want 0.5", got)
	}
	id0, _ := bodies[0]["commandId"].(string) //nolint:errcheck // Asserted below
	id1, _ := bodies[1]["commandId"].(string) //nolint:errcheck // Asserted below
	if _, err := uuid.Parse(id0); err != nil {
		t.Errorf("commandId %q is not a uuid: %v", id0, err)
	}
	if id0 == id1 {
		t.Error("command ids are not unique across commands")
	}
}

func TestFeederSetMealSchedule(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding command body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewFeeder(newTestSession(t), srv.URL, map[string]any{"deviceId": "f-1"}, nil)
	meals := []Meal{
		{Name: "Breakfast", Time: "07:00", Portion: 0.25, Enabled: true},
		{Name: "Dinner", Time: "18:30", Portion: 0.5, Enabled: true},
	}
	if err := f.SetMealSchedule(context.Background(), meals); err != nil {
		t.Fatalf("SetMealSchedule: %v", err)
	}

	if got["command"] != "schedule" {
		t.Errorf("command = %v, want schedule", got["command"])
	}
	sent, _ := got["meals"].([]any) //nolint:errcheck // Asserted below
	if len(sent) != 2 {
		t.Fatalf("sent %d meals, want 2", len(sent))
	}
}

func TestFeederProtocolHandleRoutesByDeviceID(t *testing.T) {
	proto := FeederProtocol(newTestSession(t), "wss://bus.example/ws")
	f := NewFeeder(nil, "", map[string]any{"deviceId": "f-1"}, nil)

	frame := func(id string, level float64) []byte {
		b, _ := json.Marshal(map[string]any{ //nolint:errcheck // Static input
			"action":   "state",
			"deviceId": id,
			"state":    map[string]any{"foodLevel": level},
		})
		return b
	}

	if err := proto.Handle(f, frame("f-2", 10)); err != nil {
		t.Fatalf("Handle(other): %v", err)
	}
	if got := f.FoodLevel(); got != 0 {
		t.Errorf("state changed by foreign frame: %v", got)
	}

	if err := proto.Handle(f, frame("f-1", 82)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := f.FoodLevel(); got != 82 {
		t.Errorf("FoodLevel = %v, want 82", got)
	}
}

func TestFeederProtocolSubscribeFrames(t *testing.T) {
	proto := FeederProtocol(newTestSession(t), "wss://bus.example/ws")
	f := NewFeeder(nil, "", map[string]any{"deviceId": "f-1"}, nil)
	sock := &captureSocket{}
	ctx := context.Background()

	if err := proto.Subscribe(ctx, f, sock); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := proto.Unsubscribe(ctx, f, sock); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	if len(sock.writes) != 2 {
		t.Fatalf("got %d frames, want 2", len(sock.writes))
	}
	sub := sock.writes[0].(map[string]any)
	if sub["action"] != "subscribe" || sub["deviceId"] != "f-1" {
		t.Errorf("subscribe frame = %v", sub)
	}
	unsub := sock.writes[1].(map[string]any)
	if unsub["action"] != "unsubscribe" || unsub["deviceId"] != "f-1" {
		t.Errorf("unsubscribe frame = %v", unsub)
	}
}
