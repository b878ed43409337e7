package bridge

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/strayware/pawlink/internal/infrastructure/database"
)

// openTestHistory creates a history store over a throwaway database with
// the production schema applied inline.
func openTestHistory(t *testing.T) *History {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	ctx := context.Background()
	schema := []string{
		`CREATE TABLE state_history (
			id INTEGER PRIMARY KEY,
			device_id TEXT NOT NULL,
			class TEXT NOT NULL,
			state TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE TABLE device_events (
			id INTEGER PRIMARY KEY,
			device_id TEXT NOT NULL,
			class TEXT NOT NULL,
			event TEXT NOT NULL,
			payload TEXT,
			recorded_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("creating schema: %v", err)
		}
	}

	return NewHistory(db)
}

func TestHistoryRecordAndQueryState(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	states := []map[string]any{
		{"unitStatus": "idle"},
		{"unitStatus": "cleaning"},
	}
	for _, s := range states {
		if err := h.RecordState(ctx, "litterbox-gen3", "lb-1", s); err != nil {
			t.Fatalf("RecordState() error = %v", err)
		}
	}
	// A row for another device must not leak into lb-1 queries.
	if err := h.RecordState(ctx, "feeder", "f-1", map[string]any{"foodLevel": 50.0}); err != nil {
		t.Fatalf("RecordState() error = %v", err)
	}

	records, err := h.StateHistory(ctx, "lb-1", time.Time{}, 0)
	if err != nil {
		t.Fatalf("StateHistory() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, r := range records {
		if r.DeviceID != "lb-1" || r.Class != "litterbox-gen3" {
			t.Errorf("unexpected identity: %+v", r)
		}
		if r.RecordedAt.IsZero() {
			t.Error("recorded_at not parsed")
		}
		if _, ok := r.State["unitStatus"]; !ok {
			t.Errorf("state blob not decoded: %v", r.State)
		}
	}
}

func TestHistoryStateLimit(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := h.RecordState(ctx, "feeder", "f-1", map[string]any{"i": float64(i)}); err != nil {
			t.Fatalf("RecordState() error = %v", err)
		}
	}

	records, err := h.StateHistory(ctx, "f-1", time.Time{}, 3)
	if err != nil {
		t.Fatalf("StateHistory() error = %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records with limit, got %d", len(records))
	}
}

func TestHistoryRecordAndQueryEvents(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	err := h.RecordEvent(ctx, "feeder", "f-1", "feed", map[string]any{"portion": 0.5})
	if err != nil {
		t.Fatalf("RecordEvent() error = %v", err)
	}
	// nil payload must round-trip as NULL
	if err := h.RecordEvent(ctx, "feeder", "f-1", "refresh", nil); err != nil {
		t.Fatalf("RecordEvent() with nil payload error = %v", err)
	}

	events, err := h.Events(ctx, "f-1", time.Time{}, 0)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	byName := make(map[string]EventRecord)
	for _, e := range events {
		byName[e.Event] = e
	}
	if byName["feed"].Payload["portion"] != 0.5 {
		t.Errorf("feed payload = %v", byName["feed"].Payload)
	}
	if byName["refresh"].Payload != nil {
		t.Errorf("refresh payload should be nil, got %v", byName["refresh"].Payload)
	}
}

func TestHistoryPrune(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	// Insert an old row directly so it falls outside the retention window.
	old := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339)
	_, err := h.db.ExecContext(ctx,
		"INSERT INTO state_history (device_id, class, state, recorded_at) VALUES (?, ?, ?, ?)",
		"lb-1", "litterbox-gen3", "{}", old)
	if err != nil {
		t.Fatalf("inserting old row: %v", err)
	}
	if err := h.RecordState(ctx, "litterbox-gen3", "lb-1", map[string]any{"unitStatus": "idle"}); err != nil {
		t.Fatalf("RecordState() error = %v", err)
	}

	removed, err := h.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune() removed = %d, want 1", removed)
	}

	records, err := h.StateHistory(ctx, "lb-1", time.Time{}, 0)
	if err != nil {
		t.Fatalf("StateHistory() error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 surviving record, got %d", len(records))
	}
}
