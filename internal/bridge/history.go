package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/strayware/pawlink/internal/infrastructure/database"
)

// History persists state snapshots and device events to SQLite.
//
// Rows are written to the state_history and device_events tables created by
// the embedded migrations. Timestamps are stored as RFC3339 UTC strings so
// range queries can use plain lexicographic comparison.
type History struct {
	db *database.DB
}

// StateRecord is a single row from the state_history table.
type StateRecord struct {
	DeviceID   string
	Class      string
	State      map[string]any
	RecordedAt time.Time
}

// EventRecord is a single row from the device_events table.
type EventRecord struct {
	DeviceID   string
	Class      string
	Event      string
	Payload    map[string]any
	RecordedAt time.Time
}

// NewHistory creates a history store over an open database.
// The caller is responsible for running migrations before first use.
func NewHistory(db *database.DB) *History {
	return &History{db: db}
}

// RecordState inserts a state snapshot for a device.
func (h *History) RecordState(ctx context.Context, class, deviceID string, state map[string]any) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	_, err = h.db.ExecContext(ctx,
		"INSERT INTO state_history (device_id, class, state, recorded_at) VALUES (?, ?, ?, ?)",
		deviceID, class, string(blob), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting state row: %w", err)
	}
	return nil
}

// RecordEvent inserts a discrete event for a device. payload may be nil.
func (h *History) RecordEvent(ctx context.Context, class, deviceID, event string, payload map[string]any) error {
	var blob []byte
	if payload != nil {
		var err error
		blob, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshalling payload: %w", err)
		}
	}

	_, err := h.db.ExecContext(ctx,
		"INSERT INTO device_events (device_id, class, event, payload, recorded_at) VALUES (?, ?, ?, ?, ?)",
		deviceID, class, event, nullableString(blob), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting event row: %w", err)
	}
	return nil
}

// StateHistory returns state snapshots for a device recorded at or after
// since, newest first, up to limit rows. A zero since returns all rows.
func (h *History) StateHistory(ctx context.Context, deviceID string, since time.Time, limit int) ([]StateRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT device_id, class, state, recorded_at
		FROM state_history
		WHERE device_id = ? AND recorded_at >= ?
		ORDER BY recorded_at DESC
		LIMIT ?`,
		deviceID, since.UTC().Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	var records []StateRecord
	for rows.Next() {
		var r StateRecord
		var blob, recordedAt string
		if err := rows.Scan(&r.DeviceID, &r.Class, &blob, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning state row: %w", err)
		}
		if err := json.Unmarshal([]byte(blob), &r.State); err != nil {
			return nil, fmt.Errorf("decoding state blob: %w", err)
		}
		r.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt) //nolint:errcheck // Format is controlled
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return records, nil
}

// Events returns discrete events for a device recorded at or after since,
// newest first, up to limit rows.
func (h *History) Events(ctx context.Context, deviceID string, since time.Time, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT device_id, class, event, payload, recorded_at
		FROM device_events
		WHERE device_id = ? AND recorded_at >= ?
		ORDER BY recorded_at DESC
		LIMIT ?`,
		deviceID, since.UTC().Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var records []EventRecord
	for rows.Next() {
		var r EventRecord
		var payload *string
		var recordedAt string
		if err := rows.Scan(&r.DeviceID, &r.Class, &r.Event, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		if payload != nil && *payload != "" {
			if err := json.Unmarshal([]byte(*payload), &r.Payload); err != nil {
				return nil, fmt.Errorf("decoding event payload: %w", err)
			}
		}
		r.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt) //nolint:errcheck // Format is controlled
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return records, nil
}

// Prune deletes rows older than the retention window from both tables.
// Returns the total number of rows removed.
func (h *History) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339)

	var total int64
	for _, table := range []string{"state_history", "device_events"} {
		res, err := h.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE recorded_at < ?", table), cutoff) //nolint:gosec // table names are constants
		if err != nil {
			return total, fmt.Errorf("pruning %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err == nil {
			total += n
		}
	}
	return total, nil
}

// nullableString converts a possibly-nil byte slice to a driver-friendly
// value: nil stays NULL, anything else becomes a string.
func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
