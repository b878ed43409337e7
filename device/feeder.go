package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strayware/pawlink/session"
	"github.com/strayware/pawlink/transport"
)

// DefaultFeederPortion is the portion size (in cups) used when a feed
// command does not specify one.
const DefaultFeederPortion = 0.25

// Feeder is a smart feeder. State refreshes over REST; live updates and
// command acknowledgements arrive over the feeder command bus, a shared
// WebSocket carrying frames keyed by deviceId (see FeederProtocol).
type Feeder struct {
	*Base
	apiBase string
}

// NewFeeder builds a Feeder model from a raw cloud payload.
func NewFeeder(s *session.Session, apiBase string, raw map[string]any, log Logger) *Feeder {
	id, _ := raw["deviceId"].(string)   //nolint:errcheck // Identity validated by caller
	name, _ := raw["name"].(string)     //nolint:errcheck // Optional field
	serial, _ := raw["serial"].(string) //nolint:errcheck // Optional field
	f := &Feeder{
		Base:    NewBase(id, name, serial, ClassFeeder, s, log),
		apiBase: apiBase,
	}
	f.UpdateData(raw)
	return f
}

// Refresh pulls the latest feeder state from the REST API.
func (f *Feeder) Refresh(ctx context.Context) error {
	url := fmt.Sprintf("%s/feeders/%s", f.apiBase, f.ID())
	var raw map[string]any
	if err := f.Session().Get(ctx, url, &raw); err != nil {
		return fmt.Errorf("refreshing feeder %s: %w", f.ID(), err)
	}
	f.UpdateData(raw)
	return nil
}

// Feed dispenses one portion now. A portion of 0 uses DefaultFeederPortion.
// Each command carries a unique id so acknowledgements on the command bus
// can be correlated with their request.
func (f *Feeder) Feed(ctx context.Context, portion float64) error {
	if portion <= 0 {
		portion = DefaultFeederPortion
	}
	return f.sendCommand(ctx, "feed", map[string]any{"portion": portion})
}

// SetMealSchedule replaces the feeder's scheduled meals.
func (f *Feeder) SetMealSchedule(ctx context.Context, meals []Meal) error {
	return f.sendCommand(ctx, "schedule", map[string]any{"meals": meals})
}

// Meal is one scheduled feeding.
type Meal struct {
	Name    string  `json:"name"`
	Time    string  `json:"time"` // "HH:MM", feeder-local
	Portion float64 `json:"portion"`
	Enabled bool    `json:"enabled"`
}

// sendCommand posts one command to the feeder's command endpoint.
func (f *Feeder) sendCommand(ctx context.Context, command string, args map[string]any) error {
	url := fmt.Sprintf("%s/feeders/%s/commands", f.apiBase, f.ID())
	body := map[string]any{
		"commandId": uuid.NewString(),
		"command":   command,
		"issuedAt":  time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range args {
		body[k] = v
	}
	if err := f.Session().PostJSON(ctx, url, body, nil); err != nil {
		return fmt.Errorf("sending %q to feeder %s: %w", command, f.ID(), err)
	}
	return nil
}

// FoodLevel returns the remaining hopper level in percent.
func (f *Feeder) FoodLevel() float64 { return f.num("foodLevel") }

// BatteryLevel returns the battery level in percent.
func (f *Feeder) BatteryLevel() float64 { return f.num("batteryLevel") }

// LastFeeding returns the timestamp string of the most recent feeding.
func (f *Feeder) LastFeeding() string { return f.str("lastFeeding") }

// Paused reports whether scheduled feeding is paused.
func (f *Feeder) Paused() bool { return f.flag("paused") }

// feederFrame is one message on the feeder command bus.
type feederFrame struct {
	Action   string         `json:"action"`
	DeviceID string         `json:"deviceId"`
	State    map[string]any `json:"state"`
}

// FeederProtocol builds the shared-socket protocol for the feeder class.
//
// The command bus has no handshake: feeders subscribe with a plain
// subscribe action and receive state frames keyed by deviceId.
func FeederProtocol(s *session.Session, wsURL string) transport.Protocol {
	return transport.Protocol{
		Config: func(transport.Device) (transport.ConnConfig, error) {
			return transport.ConnConfig{URL: wsURL, Header: s.Header()}, nil
		},
		Subscribe: func(_ context.Context, d transport.Device, sock transport.Socket) error {
			return sock.WriteJSON(map[string]any{"action": "subscribe", "deviceId": d.ID()})
		},
		Unsubscribe: func(_ context.Context, d transport.Device, sock transport.Socket) error {
			return sock.WriteJSON(map[string]any{"action": "unsubscribe", "deviceId": d.ID()})
		},
		Handle: func(d transport.Device, message []byte) error {
			var frame feederFrame
			if err := json.Unmarshal(message, &frame); err != nil {
				return fmt.Errorf("decoding feeder frame: %w", err)
			}
			if frame.DeviceID != d.ID() || frame.State == nil {
				return nil
			}
			d.UpdateData(frame.State)
			return nil
		},
	}
}
