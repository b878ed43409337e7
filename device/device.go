package device

import (
	"sync"
	"time"

	"github.com/strayware/pawlink/session"
	"github.com/strayware/pawlink/transport"
)

// Device classes. Devices sharing a class share one wire protocol and, for
// push-capable classes, one WebSocket connection.
const (
	ClassGen3   = "litterbox-gen3"
	ClassGen4   = "litterbox-gen4"
	ClassFeeder = "feeder"
)

// Logger defines the logging interface used by devices.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Device is the uniform appliance abstraction. It extends the transport
// contract with identity, state access and change notification.
type Device interface {
	transport.Device

	// Name is the user-assigned appliance name.
	Name() string

	// Serial is the hardware serial number.
	Serial() string

	// Class identifies the wire protocol family (ClassGen3, ...).
	Class() string

	// Data returns a copy of the current raw state map.
	Data() map[string]any

	// UpdatedAt returns when state last changed, zero if never.
	UpdatedAt() time.Time

	// OnUpdate registers a change listener; the returned cancel removes it.
	OnUpdate(fn Listener) (cancel func())
}

// Base carries the state shared by every appliance model: identity, the
// mutable data map with merge-on-update semantics, and event emission.
//
// Thread Safety: all methods are safe for concurrent use.
type Base struct {
	id     string
	name   string
	serial string
	class  string

	session *session.Session
	log     Logger

	mu        sync.RWMutex
	data      map[string]any
	updatedAt time.Time

	events *Emitter
}

// NewBase constructs the shared device core. The session may be nil for
// models that are fed exclusively by push data (tests rely on this).
func NewBase(id, name, serial, class string, s *session.Session, log Logger) *Base {
	if log == nil {
		log = noopLogger{}
	}
	return &Base{
		id:      id,
		name:    name,
		serial:  serial,
		class:   class,
		session: s,
		log:     log,
		data:    make(map[string]any),
		events:  NewEmitter(log),
	}
}

// ID returns the unique device key.
func (b *Base) ID() string { return b.id }

// Name returns the user-assigned appliance name.
func (b *Base) Name() string { return b.name }

// Serial returns the hardware serial number.
func (b *Base) Serial() string { return b.serial }

// Class returns the device's protocol family.
func (b *Base) Class() string { return b.class }

// Session returns the shared network session.
func (b *Base) Session() *session.Session { return b.session }

// UpdateData merges a partial or full payload into device state and emits
// EventUpdated with a snapshot of the merged state. Nil and empty payloads
// still refresh the update timestamp but emit no event.
func (b *Base) UpdateData(data map[string]any) {
	b.mu.Lock()
	for k, v := range data {
		b.data[k] = v
	}
	b.updatedAt = time.Now()
	if len(data) == 0 {
		b.mu.Unlock()
		return
	}
	snapshot := make(map[string]any, len(b.data))
	for k, v := range b.data {
		snapshot[k] = v
	}
	b.mu.Unlock()

	b.events.Emit(Event{
		Type:     EventUpdated,
		DeviceID: b.id,
		State:    snapshot,
	})
}

// Data returns a copy of the current raw state map.
func (b *Base) Data() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.data))
	for k, v := range b.data {
		out[k] = v
	}
	return out
}

// UpdatedAt returns when state last changed, zero if never.
func (b *Base) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updatedAt
}

// OnUpdate registers a change listener.
func (b *Base) OnUpdate(fn Listener) (cancel func()) {
	return b.events.Subscribe(fn)
}

// str reads a string field from state, empty if absent or mistyped.
func (b *Base) str(key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, _ := b.data[key].(string) //nolint:errcheck // Absent field reads as zero value
	return v
}

// num reads a numeric field from state, 0 if absent or mistyped.
// JSON decoding produces float64 for all numbers.
func (b *Base) num(key string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, _ := b.data[key].(float64) //nolint:errcheck // Absent field reads as zero value
	return v
}

// flag reads a boolean field from state, false if absent or mistyped.
func (b *Base) flag(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, _ := b.data[key].(bool) //nolint:errcheck // Absent field reads as zero value
	return v
}
