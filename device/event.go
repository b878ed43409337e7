package device

import (
	"fmt"
	"sync"
)

// EventType identifies the kind of change notification.
type EventType string

// Event types emitted by devices.
const (
	// EventUpdated fires after inbound data (push or poll) has been merged
	// into device state.
	EventUpdated EventType = "updated"
)

// Event is a change notification delivered to device listeners.
type Event struct {
	Type     EventType
	DeviceID string
	// State is a snapshot of the device's full state after the merge.
	// Listeners may read it freely; it is never mutated after emission.
	State map[string]any
}

// Listener receives device events.
type Listener func(Event)

// Emitter delivers typed events to registered listeners.
//
// Contract: listeners are invoked sequentially in registration-independent
// order; a listener that panics is recovered and logged, and never prevents
// delivery to the remaining listeners.
type Emitter struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
	log       Logger
}

// NewEmitter creates an emitter. Logger may be nil.
func NewEmitter(log Logger) *Emitter {
	if log == nil {
		log = noopLogger{}
	}
	return &Emitter{
		listeners: make(map[int]Listener),
		log:       log,
	}
}

// Subscribe registers a listener and returns a cancel function that removes
// it. Cancel is idempotent.
func (e *Emitter) Subscribe(fn Listener) (cancel func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Emit delivers ev to every registered listener.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	listeners := make([]Listener, 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		e.emitOne(fn, ev)
	}
}

func (e *Emitter) emitOne(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("event listener panicked", "device", ev.DeviceID, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn(ev)
}

// Len returns the number of registered listeners.
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}
