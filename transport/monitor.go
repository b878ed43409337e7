package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Monitor maintains a single shared socket connection for one device class,
// delivering every inbound message to all currently registered devices and
// reconnecting with exponential backoff on transport failure.
//
// One Monitor instance is constructed per device class by the orchestrator
// and handed out explicitly to the devices of that class; there is no global
// registry. The instance is reusable across repeated start/stop cycles of
// the underlying connection loop.
//
// Invariant: at most one open socket and at most one background goroutine
// exist per Monitor at any time.
type Monitor struct {
	proto Protocol
	dial  Dialer
	log   Logger

	seed        time.Duration
	joinTimeout time.Duration

	// mu guards listeners, conn and all loop bookkeeping. Structural
	// mutations and spawn/teardown decisions happen under it; blocking
	// joins happen outside it.
	mu            sync.Mutex
	listeners     map[string]Device
	conn          Socket
	running       bool
	stopRequested bool
	stopc         chan struct{} // closed to interrupt waits; replaced when a stop is cancelled
	loopDone      chan struct{} // closed when the current loop goroutine exits
	cancelLoop    context.CancelFunc

	lastReceived atomic.Int64 // unix nanos of the most recent inbound message
}

// Ensure Monitor implements Transport.
var _ Transport = (*Monitor)(nil)

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	// Protocol carries the class-specific wire details. Config is required.
	Protocol Protocol

	// Dialer opens sockets through the shared network session. Required.
	Dialer Dialer

	// ReconnectSeed is the first retry delay after a failed session.
	// Default: 5s.
	ReconnectSeed time.Duration

	// JoinTimeout bounds how long Stop waits for the loop to wind down.
	// Default: 5s.
	JoinTimeout time.Duration

	// Logger is optional.
	Logger Logger
}

// NewMonitor creates a monitor for one device class.
func NewMonitor(opts MonitorOptions) (*Monitor, error) {
	if opts.Protocol.Config == nil {
		return nil, fmt.Errorf("protocol config factory is required")
	}
	if opts.Dialer == nil {
		return nil, fmt.Errorf("dialer is required")
	}

	m := &Monitor{
		proto:       opts.Protocol,
		dial:        opts.Dialer,
		log:         opts.Logger,
		seed:        opts.ReconnectSeed,
		joinTimeout: opts.JoinTimeout,
		listeners:   make(map[string]Device),
	}
	if m.log == nil {
		m.log = noopLogger{}
	}
	if m.seed <= 0 {
		m.seed = defaultReconnectSeed
	}
	if m.joinTimeout <= 0 {
		m.joinTimeout = defaultJoinTimeout
	}
	return m, nil
}

// Start registers d as a listener and ensures a connection loop is running.
//
// If a loop is currently winding down because a concurrent Stop emptied the
// listener set, the pending stop is cancelled so the loop reconnects instead
// of exiting, which would orphan the new listener. If the loop is connected
// and the protocol defines a subscribe callable, the device is subscribed on
// the live socket immediately rather than waiting for the next reconnect.
//
// Registering the same device twice simply replaces its listener entry.
func (m *Monitor) Start(ctx context.Context, d Device) error {
	m.mu.Lock()
	m.listeners[d.ID()] = d

	if m.running {
		if m.stopRequested {
			m.stopRequested = false
			m.stopc = make(chan struct{})
			m.log.Debug("pending stop cancelled by new listener", "device", d.ID())
		}
		conn := m.conn
		m.mu.Unlock()

		if conn != nil && m.proto.Subscribe != nil {
			if err := m.proto.Subscribe(ctx, d, conn); err != nil {
				// The connection loop will re-subscribe everyone on
				// the next session, so a failed live subscribe only
				// delays this device's updates.
				m.log.Warn("live subscribe failed", "device", d.ID(), "error", err)
			}
		}
		return nil
	}

	m.running = true
	m.stopRequested = false
	m.stopc = make(chan struct{})
	m.loopDone = make(chan struct{})
	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancelLoop = cancel
	go m.run(loopCtx, m.loopDone)
	m.mu.Unlock()

	m.log.Debug("monitor loop started", "device", d.ID())
	return nil
}

// Stop unregisters d. If the protocol defines an unsubscribe callable and a
// socket is open, it is invoked best-effort before removal. If d was the
// last listener, the connection loop is signalled to stop, the socket is
// closed to unblock the receive loop, and the loop is awaited with a bounded
// timeout; on expiry the goroutine is abandoned (its context cancelled) and
// the event logged.
//
// Safe to call for a device that was never started, and safe to call
// concurrently with Start for a different device.
func (m *Monitor) Stop(ctx context.Context, d Device) error {
	m.mu.Lock()
	if _, ok := m.listeners[d.ID()]; !ok {
		m.mu.Unlock()
		return nil
	}
	conn := m.conn
	m.mu.Unlock()

	if conn != nil && m.proto.Unsubscribe != nil {
		if err := m.proto.Unsubscribe(ctx, d, conn); err != nil {
			m.log.Warn("unsubscribe failed", "device", d.ID(), "error", err)
		}
	}

	m.mu.Lock()
	delete(m.listeners, d.ID())

	var done chan struct{}
	var cancel context.CancelFunc
	if len(m.listeners) == 0 && m.running {
		if !m.stopRequested {
			m.stopRequested = true
			close(m.stopc)
		}
		if m.conn != nil {
			m.conn.Close() //nolint:errcheck // Best-effort close to unblock the read
		}
		done = m.loopDone
		cancel = m.cancelLoop
	}
	m.mu.Unlock()

	if done == nil {
		return nil
	}

	// Bounded join, outside the lock so Start for another device is never
	// blocked behind it.
	select {
	case <-done:
	case <-time.After(m.joinTimeout):
		m.mu.Lock()
		revived := !m.stopRequested
		m.mu.Unlock()
		if revived {
			// A concurrent Start re-registered a listener and cancelled
			// the stop; the loop is legitimately alive again.
			return nil
		}
		m.log.Error("monitor loop did not stop within timeout, abandoning", "timeout", m.joinTimeout)
		cancel()
	}
	return nil
}

// Connected reports whether a socket is currently open.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// LastReceived returns the timestamp of the most recent successfully
// received message, or the zero time if none has arrived yet. External
// health checks use this to detect staleness.
func (m *Monitor) LastReceived() time.Time {
	ns := m.lastReceived.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// run is the connection loop. It repeats one connection session at a time,
// exiting on a stop signal or an empty listener set, and waiting out an
// exponentially growing delay after transport failures.
func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	// Loop bookkeeping is cleared and done is closed inside one critical
	// section, so a concurrent Start observes either a live loop or a fully
	// retired one, never the gap in between.
	defer func() {
		m.mu.Lock()
		m.running = false
		m.stopRequested = false
		m.conn = nil
		close(done)
		m.mu.Unlock()
		m.log.Debug("monitor loop exiting")
	}()

	delay := m.seed
	for {
		m.mu.Lock()
		exit := m.stopRequested || len(m.listeners) == 0 || ctx.Err() != nil
		m.mu.Unlock()
		if exit {
			return
		}

		connected, err := m.session(ctx)
		if connected {
			// Any session that reached the connected state clears the
			// backoff; a healthy period never inherits delay from earlier
			// dial failures.
			delay = m.seed
		}
		if err == nil {
			// Clean session end: reconnect immediately (or exit at the top
			// of the loop if a stop was observed).
			continue
		}

		m.mu.Lock()
		stopped := m.stopRequested
		wait := m.stopc
		m.mu.Unlock()
		if stopped {
			continue
		}

		m.log.Warn("connection session failed, retrying", "delay", delay.String(), "error", err)
		select {
		case <-wait:
		case <-ctx.Done():
		case <-time.After(delay):
		}
		delay = nextDelay(delay)
	}
}

// session runs one continuous open-socket period: connect, handshake,
// subscribe every registered device, then read and fan out inbound messages
// until the socket closes or the stop signal fires. connected reports
// whether the session made it through the handshake and subscribe phase;
// the caller uses it to reset the reconnect backoff.
//
// With zero listeners it returns immediately without connecting, preventing
// pointless connect-then-idle churn when the last device was just removed.
func (m *Monitor) session(ctx context.Context) (connected bool, err error) {
	m.mu.Lock()
	var rep Device
	for _, d := range m.listeners {
		rep = d
		break
	}
	m.mu.Unlock()
	if rep == nil {
		return false, nil
	}

	cfg, err := m.proto.Config(rep)
	if err != nil {
		return false, fmt.Errorf("building connection config: %w", err)
	}

	sock, err := m.dial.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return false, fmt.Errorf("dialing %s: %w", cfg.URL, err)
	}

	m.mu.Lock()
	if m.stopRequested {
		m.mu.Unlock()
		sock.Close() //nolint:errcheck // Connection is being discarded
		return false, nil
	}
	m.conn = sock
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.conn == sock {
			m.conn = nil
		}
		m.mu.Unlock()
		sock.Close() //nolint:errcheck // Already tearing down
	}()

	if cfg.Handshake != nil {
		if err := sock.WriteJSON(cfg.Handshake); err != nil {
			return false, fmt.Errorf("sending handshake: %w", err)
		}
	}

	if m.proto.Subscribe != nil {
		for _, d := range m.snapshot() {
			if err := m.proto.Subscribe(ctx, d, sock); err != nil {
				return false, fmt.Errorf("subscribing %s: %w", d.ID(), err)
			}
		}
	}

	m.log.Info("connected", "url", cfg.URL)

	for {
		data, err := sock.ReadMessage()
		if err != nil {
			if m.isStopRequested() {
				return true, nil // Socket closed by Stop; clean closure
			}
			return true, fmt.Errorf("reading message: %w", err)
		}
		m.lastReceived.Store(time.Now().UnixNano())
		m.dispatch(data)
	}
}

// dispatch hands one inbound message to the protocol handler once per
// currently registered device. A failure for one device never prevents
// dispatch to the others and never crashes the loop.
func (m *Monitor) dispatch(data []byte) {
	if m.proto.Handle == nil {
		return
	}
	for _, d := range m.snapshot() {
		m.dispatchOne(d, data)
	}
}

func (m *Monitor) dispatchOne(d Device, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("message handler panicked", "device", d.ID(), "panic", fmt.Sprintf("%v", r))
		}
	}()
	if err := m.proto.Handle(d, data); err != nil {
		m.log.Warn("message handler failed", "device", d.ID(), "error", err)
	}
}

// snapshot copies the listener set so dispatch and subscription iterate
// without holding the lock.
func (m *Monitor) snapshot() []Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	devices := make([]Device, 0, len(m.listeners))
	for _, d := range m.listeners {
		devices = append(devices, d)
	}
	return devices
}

func (m *Monitor) isStopRequested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopRequested
}
