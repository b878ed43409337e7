package pawlink

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/strayware/pawlink/device"
	"github.com/strayware/pawlink/session"
	"github.com/strayware/pawlink/transport"
)

// Default vendor cloud endpoints. Each can be overridden per field through
// Config.Endpoints, which the tests and self-hosted gateways rely on.
const (
	defaultGen3API   = "https://api.pawlink.io/v3"
	defaultGen4API   = "https://gateway.pawlink.io/graphql"
	defaultGen4WS    = "wss://updates.pawlink.io/graphql"
	defaultFeederAPI = "https://api.pawlink.io/feeder"
	defaultFeederWS  = "wss://bus.pawlink.io/ws"
)

// Logger defines the logging interface used by the account orchestrator.
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

// Endpoints names the cloud surfaces the account talks to. Zero fields fall
// back to the vendor defaults.
type Endpoints struct {
	Gen3API   string
	Gen4API   string
	Gen4WS    string
	FeederAPI string
	FeederWS  string
}

func (e Endpoints) withDefaults() Endpoints {
	if e.Gen3API == "" {
		e.Gen3API = defaultGen3API
	}
	if e.Gen4API == "" {
		e.Gen4API = defaultGen4API
	}
	if e.Gen4WS == "" {
		e.Gen4WS = defaultGen4WS
	}
	if e.FeederAPI == "" {
		e.FeederAPI = defaultFeederAPI
	}
	if e.FeederWS == "" {
		e.FeederWS = defaultFeederWS
	}
	return e
}

// Config configures an Account.
type Config struct {
	// Token is the bearer token for the vendor cloud. Required.
	Token string

	// UserID is the cloud account identifier the token belongs to. Required.
	UserID string

	// Endpoints overrides individual cloud endpoints. Zero fields use the
	// vendor defaults.
	Endpoints Endpoints

	// PollInterval is the refresh cadence for poll-only devices.
	// Default: device.DefaultGen3PollInterval.
	PollInterval time.Duration

	// ReconnectSeed is the initial WebSocket reconnect delay. Default: 5s.
	ReconnectSeed time.Duration

	// Logger is optional; nil disables logging.
	Logger Logger
}

// Account is the top-level orchestrator: one authenticated cloud session,
// the discovered appliance models, and the transports that keep them fresh.
//
// Thread Safety: all methods are safe for concurrent use.
type Account struct {
	cfg  Config
	eps  Endpoints
	sess *session.Session
	log  Logger

	mu        sync.Mutex
	connected bool
	devices   map[string]device.Device
	monitors  map[string]*transport.Monitor // keyed by device class
	pollers   map[string]*transport.Poller  // keyed by device ID
	active    map[string]bool               // device IDs with a started transport
}

// NewAccount builds an account orchestrator. It does no network I/O; call
// Connect to authenticate and discover devices.
func NewAccount(cfg Config) (*Account, error) {
	if cfg.UserID == "" {
		return nil, errors.New("pawlink: user id is required")
	}
	sess, err := session.New(session.Config{Token: cfg.Token, UserID: cfg.UserID})
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = noopLogger{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = device.DefaultGen3PollInterval
	}
	return &Account{
		cfg:      cfg,
		eps:      cfg.Endpoints.withDefaults(),
		sess:     sess,
		log:      log,
		devices:  make(map[string]device.Device),
		monitors: make(map[string]*transport.Monitor),
		pollers:  make(map[string]*transport.Poller),
		active:   make(map[string]bool),
	}, nil
}

// Session exposes the shared network session, for callers that need raw API
// access alongside the device models.
func (a *Account) Session() *session.Session { return a.sess }

// Connect loads the appliance inventory from the per-generation endpoints
// and builds the device models. Calling it again re-discovers: new devices
// are added, known devices keep their model (and any running transport).
func (a *Account) Connect(ctx context.Context) error {
	discovered, err := a.discover(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range discovered {
		if d.ID() == "" {
			a.log.Warn("skipping device without id", "class", d.Class())
			continue
		}
		if _, ok := a.devices[d.ID()]; ok {
			continue
		}
		a.devices[d.ID()] = d
		a.log.Info("discovered device",
			"id", d.ID(), "class", d.Class(), "name", d.Name())
	}
	a.connected = true
	return nil
}

// discover fetches the three per-generation inventories.
func (a *Account) discover(ctx context.Context) ([]device.Device, error) {
	var out []device.Device

	var gen3 []map[string]any
	url := fmt.Sprintf("%s/users/%s/litterboxes", a.eps.Gen3API, a.cfg.UserID)
	if err := a.sess.Get(ctx, url, &gen3); err != nil {
		return nil, fmt.Errorf("loading gen3 inventory: %w", err)
	}
	for _, raw := range gen3 {
		out = append(out, device.NewGen3(a.sess, a.eps.Gen3API, raw, a.log))
	}

	const listQuery = `query ListLitterBoxes {
  litterBoxes {
    serial name unitStatus litterLevel cycleCount nightLightActive
  }
}`
	var gen4 struct {
		LitterBoxes []map[string]any `json:"litterBoxes"`
	}
	if err := a.sess.GraphQL(ctx, a.eps.Gen4API, listQuery, nil, &gen4); err != nil {
		return nil, fmt.Errorf("loading gen4 inventory: %w", err)
	}
	for _, raw := range gen4.LitterBoxes {
		out = append(out, device.NewGen4(a.sess, a.eps.Gen4API, raw, a.log))
	}

	var feeders []map[string]any
	if err := a.sess.Get(ctx, a.eps.FeederAPI+"/feeders", &feeders); err != nil {
		return nil, fmt.Errorf("loading feeder inventory: %w", err)
	}
	for _, raw := range feeders {
		out = append(out, device.NewFeeder(a.sess, a.eps.FeederAPI, raw, a.log))
	}

	return out, nil
}

// Devices returns all discovered devices, ordered by ID.
func (a *Account) Devices() []device.Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]device.Device, 0, len(a.devices))
	for _, d := range a.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Device looks up one device by ID.
func (a *Account) Device(id string) (device.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, ErrNotConnected
	}
	d, ok := a.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return d, nil
}

// StartUpdates starts the right transport for every discovered device:
// a dedicated poller per poll-only device, the class's shared monitor for
// push-capable devices. Already-started devices are left alone.
func (a *Account) StartUpdates(ctx context.Context) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return ErrNotConnected
	}
	devs := make([]device.Device, 0, len(a.devices))
	for id, d := range a.devices {
		if !a.active[id] {
			devs = append(devs, d)
		}
	}
	a.mu.Unlock()

	var errs []error
	for _, d := range devs {
		tr, err := a.transportFor(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := tr.Start(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("starting updates for %s: %w", d.ID(), err))
			continue
		}
		a.mu.Lock()
		a.active[d.ID()] = true
		a.mu.Unlock()
	}
	return errors.Join(errs...)
}

// StopUpdates stops every running transport. Devices and the session stay
// usable; StartUpdates may be called again.
func (a *Account) StopUpdates(ctx context.Context) error {
	a.mu.Lock()
	type pair struct {
		d  device.Device
		tr transport.Transport
	}
	var running []pair
	for id, d := range a.devices {
		if !a.active[id] {
			continue
		}
		if tr := a.lookupTransport(d); tr != nil {
			running = append(running, pair{d, tr})
		}
	}
	a.mu.Unlock()

	var errs []error
	for _, p := range running {
		if err := p.tr.Stop(ctx, p.d); err != nil {
			errs = append(errs, fmt.Errorf("stopping updates for %s: %w", p.d.ID(), err))
			continue
		}
		a.mu.Lock()
		delete(a.active, p.d.ID())
		a.mu.Unlock()
	}
	return errors.Join(errs...)
}

// transportFor resolves (lazily creating) the transport owning d's updates.
func (a *Account) transportFor(d device.Device) (transport.Transport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch d.Class() {
	case device.ClassGen3:
		p, ok := a.pollers[d.ID()]
		if !ok {
			p = transport.NewPoller(transport.PollerOptions{
				Interval: a.cfg.PollInterval,
				Logger:   a.log,
			})
			a.pollers[d.ID()] = p
		}
		return p, nil

	case device.ClassGen4, device.ClassFeeder:
		m, ok := a.monitors[d.Class()]
		if !ok {
			proto, err := a.protocolFor(d.Class())
			if err != nil {
				return nil, err
			}
			m, err = transport.NewMonitor(transport.MonitorOptions{
				Protocol:      proto,
				Dialer:        a.sess,
				ReconnectSeed: a.cfg.ReconnectSeed,
				Logger:        a.log,
			})
			if err != nil {
				return nil, fmt.Errorf("creating %s monitor: %w", d.Class(), err)
			}
			a.monitors[d.Class()] = m
		}
		return m, nil
	}
	return nil, fmt.Errorf("pawlink: no transport for device class %q", d.Class())
}

// lookupTransport returns d's transport without creating one. Caller holds
// a.mu.
func (a *Account) lookupTransport(d device.Device) transport.Transport {
	if d.Class() == device.ClassGen3 {
		if p, ok := a.pollers[d.ID()]; ok {
			return p
		}
		return nil
	}
	if m, ok := a.monitors[d.Class()]; ok {
		return m
	}
	return nil
}

// protocolFor builds the shared-socket wire protocol for a device class.
func (a *Account) protocolFor(class string) (transport.Protocol, error) {
	switch class {
	case device.ClassGen4:
		return device.Gen4Protocol(a.sess, a.eps.Gen4WS), nil
	case device.ClassFeeder:
		return device.FeederProtocol(a.sess, a.eps.FeederWS), nil
	}
	return transport.Protocol{}, fmt.Errorf("pawlink: no protocol for device class %q", class)
}
