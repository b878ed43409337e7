package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/strayware/pawlink/device"
	"github.com/strayware/pawlink/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	// minTopicParts is the number of segments in a device command topic
	// (pawlink/command/{class}/{device_id}).
	minTopicParts = 4

	// commandTimeout bounds a single command round-trip to the vendor cloud.
	commandTimeout = 10 * time.Second

	// pruneInterval is how often the history retention pass runs.
	pruneInterval = time.Hour
)

// MQTTClient is the broker surface the bridge needs. Satisfied by
// *mqtt.Client; narrowed to an interface so tests can substitute a recorder.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// DeviceSource provides the appliance inventory. Satisfied by
// *pawlink.Account after Connect.
type DeviceSource interface {
	// Devices returns all discovered appliances.
	Devices() []device.Device

	// Device returns the appliance with the given ID.
	Device(id string) (device.Device, error)
}

// HistoryStore records state snapshots and events. Satisfied by *History.
// Optional - if nil, the bridge operates without persistence.
type HistoryStore interface {
	RecordState(ctx context.Context, class, deviceID string, state map[string]any) error
	RecordEvent(ctx context.Context, class, deviceID, event string, payload map[string]any) error
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// TelemetryWriter forwards state snapshots to a time-series store.
// Satisfied by *influxdb.Client. Optional - if nil, no telemetry is written.
type TelemetryWriter interface {
	WriteStateSnapshot(class, deviceID string, state map[string]any)
}

// Logger is the minimal logging interface the bridge needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Per-command capability interfaces. Appliance models implement the subset
// of these that their hardware supports; dispatch probes with type assertions
// so new commands don't force changes on every model.
type (
	cleanStarter interface {
		StartCleanCycle(ctx context.Context) error
	}
	nightLightSetter interface {
		SetNightLight(ctx context.Context, on bool) error
	}
	foodDispenser interface {
		Feed(ctx context.Context, portion float64) error
	}
	mealScheduler interface {
		SetMealSchedule(ctx context.Context, meals []device.Meal) error
	}
)

// Options holds configuration for creating a bridge.
type Options struct {
	// Source is the appliance inventory. Required.
	Source DeviceSource

	// MQTT is the broker client. Required.
	MQTT MQTTClient

	// History is the optional SQLite store for state and event rows.
	History HistoryStore

	// Telemetry is the optional time-series writer.
	Telemetry TelemetryWriter

	// QoS is the quality of service for all bridge publishes.
	QoS byte

	// Retention bounds how long history rows are kept. Zero disables the
	// periodic prune pass.
	Retention time.Duration

	// Logger is optional structured logging.
	Logger Logger
}

// Bridge republishes appliance state to MQTT and dispatches MQTT commands
// back to the vendor cloud.
type Bridge struct {
	source    DeviceSource
	mqtt      MQTTClient
	history   HistoryStore
	telemetry TelemetryWriter
	qos       byte
	retention time.Duration
	topics    mqtt.Topics
	log       Logger

	mu      sync.Mutex
	cancels map[string]func() // device ID -> OnUpdate cancel
	started bool

	// Shutdown coordination
	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("bridge: device source is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("bridge: MQTT client is required")
	}

	log := opts.Logger
	if log == nil {
		log = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		source:    opts.Source,
		mqtt:      opts.MQTT,
		history:   opts.History,
		telemetry: opts.Telemetry,
		qos:       opts.QoS,
		retention: opts.Retention,
		log:       log,
		cancels:   make(map[string]func()),
		ctx:       ctx,
		ctxCancel: cancel,
	}, nil
}

// Start subscribes to command topics, attaches state listeners to every
// appliance, and publishes initial retained state. It returns after setup;
// ongoing work happens on listener callbacks and background goroutines.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return fmt.Errorf("bridge: already started")
	}
	b.started = true
	b.mu.Unlock()

	if err := b.mqtt.Subscribe(b.topics.AllDeviceCommands(), b.qos, b.handleCommandMessage); err != nil {
		return fmt.Errorf("bridge: subscribing to commands: %w", err)
	}

	devices := b.source.Devices()
	for _, d := range devices {
		b.attach(d)
	}

	if b.history != nil && b.retention > 0 {
		b.wg.Add(1)
		go b.pruneLoop()
	}

	b.log.Info("bridge started", "devices", len(devices))
	return nil
}

// Stop detaches all listeners and halts background work. Safe to call more
// than once. Pending history writes are allowed to finish.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()

		b.mu.Lock()
		for id, cancel := range b.cancels {
			cancel()
			delete(b.cancels, id)
		}
		b.mu.Unlock()

		b.wg.Wait()

		b.publishAvailabilityAll("offline")
		b.log.Info("bridge stopped")
	})
}

// attach wires a single appliance: registers the update listener, publishes
// the current state retained, and marks the device online.
func (b *Bridge) attach(d device.Device) {
	id := d.ID()

	b.mu.Lock()
	if _, ok := b.cancels[id]; ok {
		b.mu.Unlock()
		return // already attached
	}
	cancel := d.OnUpdate(func(ev device.Event) {
		b.handleUpdate(d, ev.State)
	})
	b.cancels[id] = cancel
	b.mu.Unlock()

	b.publishAvailability(d, "online")
	b.handleUpdate(d, d.Data())
}

// handleUpdate publishes a state snapshot and feeds the optional sinks.
func (b *Bridge) handleUpdate(d device.Device, state map[string]any) {
	msg := StateMessage{
		DeviceID:  d.ID(),
		Class:     d.Class(),
		Name:      d.Name(),
		State:     state,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.log.Error("failed to marshal state", "device_id", d.ID(), "error", err)
		return
	}

	topic := b.topics.DeviceState(d.Class(), d.ID())
	if err := b.mqtt.Publish(topic, payload, b.qos, true); err != nil {
		b.log.Error("failed to publish state", "topic", topic, "error", err)
	}

	if b.history != nil {
		if err := b.history.RecordState(b.ctx, d.Class(), d.ID(), state); err != nil {
			b.log.Warn("history write skipped", "device_id", d.ID(), "error", err)
		}
	}

	if b.telemetry != nil {
		b.telemetry.WriteStateSnapshot(d.Class(), d.ID(), state)
	}
}

// handleCommandMessage routes an inbound command message to its appliance.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		return fmt.Errorf("bridge: malformed command topic %q", topic)
	}
	deviceID := parts[minTopicParts-1]

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.publishAckRaw(parts[minTopicParts-2], deviceID,
			newAckError(CommandMessage{}, deviceID, ErrCodeInvalidPayload, err.Error()))
		return fmt.Errorf("bridge: parsing command: %w", err)
	}

	d, err := b.source.Device(deviceID)
	if err != nil {
		b.publishAckRaw(parts[minTopicParts-2], deviceID,
			newAckError(cmd, deviceID, ErrCodeUnknownDevice, err.Error()))
		return fmt.Errorf("bridge: %w", err)
	}

	b.log.Info("received command",
		"command_id", cmd.ID,
		"device_id", deviceID,
		"command", cmd.Command)

	b.publishAck(d, newAck(cmd, deviceID, AckAccepted))

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if code, err := b.execute(ctx, d, cmd); err != nil {
		b.publishAck(d, newAckError(cmd, deviceID, code, err.Error()))
		return fmt.Errorf("bridge: executing %s: %w", cmd.Command, err)
	}

	b.publishAck(d, newAck(cmd, deviceID, AckCompleted))
	b.recordCommandEvent(d, cmd)
	return nil
}

// execute dispatches a parsed command to the appliance. The returned string
// is the ack error code when err is non-nil.
func (b *Bridge) execute(ctx context.Context, d device.Device, cmd CommandMessage) (string, error) {
	switch cmd.Command {
	case "clean":
		c, ok := d.(cleanStarter)
		if !ok {
			return ErrCodeUnsupported, fmt.Errorf("%s does not support clean cycles", d.Class())
		}
		if err := c.StartCleanCycle(ctx); err != nil {
			return ErrCodeCloudError, err
		}
		return "", nil

	case "nightlight":
		n, ok := d.(nightLightSetter)
		if !ok {
			return ErrCodeUnsupported, fmt.Errorf("%s does not support a night light", d.Class())
		}
		on, ok := cmd.Parameters["on"].(bool)
		if !ok {
			return ErrCodeInvalidParameters, fmt.Errorf("'on' boolean parameter is required")
		}
		if err := n.SetNightLight(ctx, on); err != nil {
			return ErrCodeCloudError, err
		}
		return "", nil

	case "feed":
		f, ok := d.(foodDispenser)
		if !ok {
			return ErrCodeUnsupported, fmt.Errorf("%s does not dispense food", d.Class())
		}
		portion := 0.0 // zero lets the device apply its default portion
		if raw, present := cmd.Parameters["portion"]; present {
			v, ok := raw.(float64)
			if !ok || v < 0 {
				return ErrCodeInvalidParameters, fmt.Errorf("'portion' must be a non-negative number")
			}
			portion = v
		}
		if err := f.Feed(ctx, portion); err != nil {
			return ErrCodeCloudError, err
		}
		return "", nil

	case "set_schedule":
		s, ok := d.(mealScheduler)
		if !ok {
			return ErrCodeUnsupported, fmt.Errorf("%s does not support meal schedules", d.Class())
		}
		meals, err := decodeMeals(cmd.Parameters["meals"])
		if err != nil {
			return ErrCodeInvalidParameters, err
		}
		if err := s.SetMealSchedule(ctx, meals); err != nil {
			return ErrCodeCloudError, err
		}
		return "", nil

	case "refresh":
		if err := d.Refresh(ctx); err != nil {
			return ErrCodeCloudError, err
		}
		return "", nil

	default:
		return ErrCodeInvalidCommand, fmt.Errorf("unknown command %q", cmd.Command)
	}
}

// decodeMeals converts the loosely-typed 'meals' parameter into the device
// package's Meal slice via a JSON round-trip.
func decodeMeals(raw any) ([]device.Meal, error) {
	if raw == nil {
		return nil, fmt.Errorf("'meals' parameter is required")
	}
	blob, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("'meals' is not encodable: %w", err)
	}
	var meals []device.Meal
	if err := json.Unmarshal(blob, &meals); err != nil {
		return nil, fmt.Errorf("'meals' must be an array of meal objects: %w", err)
	}
	return meals, nil
}

// recordCommandEvent persists a completed command as a discrete device event.
func (b *Bridge) recordCommandEvent(d device.Device, cmd CommandMessage) {
	if b.history == nil {
		return
	}
	payload := map[string]any{"command_id": cmd.ID}
	for k, v := range cmd.Parameters {
		payload[k] = v
	}
	if err := b.history.RecordEvent(b.ctx, d.Class(), d.ID(), cmd.Command, payload); err != nil {
		b.log.Warn("event write skipped", "device_id", d.ID(), "error", err)
	}
}

// publishAck publishes an acknowledgement on the device's ack topic.
func (b *Bridge) publishAck(d device.Device, ack AckMessage) {
	b.publishAckRaw(d.Class(), d.ID(), ack)
}

// publishAckRaw publishes an ack when only topic segments are known, which
// happens for commands addressed to unknown devices.
func (b *Bridge) publishAckRaw(class, deviceID string, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.log.Error("failed to marshal ack", "error", err)
		return
	}
	topic := b.topics.DeviceAck(class, deviceID)
	if err := b.mqtt.Publish(topic, payload, b.qos, false); err != nil {
		b.log.Error("failed to publish ack", "topic", topic, "error", err)
	}
}

// publishAvailability marks a single device online or offline.
func (b *Bridge) publishAvailability(d device.Device, status string) {
	topic := b.topics.DeviceAvailability(d.Class(), d.ID())
	if err := b.mqtt.Publish(topic, []byte(status), b.qos, true); err != nil {
		b.log.Error("failed to publish availability", "topic", topic, "error", err)
	}
}

// publishAvailabilityAll marks every known device with the given status.
func (b *Bridge) publishAvailabilityAll(status string) {
	for _, d := range b.source.Devices() {
		b.publishAvailability(d, status)
	}
}

// pruneLoop periodically removes history rows past the retention window.
func (b *Bridge) pruneLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			removed, err := b.history.Prune(ctx, b.retention)
			cancel()
			if err != nil {
				b.log.Warn("history prune failed", "error", err)
			} else if removed > 0 {
				b.log.Debug("history pruned", "rows", removed)
			}
		}
	}
}
