package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/strayware/pawlink/internal/infrastructure/config"
)

// testConfig returns a broker config for tests that never dial; connection
// behaviour lives in integration_test.go.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "pawlinkd-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// disconnectedClient has never dialed; every operation must fail on
// validation or connection state before touching the network.
func disconnectedClient() *Client {
	return &Client{
		cfg:  testConfig(),
		subs: make(map[string]subscription),
	}
}

// mockLogger records messages handed to the client's Logger.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// fakeMessage satisfies paho's Message interface for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// ===== Option building =====

func TestClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "bridge"
	cfg.Auth.Password = "secret"

	opts := clientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("got %d brokers, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", got)
	}
	if opts.ClientID != "pawlinkd-test" {
		t.Errorf("ClientID = %q, want pawlinkd-test", opts.ClientID)
	}
	if opts.Username != "bridge" {
		t.Errorf("Username = %q, want bridge", opts.Username)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect should be enabled")
	}
}

func TestClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := clientOptions(cfg)

	if got := opts.Servers[0].String(); got != "ssl://127.0.0.1:8883" {
		t.Errorf("broker URL = %q, want ssl://127.0.0.1:8883", got)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig should be set when TLS is enabled")
	}
}

func TestStatusPayload(t *testing.T) {
	var doc struct {
		Status   string `json:"status"`
		ClientID string `json:"client_id"`
		Reason   string `json:"reason"`
	}

	if err := json.Unmarshal([]byte(statusPayload("pawlinkd-test", "online", "")), &doc); err != nil {
		t.Fatalf("online payload is not JSON: %v", err)
	}
	if doc.Status != "online" || doc.ClientID != "pawlinkd-test" {
		t.Errorf("online payload = %+v", doc)
	}
	if doc.Reason != "" {
		t.Errorf("online payload carries reason %q, want none", doc.Reason)
	}

	offline := statusPayload("pawlinkd-test", "offline", "graceful_shutdown")
	if err := json.Unmarshal([]byte(offline), &doc); err != nil {
		t.Fatalf("offline payload is not JSON: %v", err)
	}
	if doc.Reason != "graceful_shutdown" {
		t.Errorf("offline reason = %q, want graceful_shutdown", doc.Reason)
	}
}

// ===== Connection state =====

func TestCloseNeverConnected(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestHealthCheckCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := disconnectedClient().HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	err := disconnectedClient().HealthCheck(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// ===== Publish and Subscribe validation =====

func TestPublishValidation(t *testing.T) {
	client := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"qos out of range", "pawlink/state/feeder/f-1", []byte("x"), 3, ErrInvalidQoS},
		{"oversize payload", "pawlink/state/feeder/f-1", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "pawlink/state/feeder/f-1", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := disconnectedClient()
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"qos out of range", "pawlink/command/+/+", 3, handler, ErrInvalidQoS},
		{"nil handler", "pawlink/command/+/+", 1, nil, ErrSubscribeFailed},
		{"not connected", "pawlink/command/+/+", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ===== Handler isolation =====

func TestWrapHandlerRecoversPanic(t *testing.T) {
	client := disconnectedClient()
	log := &mockLogger{}
	client.SetLogger(log)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("command handler exploded")
	})

	// Must not propagate the panic to paho's delivery goroutine.
	wrapped(nil, &fakeMessage{topic: "pawlink/command/feeder/f-1", payload: []byte("{}")})

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.errors) != 1 {
		t.Errorf("logged errors = %d, want 1 recovered panic", len(log.errors))
	}
}

func TestWrapHandlerLogsHandlerError(t *testing.T) {
	client := disconnectedClient()
	log := &mockLogger{}
	client.SetLogger(log)

	wrapped := client.wrapHandler(func(string, []byte) error {
		return errors.New("bad payload")
	})
	wrapped(nil, &fakeMessage{topic: "pawlink/command/feeder/f-1", payload: []byte("nonsense")})

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.warns) != 1 {
		t.Errorf("logged warnings = %d, want 1", len(log.warns))
	}
}

func TestWrapHandlerWithoutLogger(t *testing.T) {
	client := disconnectedClient()

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("no logger set")
	})

	// Still absorbs the panic with no logger attached.
	wrapped(nil, &fakeMessage{topic: "pawlink/command/feeder/f-1"})
}

// ===== Topic builders =====

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{
			name: "DeviceState",
			builder: func() string {
				return Topics{}.DeviceState("litterbox-gen4", "G4-001")
			},
			expected: "pawlink/state/litterbox-gen4/G4-001",
		},
		{
			name: "DeviceEvent",
			builder: func() string {
				return Topics{}.DeviceEvent("feeder", "f-1")
			},
			expected: "pawlink/event/feeder/f-1",
		},
		{
			name: "DeviceCommand",
			builder: func() string {
				return Topics{}.DeviceCommand("litterbox-gen3", "lb-1")
			},
			expected: "pawlink/command/litterbox-gen3/lb-1",
		},
		{
			name: "DeviceAck",
			builder: func() string {
				return Topics{}.DeviceAck("litterbox-gen3", "lb-1")
			},
			expected: "pawlink/ack/litterbox-gen3/lb-1",
		},
		{
			name: "DeviceAvailability",
			builder: func() string {
				return Topics{}.DeviceAvailability("feeder", "f-1")
			},
			expected: "pawlink/availability/feeder/f-1",
		},
		{
			name: "SystemStatus",
			builder: func() string {
				return Topics{}.SystemStatus()
			},
			expected: "pawlink/system/status",
		},
		{
			name: "AllDeviceStates",
			builder: func() string {
				return Topics{}.AllDeviceStates()
			},
			expected: "pawlink/state/+/+",
		},
		{
			name: "AllDeviceCommands",
			builder: func() string {
				return Topics{}.AllDeviceCommands()
			},
			expected: "pawlink/command/+/+",
		},
		{
			name: "AllDeviceEvents",
			builder: func() string {
				return Topics{}.AllDeviceEvents()
			},
			expected: "pawlink/event/+/+",
		},
		{
			name: "AllTopics",
			builder: func() string {
				return Topics{}.AllTopics()
			},
			expected: "pawlink/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.builder()
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, result, tt.expected)
			}
		})
	}
}
