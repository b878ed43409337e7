package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
account:
  token: "test-cloud-token"
  user_id: "user-1"
  poll_interval: 60
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
history:
  enabled: true
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Account.UserID != "user-1" {
		t.Errorf("Account.UserID = %q, want %q", cfg.Account.UserID, "user-1")
	}

	if cfg.Account.PollInterval != 60 {
		t.Errorf("Account.PollInterval = %d, want 60", cfg.Account.PollInterval)
	}

	if cfg.History.Path != "/tmp/test.db" {
		t.Errorf("History.Path = %q, want %q", cfg.History.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
account:
  token: ""
  user_id: "user-1"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty account.token, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Account: AccountConfig{
				Token:        "test-cloud-token",
				UserID:       "user-1",
				PollInterval: 30,
			},
			MQTT: MQTTConfig{QoS: 1},
			History: HistoryConfig{
				Enabled: true,
				Path:    "/data/pawlink.db",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Account.Token = "" },
			wantErr: true,
		},
		{
			name:    "missing user id",
			mutate:  func(c *Config) { c.Account.UserID = "" },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Account.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "history enabled without path",
			mutate:  func(c *Config) { c.History.Path = "" },
			wantErr: true,
		},
		{
			name:    "history disabled without path",
			mutate:  func(c *Config) { c.History.Enabled = false; c.History.Path = "" },
			wantErr: false,
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.History.RetentionDays = -1 },
			wantErr: true,
		},
		{
			name:    "influx enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Token = "tok" },
			wantErr: true,
		},
		{
			name: "influx enabled without token",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetDurations(t *testing.T) {
	cfg := &Config{
		Account: AccountConfig{
			PollInterval:  45,
			ReconnectSeed: 10,
		},
	}

	if got := cfg.GetPollInterval().Seconds(); got != 45 {
		t.Errorf("GetPollInterval() = %v, want 45", got)
	}

	if got := cfg.GetReconnectSeed().Seconds(); got != 10 {
		t.Errorf("GetReconnectSeed() = %v, want 10", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("PAWLINK_TOKEN", "env-cloud-token")
	t.Setenv("PAWLINK_USER_ID", "env-user")
	t.Setenv("PAWLINK_MQTT_HOST", "mqtt.example.com")
	t.Setenv("PAWLINK_MQTT_USERNAME", "testuser")
	t.Setenv("PAWLINK_MQTT_PASSWORD", "testpass")
	t.Setenv("PAWLINK_HISTORY_PATH", "/custom/path.db")
	t.Setenv("PAWLINK_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Account.Token != "env-cloud-token" {
		t.Errorf("Account.Token = %q, want %q", cfg.Account.Token, "env-cloud-token")
	}

	if cfg.Account.UserID != "env-user" {
		t.Errorf("Account.UserID = %q, want %q", cfg.Account.UserID, "env-user")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.History.Path != "/custom/path.db" {
		t.Errorf("History.Path = %q, want %q", cfg.History.Path, "/custom/path.db")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.History.Path == "" {
		t.Error("defaultConfig should have non-empty History.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.Account.PollInterval != 30 {
		t.Errorf("defaultConfig Account.PollInterval = %d, want 30", cfg.Account.PollInterval)
	}
}
