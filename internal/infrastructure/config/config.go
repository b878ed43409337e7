package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the pawlink bridge daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Account  AccountConfig  `yaml:"account"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	History  HistoryConfig  `yaml:"history"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AccountConfig contains vendor cloud credentials and tuning.
type AccountConfig struct {
	// Token is the cloud bearer token. Never commit it to the config file;
	// set PAWLINK_TOKEN instead.
	Token string `yaml:"token"`

	// UserID is the cloud account identifier the token belongs to.
	UserID string `yaml:"user_id"`

	// PollInterval is the refresh cadence for poll-only devices, in seconds.
	PollInterval int `yaml:"poll_interval"`

	// ReconnectSeed is the initial WebSocket reconnect delay, in seconds.
	ReconnectSeed int `yaml:"reconnect_seed"`

	// Endpoints overrides individual cloud endpoints (self-hosted gateways,
	// test rigs). Zero fields use the vendor defaults.
	Endpoints EndpointsConfig `yaml:"endpoints"`
}

// EndpointsConfig overrides the vendor cloud endpoints.
type EndpointsConfig struct {
	Gen3API   string `yaml:"gen3_api"`
	Gen4API   string `yaml:"gen4_api"`
	Gen4WS    string `yaml:"gen4_ws"`
	FeederAPI string `yaml:"feeder_api"`
	FeederWS  string `yaml:"feeder_ws"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// HistoryConfig contains SQLite state history settings.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// RetentionDays bounds how long state changes are kept. 0 keeps forever.
	RetentionDays int `yaml:"retention_days"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PAWLINK_SECTION_KEY
// For example: PAWLINK_TOKEN, PAWLINK_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Account: AccountConfig{
			PollInterval:  30,
			ReconnectSeed: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pawlinkd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		History: HistoryConfig{
			Enabled:     true,
			Path:        "./data/pawlink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PAWLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Account credentials belong in the environment, not on disk.
	if v := os.Getenv("PAWLINK_TOKEN"); v != "" {
		cfg.Account.Token = v
	}
	if v := os.Getenv("PAWLINK_USER_ID"); v != "" {
		cfg.Account.UserID = v
	}

	// MQTT
	if v := os.Getenv("PAWLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PAWLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PAWLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// History
	if v := os.Getenv("PAWLINK_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	// InfluxDB
	if v := os.Getenv("PAWLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Account.Token == "" {
		errs = append(errs, "account.token is required (set PAWLINK_TOKEN environment variable)")
	}
	if c.Account.UserID == "" {
		errs = append(errs, "account.user_id is required")
	}
	if c.Account.PollInterval < 1 {
		errs = append(errs, "account.poll_interval must be at least 1 second")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}
	if c.History.RetentionDays < 0 {
		errs = append(errs, "history.retention_days must not be negative")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set PAWLINK_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the device poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Account.PollInterval) * time.Second
}

// GetReconnectSeed returns the WebSocket reconnect seed as a Duration.
func (c *Config) GetReconnectSeed() time.Duration {
	return time.Duration(c.Account.ReconnectSeed) * time.Second
}
