// pawlinkd - smart pet appliance bridge daemon
//
// pawlinkd connects a pawlink cloud account to a local MQTT broker. It
// discovers the appliances on the account, keeps their state current via
// polling or shared WebSocket subscriptions, republishes state changes as
// retained MQTT messages, and dispatches MQTT commands back to the vendor
// cloud. State history is optionally persisted to SQLite and forwarded to
// InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/strayware/pawlink/migrations"

	"github.com/strayware/pawlink"
	"github.com/strayware/pawlink/internal/bridge"
	"github.com/strayware/pawlink/internal/infrastructure/config"
	"github.com/strayware/pawlink/internal/infrastructure/database"
	"github.com/strayware/pawlink/internal/infrastructure/influxdb"
	"github.com/strayware/pawlink/internal/infrastructure/logging"
	"github.com/strayware/pawlink/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds how long StopUpdates may take on exit.
const shutdownTimeout = 10 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting pawlinkd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Set up the cloud account
	account, err := pawlink.NewAccount(pawlink.Config{
		Token:  cfg.Account.Token,
		UserID: cfg.Account.UserID,
		Endpoints: pawlink.Endpoints{
			Gen3API:   cfg.Account.Endpoints.Gen3API,
			Gen4API:   cfg.Account.Endpoints.Gen4API,
			Gen4WS:    cfg.Account.Endpoints.Gen4WS,
			FeederAPI: cfg.Account.Endpoints.FeederAPI,
			FeederWS:  cfg.Account.Endpoints.FeederWS,
		},
		PollInterval:  cfg.GetPollInterval(),
		ReconnectSeed: cfg.GetReconnectSeed(),
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	// Discover appliances
	if err := account.Connect(ctx); err != nil {
		return fmt.Errorf("connecting account: %w", err)
	}
	log.Info("account connected", "devices", len(account.Devices()))

	bridgeOpts := bridge.Options{
		Source: account,
		MQTT:   nil, // set below once the broker connection is up
		QoS:    byte(cfg.MQTT.QoS),
		Logger: log,
	}

	// Open history database (optional)
	var db *database.DB
	if cfg.History.Enabled {
		var openErr error
		db, openErr = database.Open(database.Config{
			Path:        cfg.History.Path,
			WALMode:     cfg.History.WALMode,
			BusyTimeout: cfg.History.BusyTimeout,
		})
		if openErr != nil {
			return fmt.Errorf("opening history database: %w", openErr)
		}
		defer func() {
			log.Info("closing history database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing history database", "error", closeErr)
			}
		}()
		log.Info("history database connected", "path", cfg.History.Path)

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		bridgeOpts.History = bridge.NewHistory(db)
		bridgeOpts.Retention = time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
	} else {
		log.Info("history disabled")
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	bridgeOpts.MQTT = mqttClient

	// Set up MQTT logging callbacks
	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		bridgeOpts.Telemetry = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the bridge
	b, err := bridge.New(bridgeOpts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := b.Start(); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		b.Stop()
	}()

	// Start live updates for every appliance
	if err := account.StartUpdates(ctx); err != nil {
		return fmt.Errorf("starting updates: %w", err)
	}
	defer func() {
		log.Info("stopping updates")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if stopErr := account.StopUpdates(stopCtx); stopErr != nil {
			log.Error("error stopping updates", "error", stopErr)
		}
	}()
	log.Info("live updates started")

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls unwind in reverse order:
	// 1. Stop updates (detaches transports)
	// 2. Stop bridge (publishes offline availability)
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. History database (if enabled)

	log.Info("pawlinkd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PAWLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PAWLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// db and influxClient may be nil if disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("history database: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
