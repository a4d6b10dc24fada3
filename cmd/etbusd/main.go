// ET-Bus coordinator daemon.
//
// etbusd joins the multicast bus, tracks every device it hears,
// persists the registry to SQLite, and exposes the registry over a
// REST API. Optional integrations mirror bus traffic to an MQTT
// broker and record telemetry in InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/electronicstech/etbus-core/migrations"

	"github.com/electronicstech/etbus-core/internal/api"
	"github.com/electronicstech/etbus-core/internal/bridges/mqttbridge"
	"github.com/electronicstech/etbus-core/internal/coordinator"
	"github.com/electronicstech/etbus-core/internal/infrastructure/config"
	"github.com/electronicstech/etbus-core/internal/infrastructure/database"
	"github.com/electronicstech/etbus-core/internal/infrastructure/influxdb"
	"github.com/electronicstech/etbus-core/internal/infrastructure/logging"
	"github.com/electronicstech/etbus-core/internal/infrastructure/mqtt"
	"github.com/electronicstech/etbus-core/internal/telemetry"
	"github.com/electronicstech/etbus-core/internal/transport"
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

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ET-Bus coordinator",
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

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Join the multicast bus
	bus, err := transport.JoinMulticast(transport.MulticastConfig{
		Group:     cfg.Bus.Group,
		Port:      cfg.Bus.Port,
		Interface: cfg.Bus.Interface,
	})
	if err != nil {
		return fmt.Errorf("joining multicast group: %w", err)
	}
	defer func() {
		log.Info("leaving multicast group")
		if closeErr := bus.Close(); closeErr != nil {
			log.Error("error closing bus", "error", closeErr)
		}
	}()
	log.Info("multicast bus joined",
		"group", cfg.Bus.Group,
		"port", cfg.Bus.Port,
	)

	// Create and start the hub
	store := coordinator.NewSQLiteStore(db.DB)
	hub := coordinator.New(bus, coordinator.Config{
		HubID:          cfg.Hub.ID,
		PingInterval:   cfg.GetPingInterval(),
		OfflineTimeout: cfg.GetOfflineTimeout(),
	})
	hub.SetStore(store)
	hub.SetLogger(log)

	if startErr := hub.Start(ctx); startErr != nil {
		return fmt.Errorf("starting hub: %w", startErr)
	}
	defer func() {
		log.Info("stopping hub")
		hub.Stop()
	}()
	log.Info("hub started",
		"hub_id", cfg.Hub.ID,
		"known_devices", len(hub.Devices()),
	)

	// Connect to MQTT broker and start the bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
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

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		bridge := mqttbridge.New(hub, mqttClient, byte(cfg.MQTT.QoS))
		bridge.SetLogger(log)
		if bridgeErr := bridge.Start(); bridgeErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", bridgeErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			bridge.Stop()
		}()
		log.Info("MQTT bridge started")
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB and start recording telemetry (optional)
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

		hub.Subscribe(telemetry.NewRecorder(influxClient).Record)
		log.Info("telemetry recorder attached")
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the REST API
	server, err := api.New(api.Deps{
		Config:  cfg.API,
		Hub:     hub,
		History: store,
		Logger:  log,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT bridge, then MQTT (if enabled)
	// 4. Hub, then bus
	// 5. Database

	log.Info("ET-Bus coordinator stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ETBUS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ETBUS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheckTimeout bounds each startup health probe.
const healthCheckTimeout = 5 * time.Second

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
