// Luma Core - device-state synchronization daemon.
//
// Luma Core bridges the MQTT device namespace and the SQLite device
// registry: it persists device state and sensor history, evaluates
// alert thresholds, dispatches actuator commands, and serves the
// HTTP/WebSocket API the dashboard renders from.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/lumahome/luma-core/migrations"

	"github.com/lumahome/luma-core/internal/api"
	"github.com/lumahome/luma-core/internal/auth"
	"github.com/lumahome/luma-core/internal/command"
	"github.com/lumahome/luma-core/internal/infrastructure/config"
	"github.com/lumahome/luma-core/internal/infrastructure/database"
	"github.com/lumahome/luma-core/internal/infrastructure/influxdb"
	"github.com/lumahome/luma-core/internal/infrastructure/logging"
	"github.com/lumahome/luma-core/internal/infrastructure/mqtt"
	"github.com/lumahome/luma-core/internal/registry"
	"github.com/lumahome/luma-core/internal/seed"
	"github.com/lumahome/luma-core/internal/statesync"
)

// Version information - set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path.
const defaultConfigPath = "configs/config.yaml"

// shutdownDrainTimeout bounds the wait for the sync core to finish
// its in-flight message after the shutdown signal.
const shutdownDrainTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main so deferred
// cleanup executes before the exit code is decided.
func run(ctx context.Context) error {
	configPath := flag.String("config", getConfigPath(), "path to config file")
	runSeed := flag.Bool("seed", false, "seed the demo account and devices, then exit")
	flag.Parse()

	// A .env file is optional; environment overrides still apply.
	//nolint:errcheck // Missing .env is the common case
	godotenv.Load()

	log := logging.Default()
	log.Info("starting Luma Core", "version", version, "commit", commit)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, "lumacore", version)
	log.Info("configuration loaded", "path", *configPath)

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

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())

	deviceRepo := registry.NewSQLiteRepository(db.DB, cfg.History.MaxReadings)
	userRepo := auth.NewSQLiteUserRepository(db.DB)

	if *runSeed {
		if err := seed.New(userRepo, deviceRepo, log).Run(ctx); err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
		return nil
	}

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
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// InfluxDB mirror is optional.
	var metrics statesync.MetricsWriter
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	qos := byte(cfg.MQTT.QoS)
	core := statesync.NewCore(deviceRepo, log, metrics, qos)
	if err := core.Start(ctx, mqttClient); err != nil {
		return fmt.Errorf("starting state sync: %w", err)
	}

	dispatcher := command.NewDispatcher(deviceRepo, mqttClient, log, qos)

	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Devices:  deviceRepo,
		Users:    userRepo,
		Commands: dispatcher,
		Events:   core,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Let the sync core finish its in-flight message.
	select {
	case <-core.Done():
	case <-time.After(shutdownDrainTimeout):
		log.Warn("state sync did not drain in time")
	}

	log.Info("Luma Core stopped")
	return nil
}

// getConfigPath returns the default configuration file path, honouring
// the LUMA_CONFIG environment variable.
func getConfigPath() string {
	if path := os.Getenv("LUMA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections.
// influxClient may be nil when the mirror is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
