// Luma Sim - fake device traffic generator.
//
// Publishes simulated sensor readings and actuator states on the
// home/ MQTT namespace so the core daemon and dashboard can be
// developed without physical hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lumahome/luma-core/internal/infrastructure/config"
	"github.com/lumahome/luma-core/internal/infrastructure/logging"
	"github.com/lumahome/luma-core/internal/infrastructure/mqtt"
	"github.com/lumahome/luma-core/internal/sim"
)

var version = "dev"

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := flag.String("config", getConfigPath(), "path to config file")
	flag.Parse()

	//nolint:errcheck // Missing .env is the common case
	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, "lumasim", version)
	log.Info("starting Luma Sim", "version", version)

	// Distinct client ID so the simulator can run next to the daemon.
	cfg.MQTT.Broker.ClientID += "-sim"

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

	simulation := sim.New(log, cfg.GetTickInterval(), byte(cfg.MQTT.QoS))
	if err := simulation.Start(ctx, mqttClient); err != nil {
		return fmt.Errorf("starting simulation: %w", err)
	}

	<-ctx.Done()

	log.Info("shutdown signal received")
	select {
	case <-simulation.Done():
	case <-time.After(2 * time.Second):
	}

	log.Info("Luma Sim stopped")
	return nil
}

func getConfigPath() string {
	if path := os.Getenv("LUMA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
