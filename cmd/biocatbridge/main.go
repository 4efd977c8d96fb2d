// BIOCAT Bridge - Watercryst appliance integration for Gray Logic
//
// This is the main entry point for the BIOCAT bridge. It polls the
// Watercryst cloud REST API for the appliance state and exposes the
// appliance on the Gray Logic MQTT bus as sensors, binary sensors,
// switches and buttons. Commands arriving on the bus are forwarded to
// the cloud API and acknowledged.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nerrad567/gray-logic-biocat/internal/api"
	"github.com/nerrad567/gray-logic-biocat/internal/biocat"
	"github.com/nerrad567/gray-logic-biocat/internal/bridge"
	"github.com/nerrad567/gray-logic-biocat/internal/coordinator"
	"github.com/nerrad567/gray-logic-biocat/internal/history"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// deviceInfoTimeout bounds the one-shot device metadata fetch at startup.
const deviceInfoTimeout = 15 * time.Second

func main() {
	// Load .env if present so BIOCAT_API_KEY and friends can live
	// outside the config file. Missing file is not an error.
	_ = godotenv.Load()

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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting BIOCAT bridge",
		"version", version,
		"commit", commit,
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

	if cfg.BelowAdvisoryInterval() {
		log.Warn("poll interval is below the vendor's advisory minimum",
			"interval", cfg.PollInterval().String(),
			"advisory_minimum", config.AdvisoryPollInterval.String(),
		)
	}

	// Upstream cloud API transport. The transport owns the API key;
	// nothing else sees it.
	transport, err := biocat.NewTransport(biocat.TransportConfig{
		BaseURL: cfg.Biocat.BaseURL,
		APIKey:  cfg.Biocat.APIKey,
		Timeout: cfg.RequestTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating transport: %w", err)
	}
	defer transport.CloseIdleConnections()

	// Polling coordinator
	coord, err := coordinator.New(transport, log, coordinator.Options{
		Interval: cfg.PollInterval(),
		OnAuthFailure: func(err error) {
			log.Error("cloud API rejected credentials, check BIOCAT_API_KEY", "error", err)
		},
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	dispatcher, err := coordinator.NewDispatcher(transport, coord, log)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
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

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional telemetry sink)
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		coord.Subscribe(func(snap biocat.Snapshot) {
			influxClient.WriteSnapshot(cfg.Biocat.DeviceID, snap)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Open snapshot history store (optional, backs the status API)
	var historyStore *history.Store
	if cfg.History.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		historyStore = history.New(db, log, cfg.History.RetentionDays)
		if initErr := historyStore.Init(ctx); initErr != nil {
			return fmt.Errorf("initialising history store: %w", initErr)
		}
		historyStore.StartPruning(ctx)
		defer historyStore.Stop()

		coord.Subscribe(func(snap biocat.Snapshot) {
			if recErr := historyStore.Record(context.Background(), snap); recErr != nil {
				log.Warn("recording snapshot history failed", "error", recErr)
			}
		})
	} else {
		log.Info("history disabled")
	}

	// Health reporter announces startup before the first fetch cycle so
	// the bus sees the bridge come up even when the cloud is unreachable.
	healthReporter := bridge.NewHealthReporter(bridge.HealthReporterConfig{
		Version:   version,
		Publisher: mqttClient,
		Stats:     coord,
		Logger:    log,
	})
	if pubErr := healthReporter.PublishStarting(); pubErr != nil {
		log.Warn("publishing starting status failed", "error", pubErr)
	}

	// One-shot device metadata fetch. Failure is not fatal; the
	// appliance metadata just stays absent from health and the API.
	deviceInfo := fetchDeviceInfo(ctx, transport, log)
	if deviceInfo != nil {
		healthReporter.SetDeviceInfo(*deviceInfo)
	}

	// Wire the MQTT bridge before the first fetch cycle so the initial
	// snapshot fans out to the bus immediately.
	biocatBridge, err := bridge.New(bridge.Config{
		DeviceID: cfg.Biocat.DeviceID,
		QoS:      byte(cfg.MQTT.QoS),
	}, mqttClient, coord, dispatcher, log)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if startErr := biocatBridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping bridge")
		biocatBridge.Stop()
	}()
	log.Info("bridge started", "device_id", cfg.Biocat.DeviceID)

	// Start polling. A credential rejection on the first cycle is fatal;
	// other failures are retried on the normal cadence.
	if startErr := coord.Start(ctx); startErr != nil {
		coord.Stop()
		return fmt.Errorf("starting coordinator: %w", startErr)
	}
	defer func() {
		log.Info("stopping coordinator")
		coord.Stop()
	}()

	healthReporter.Start(ctx)
	defer func() {
		log.Info("stopping health reporter")
		healthReporter.Stop()
	}()

	// Start the read-only status API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Provider: coord,
			History:  historyStore,
			Device:   deviceInfo,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, health reporter, coordinator, bridge, history,
	// InfluxDB, MQTT, transport.

	log.Info("BIOCAT bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BIOCAT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BIOCAT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// fetchDeviceInfo reads the appliance metadata once at startup.
//
// Parameters:
//   - ctx: Parent context for cancellation
//   - transport: Cloud API transport
//   - log: Logger instance
//
// Returns:
//   - *biocat.DeviceInfo: Appliance metadata, or nil when the fetch failed
func fetchDeviceInfo(ctx context.Context, transport *biocat.Transport, log *logging.Logger) *biocat.DeviceInfo {
	infoCtx, cancel := context.WithTimeout(ctx, deviceInfoTimeout)
	defer cancel()

	raw, err := transport.Execute(infoCtx, biocat.OpReadDeviceInfo, nil)
	if err != nil {
		log.Warn("fetching device info failed", "error", err)
		return nil
	}

	info, err := biocat.DecodeDeviceInfo(raw)
	if err != nil {
		log.Warn("decoding device info failed", "error", err)
		return nil
	}

	log.Info("device info fetched",
		"name", info.Name,
		"model", info.Model,
		"serial", info.SerialNumber,
		"firmware", info.FirmwareVersion,
	)
	return &info
}
