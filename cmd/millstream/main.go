// Millstream Core - Industrial Telemetry Processor
//
// This is the main entry point for the Millstream Core application.
// Millstream ingests shop-floor telemetry over MQTT, normalizes and
// validates it, flags threshold anomalies, and persists everything to
// InfluxDB in batches. A small HTTP surface exposes liveness, readiness
// and Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/millworks/millstream-core/migrations"

	"github.com/millworks/millstream-core/internal/anomaly"
	"github.com/millworks/millstream-core/internal/api"
	"github.com/millworks/millstream-core/internal/health"
	"github.com/millworks/millstream-core/internal/infrastructure/config"
	"github.com/millworks/millstream-core/internal/infrastructure/database"
	"github.com/millworks/millstream-core/internal/infrastructure/influxdb"
	"github.com/millworks/millstream-core/internal/infrastructure/logging"
	"github.com/millworks/millstream-core/internal/infrastructure/mqtt"
	"github.com/millworks/millstream-core/internal/ingest"
	"github.com/millworks/millstream-core/internal/machine"
	"github.com/millworks/millstream-core/internal/metrics"
	"github.com/millworks/millstream-core/internal/pipeline"
	"github.com/millworks/millstream-core/internal/transform"
	"github.com/millworks/millstream-core/internal/writer"
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
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Millstream Core",
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

	// Open the machine registry database
	db, err := database.Open(database.Config{
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
	log.Info("database opened", "path", db.Path())

	// Run migrations
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Initialise the machine registry
	repo := machine.NewSQLiteRepository(db.DB)
	registry := machine.NewRegistry(repo)
	registry.SetLogger(log)
	if err := registry.RefreshCache(ctx); err != nil {
		return fmt.Errorf("loading machine registry: %w", err)
	}
	log.Info("machine registry initialised", "machines", registry.Count())

	// Shared counters back both the Prometheus endpoint and the health monitor
	counters := metrics.New()
	promReg := prometheus.NewRegistry()
	if err := counters.Register(promReg); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// Connect to InfluxDB
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
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

	// Set up MQTT logging callbacks
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		counters.ConnectionErrors.Add(1)
		log.Warn("MQTT disconnected", "error", err)
	})

	// Batch writer persists points to InfluxDB with retry and readiness tracking
	batchWriter := writer.New(
		influxClient,
		writer.Policy{
			MaxAttempts:  cfg.Pipeline.Retry.MaxAttempts,
			InitialDelay: time.Duration(cfg.Pipeline.Retry.InitialDelay) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.Pipeline.Retry.MaxDelay) * time.Millisecond,
			Multiplier:   cfg.Pipeline.Retry.Multiplier,
			Jitter:       cfg.Pipeline.Retry.Jitter,
		},
		cfg.Pipeline.BatchSize,
		cfg.FlushMaxAge(),
		cfg.Health.FlushWindow,
		counters,
		log,
	)
	defer func() {
		log.Info("flushing remaining batch")
		batchWriter.Close()
	}()

	// Ingestion subscribes the telemetry topics and feeds the worker pool
	ingestor := ingest.New(mqttClient, cfg.MQTT, cfg.Pipeline.QueueSize, counters, log)
	if err := ingestor.Start(ctx); err != nil {
		return fmt.Errorf("starting ingestion: %w", err)
	}
	log.Info("ingestion started", "topics", cfg.MQTT.Topics, "qos", cfg.MQTT.QoS)

	// Processing pipeline: normalize, detect anomalies, submit for batching
	normalizer := transform.New(registry, counters, log)
	detector := anomaly.NewDetector(cfg.Thresholds)
	proc := pipeline.New(normalizer, detector, batchWriter, cfg.Pipeline.Workers, counters, log)
	proc.Start(ctx, ingestor.Messages())
	log.Info("pipeline started", "workers", cfg.Pipeline.Workers)

	// Health monitor samples process resources alongside pipeline error counts
	var probe health.ResourceProbe
	procProbe, err := health.NewProcProbe()
	if err != nil {
		log.Warn("resource probe unavailable, health samples will omit cpu/memory", "error", err)
	} else {
		probe = procProbe
	}
	monitor := health.NewMonitor(probe, batchWriter, counters, cfg.Health.Component, cfg.SampleInterval(), log)
	go monitor.Run(ctx)

	// Liveness/readiness/metrics HTTP server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Conn:     mqttClient,
		Writer:   batchWriter,
		Gatherer: promReg,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Stop the intake first so the workers drain what is already queued,
	// then wait for them before the deferred writer flush runs.
	ingestor.Stop()
	proc.Wait()

	log.Info("Millstream Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MILLSTREAM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MILLSTREAM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if err := influxClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("influxdb: %w", err)
	}

	return nil
}
