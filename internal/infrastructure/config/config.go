package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Millstream processor.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Database   DatabaseConfig   `yaml:"database"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Health     HealthConfig     `yaml:"health"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Topics    []string            `yaml:"topics"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
// Reconnection retries indefinitely; only the backoff bounds are tunable.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// DatabaseConfig contains SQLite database settings for the machine registry.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// PipelineConfig contains message processing settings.
type PipelineConfig struct {
	// QueueSize bounds the channel between the ingestion client and the
	// transform workers. A full queue blocks the MQTT handler, which is
	// the backpressure mechanism.
	QueueSize int `yaml:"queue_size"`

	// Workers is the number of transform+detect goroutines.
	Workers int `yaml:"workers"`

	// BatchSize is the maximum number of points per write batch.
	BatchSize int `yaml:"batch_size"`

	// FlushInterval is the maximum age of a batch before it is flushed (seconds).
	FlushInterval int `yaml:"flush_interval"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig contains the flush retry policy settings.
type RetryConfig struct {
	MaxAttempts  int     `yaml:"max_attempts"`
	InitialDelay int     `yaml:"initial_delay_ms"`
	MaxDelay     int     `yaml:"max_delay_ms"`
	Multiplier   float64 `yaml:"multiplier"`
	Jitter       float64 `yaml:"jitter"`
}

// ThresholdsConfig maps metric names to warning/critical threshold pairs.
type ThresholdsConfig map[string]ThresholdPair

// ThresholdPair declares the warning and critical levels for one metric.
type ThresholdPair struct {
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
}

// HealthConfig contains health monitor settings.
type HealthConfig struct {
	// SampleInterval is how often process resources are sampled (seconds).
	SampleInterval int `yaml:"sample_interval"`

	// Component is the tag value attached to health samples.
	Component string `yaml:"component"`

	// FlushWindow is how many recent flush results feed the readiness signal.
	FlushWindow int `yaml:"flush_window"`
}

// APIConfig contains the liveness/metrics HTTP server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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
// Environment variables follow the pattern: MILLSTREAM_SECTION_KEY
// For example: MILLSTREAM_MQTT_HOST, MILLSTREAM_INFLUXDB_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
//
// Threshold defaults mirror the plant commissioning values: temperature and
// vibration carry warning/critical pairs from the machine data sheets, power
// warns at sustained draw above 5 kW.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "millstream-processor",
			},
			QoS: 1,
			Topics: []string{
				"/plant/data/+",
				"/plant/tracking/+",
				"/plant/alerts/+",
			},
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:    "http://localhost:8086",
			Org:    "factory",
			Bucket: "industrial_data",
		},
		Database: DatabaseConfig{
			Path:        "./data/millstream.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Pipeline: PipelineConfig{
			QueueSize:     256,
			Workers:       4,
			BatchSize:     100,
			FlushInterval: 5,
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 200,
				MaxDelay:     5000,
				Multiplier:   2.0,
				Jitter:       0.2,
			},
		},
		Thresholds: ThresholdsConfig{
			"temperature":     {Warning: 80.0, Critical: 90.0},
			"vibration_level": {Warning: 2.5, Critical: 3.0},
			"power":           {Warning: 5.0, Critical: 7.5},
		},
		Health: HealthConfig{
			SampleInterval: 30,
			Component:      "event_processor",
			FlushWindow:    5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MILLSTREAM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("MILLSTREAM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MILLSTREAM_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("MILLSTREAM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MILLSTREAM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("MILLSTREAM_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("MILLSTREAM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("MILLSTREAM_INFLUXDB_ORG"); v != "" {
		cfg.InfluxDB.Org = v
	}
	if v := os.Getenv("MILLSTREAM_INFLUXDB_BUCKET"); v != "" {
		cfg.InfluxDB.Bucket = v
	}

	// Database
	if v := os.Getenv("MILLSTREAM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Pipeline
	if v := os.Getenv("MILLSTREAM_PIPELINE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.BatchSize = n
		}
	}
	if v := os.Getenv("MILLSTREAM_PIPELINE_FLUSH_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.FlushInterval = n
		}
	}
}

// Validate checks the configuration for errors.
//
// Missing connection parameters are fatal: the processor must not start in
// a partially configured state.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if len(c.MQTT.Topics) == 0 {
		errs = append(errs, "mqtt.topics must list at least one topic pattern")
	}

	// InfluxDB validation - all connection parameters are required
	if c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required")
	}
	if c.InfluxDB.Token == "" {
		errs = append(errs, "influxdb.token is required (set MILLSTREAM_INFLUXDB_TOKEN environment variable)")
	}
	if c.InfluxDB.Org == "" {
		errs = append(errs, "influxdb.org is required")
	}
	if c.InfluxDB.Bucket == "" {
		errs = append(errs, "influxdb.bucket is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Pipeline validation
	if c.Pipeline.QueueSize < 1 {
		errs = append(errs, "pipeline.queue_size must be at least 1")
	}
	if c.Pipeline.BatchSize < 1 {
		errs = append(errs, "pipeline.batch_size must be at least 1")
	}
	if c.Pipeline.FlushInterval < 1 {
		errs = append(errs, "pipeline.flush_interval must be at least 1 second")
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, "pipeline.workers must be at least 1")
	}
	if c.Pipeline.Retry.MaxAttempts < 1 {
		errs = append(errs, "pipeline.retry.max_attempts must be at least 1")
	}

	// Health validation
	if c.Health.SampleInterval < 1 {
		errs = append(errs, "health.sample_interval must be at least 1 second")
	}

	// Thresholds: critical must sit above warning for the pair to be meaningful
	for metric, pair := range c.Thresholds {
		if pair.Critical <= pair.Warning {
			errs = append(errs, fmt.Sprintf("thresholds.%s: critical (%g) must be higher than warning (%g)",
				metric, pair.Critical, pair.Warning))
		}
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// FlushMaxAge returns the batch flush interval as a Duration.
func (c *Config) FlushMaxAge() time.Duration {
	return time.Duration(c.Pipeline.FlushInterval) * time.Second
}

// SampleInterval returns the health monitor period as a Duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Health.SampleInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
