package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Polling interval bounds for the BIOCAT cloud API.
const (
	// MinPollInterval is the hard floor for the polling interval.
	// Intervals below this are rejected at validation.
	MinPollInterval = 10 * time.Second

	// AdvisoryPollInterval is the soft minimum recommended by the API
	// vendor. Intervals between the floor and this value are accepted
	// but logged as a warning at startup.
	AdvisoryPollInterval = 15 * time.Second

	// DefaultPollInterval is used when no interval is configured.
	DefaultPollInterval = 30 * time.Second
)

// Config is the root configuration structure for the BIOCAT bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Biocat   BiocatConfig   `yaml:"biocat"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Database DatabaseConfig `yaml:"database"`
	History  HistoryConfig  `yaml:"history"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BiocatConfig contains the upstream Watercryst cloud API settings.
type BiocatConfig struct {
	// BaseURL is the cloud API endpoint base (no trailing slash).
	BaseURL string `yaml:"base_url"`

	// APIKey is the static per-device credential sent on every request.
	// Never logged. Prefer the BIOCAT_API_KEY environment variable over
	// storing it in the config file.
	APIKey string `yaml:"api_key"`

	// DeviceID is the Gray Logic identifier for this appliance.
	// Used in MQTT topics and entity ids, not in API paths.
	DeviceID string `yaml:"device_id"`

	// PollIntervalSeconds is the fetch cycle cadence in seconds.
	// Minimum 10, advisory minimum 15, default 30.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`

	// RequestTimeoutSeconds is the per-call HTTP timeout in seconds.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
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

// APIConfig contains the read-only status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
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

// DatabaseConfig contains SQLite database settings for the history store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HistoryConfig contains snapshot history retention settings.
type HistoryConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
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
// Environment variables follow the pattern: BIOCAT_SECTION_KEY
// For example: BIOCAT_API_KEY, BIOCAT_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Biocat: BiocatConfig{
			BaseURL:               "https://appapi.watercryst.com",
			DeviceID:              "biocat",
			PollIntervalSeconds:   int(DefaultPollInterval / time.Second),
			RequestTimeoutSeconds: 10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-biocat",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8094,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/biocat.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BIOCAT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Upstream API
	if v := os.Getenv("BIOCAT_API_KEY"); v != "" {
		cfg.Biocat.APIKey = v
	}
	if v := os.Getenv("BIOCAT_BASE_URL"); v != "" {
		cfg.Biocat.BaseURL = v
	}
	if v := os.Getenv("BIOCAT_POLL_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Biocat.PollIntervalSeconds = secs
		}
	}

	// MQTT
	if v := os.Getenv("BIOCAT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BIOCAT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BIOCAT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("BIOCAT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("BIOCAT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Upstream API validation
	if c.Biocat.BaseURL == "" {
		errs = append(errs, "biocat.base_url is required")
	}
	if strings.HasSuffix(c.Biocat.BaseURL, "/") {
		errs = append(errs, "biocat.base_url must not have a trailing slash")
	}
	if c.Biocat.APIKey == "" {
		errs = append(errs, "biocat.api_key is required (set BIOCAT_API_KEY environment variable)")
	}
	if c.Biocat.DeviceID == "" {
		errs = append(errs, "biocat.device_id is required")
	}
	if c.PollInterval() < MinPollInterval {
		errs = append(errs, fmt.Sprintf("biocat.poll_interval_seconds must be at least %d", int(MinPollInterval/time.Second)))
	}
	if c.Biocat.RequestTimeoutSeconds < 1 {
		errs = append(errs, "biocat.request_timeout_seconds must be at least 1")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// History validation
	if c.History.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when history is enabled")
	}
	if c.History.RetentionDays < 0 {
		errs = append(errs, "history.retention_days must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollInterval returns the fetch cycle cadence as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Biocat.PollIntervalSeconds) * time.Second
}

// BelowAdvisoryInterval reports whether the configured interval is valid
// but under the vendor's advisory minimum. Callers should warn once at
// startup when this is true.
func (c *Config) BelowAdvisoryInterval() bool {
	interval := c.PollInterval()
	return interval >= MinPollInterval && interval < AdvisoryPollInterval
}

// RequestTimeout returns the per-call HTTP timeout as a Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Biocat.RequestTimeoutSeconds) * time.Second
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
