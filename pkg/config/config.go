package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is the prefix of all environment variable overrides.
const EnvPrefix = "ADSB1090_"

// Config represents the complete application configuration.
type Config struct {
	Receiver ReceiverConfig `json:"receiver"`
	Tracker  TrackerConfig  `json:"tracker"`
	Display  DisplayConfig  `json:"display"`
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Site     SiteConfig     `json:"site"`
	Log      LogConfig      `json:"log"`
}

// ReceiverConfig describes the raw AVR feed.
type ReceiverConfig struct {
	// Host is the feed hostname (default: "localhost")
	Host string `json:"host"`

	// Port is the feed port (default: 30002, dump1090 raw output)
	Port int `json:"port"`

	// MaxRetries is the number of reconnection attempts before giving up
	MaxRetries int `json:"max_retries"`

	// RetryDelaySeconds is the initial reconnection delay
	RetryDelaySeconds float64 `json:"retry_delay_seconds"`
}

// TrackerConfig contains the aircraft store windows.
type TrackerConfig struct {
	// MaxPairAgeSeconds is the largest gap between an even and an odd CPR
	// fragment that are still combined (default: 10)
	MaxPairAgeSeconds float64 `json:"max_pair_age_seconds"`

	// StaleAfterSeconds is how long an aircraft may stay silent before it is
	// evicted (default: 60)
	StaleAfterSeconds float64 `json:"stale_after_seconds"`

	// SweepIntervalSeconds is the period of the background eviction sweep
	// (default: 5)
	SweepIntervalSeconds float64 `json:"sweep_interval_seconds"`
}

// DisplayConfig controls the console airplane table.
type DisplayConfig struct {
	// Enabled prints the table to stdout
	Enabled bool `json:"enabled"`

	// RefreshPerSecond limits how often the table is redrawn (default: 1)
	RefreshPerSecond float64 `json:"refresh_per_second"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Enabled starts the HTTP API
	Enabled bool `json:"enabled"`

	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`

	// PushIntervalMillis is the websocket update period (default: 1000)
	PushIntervalMillis int `json:"push_interval_ms"`

	// AllowedOrigins lists the CORS origins (default: all)
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig contains position recorder settings.
type DatabaseConfig struct {
	// Enabled turns on the recorder
	Enabled bool `json:"enabled"`

	// Driver is the database driver (postgres, sqlite3)
	Driver string `json:"driver"`

	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name, or the file path for sqlite3
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`

	// RecordIntervalSeconds is how often resolved positions are written
	// (default: 5)
	RecordIntervalSeconds float64 `json:"record_interval_seconds"`

	// RetentionHours is how long position history is kept (default: 24)
	RetentionHours float64 `json:"retention_hours"`
}

// SiteConfig is the receiver's location, used for range and bearing.
type SiteConfig struct {
	// Enabled marks the location as known
	Enabled bool `json:"enabled"`

	// Name is a friendly identifier for this site
	Name string `json:"name"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude"`

	// Elevation in meters above sea level
	Elevation float64 `json:"elevation"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string `json:"level"`

	// File is the JSON log file; empty disables file logging
	File string `json:"file"`

	// MaxSizeMB is the size at which the log file is rotated (default: 10)
	MaxSizeMB int `json:"max_size_mb"`

	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int `json:"max_backups"`

	// MaxAgeDays is how long rotated files are kept (default: 7)
	MaxAgeDays int `json:"max_age_days"`

	// Stderr also writes human-readable logs to stderr
	Stderr bool `json:"stderr"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
// Fields missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Receiver: ReceiverConfig{
			Host:              "localhost",
			Port:              30002,
			MaxRetries:        10,
			RetryDelaySeconds: 1,
		},
		Tracker: TrackerConfig{
			MaxPairAgeSeconds:    10,
			StaleAfterSeconds:    60,
			SweepIntervalSeconds: 5,
		},
		Display: DisplayConfig{
			Enabled:          true,
			RefreshPerSecond: 1,
		},
		Server: ServerConfig{
			Enabled:            false,
			Port:               "8080",
			Host:               "0.0.0.0",
			PushIntervalMillis: 1000,
			AllowedOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Enabled:               false,
			Driver:                "sqlite3",
			Host:                  "localhost",
			Port:                  5432,
			Database:              "adsb1090.db",
			Username:              "adsb1090",
			SSLMode:               "disable",
			MaxOpenConns:          25,
			MaxIdleConns:          5,
			RecordIntervalSeconds: 5,
			RetentionHours:        24,
		},
		Site: SiteConfig{
			Name: "Receiver",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Stderr:     true,
		},
	}
}

// Validate reports every setting that cannot be used.
func (c *Config) Validate() error {
	var errs []error

	if c.Receiver.Host == "" {
		errs = append(errs, errors.New("receiver.host is empty"))
	}
	if c.Receiver.Port <= 0 || c.Receiver.Port > 65535 {
		errs = append(errs, fmt.Errorf("receiver.port %d out of range", c.Receiver.Port))
	}
	if c.Tracker.MaxPairAgeSeconds <= 0 {
		errs = append(errs, errors.New("tracker.max_pair_age_seconds must be positive"))
	}
	if c.Tracker.StaleAfterSeconds <= 0 {
		errs = append(errs, errors.New("tracker.stale_after_seconds must be positive"))
	}
	if c.Tracker.SweepIntervalSeconds <= 0 {
		errs = append(errs, errors.New("tracker.sweep_interval_seconds must be positive"))
	}
	if c.Display.RefreshPerSecond <= 0 {
		errs = append(errs, errors.New("display.refresh_per_second must be positive"))
	}
	if c.Database.Enabled {
		switch c.Database.Driver {
		case "postgres", "sqlite3":
		default:
			errs = append(errs, fmt.Errorf("database.driver %q not supported", c.Database.Driver))
		}
	}
	if c.Site.Enabled && (c.Site.Latitude < -90 || c.Site.Latitude > 90 ||
		c.Site.Longitude < -180 || c.Site.Longitude > 180) {
		errs = append(errs, errors.New("site coordinates out of range"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q not recognised", c.Log.Level))
	}

	return errors.Join(errs...)
}

// MaxPairAge returns the pairing window as a duration.
func (c TrackerConfig) MaxPairAge() time.Duration {
	return seconds(c.MaxPairAgeSeconds)
}

// StaleAfter returns the eviction threshold as a duration.
func (c TrackerConfig) StaleAfter() time.Duration {
	return seconds(c.StaleAfterSeconds)
}

// SweepInterval returns the sweep period as a duration.
func (c TrackerConfig) SweepInterval() time.Duration {
	return seconds(c.SweepIntervalSeconds)
}

// RetryDelay returns the initial reconnection delay.
func (c ReceiverConfig) RetryDelay() time.Duration {
	return seconds(c.RetryDelaySeconds)
}

// RecordInterval returns the recorder period.
func (c DatabaseConfig) RecordInterval() time.Duration {
	return seconds(c.RecordIntervalSeconds)
}

// Retention returns how long position history is kept.
func (c DatabaseConfig) Retention() time.Duration {
	return seconds(c.RetentionHours * 3600)
}

// PushInterval returns the websocket update period.
func (c ServerConfig) PushInterval() time.Duration {
	return time.Duration(c.PushIntervalMillis) * time.Millisecond
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if host := os.Getenv(EnvPrefix + "HOST"); host != "" {
		c.Receiver.Host = host
	}
	if port := os.Getenv(EnvPrefix + "PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Receiver.Port = p
		}
	}
	if dbPassword := os.Getenv(EnvPrefix + "DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if level := os.Getenv(EnvPrefix + "LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}
