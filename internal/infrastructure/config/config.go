package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the nixstrav management core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	Registry  RegistryConfig  `yaml:"registry"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Security  SecurityConfig  `yaml:"security"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Readers   ReaderConfig    `yaml:"readers"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
// Path is the management database (users, tags, audit); EventsPath is the
// read-only event log database written by the reader service.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	EventsPath  string `yaml:"events_path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// RegistryConfig contains tag registry settings, including the JSON mirror
// file consumed by out-of-process reader tooling.
type RegistryConfig struct {
	MirrorPath string `yaml:"mirror_path"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings for the live read feed.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// SecurityConfig contains session, cookie and login throttle settings.
type SecurityConfig struct {
	Session  SessionConfig  `yaml:"session"`
	Throttle ThrottleConfig `yaml:"throttle"`
}

// SessionConfig contains server-side session and cookie settings.
// The cookie carries an opaque session ID wrapped in an HS256-signed token.
// Secret must always be overridden in production via NIXSTRAV_SESSION_SECRET.
type SessionConfig struct {
	Secret     string `yaml:"secret"`
	CookieName string `yaml:"cookie_name"`
	TTLMinutes int    `yaml:"ttl_minutes"`
	Secure     bool   `yaml:"secure"`
}

// ThrottleConfig contains login throttle settings.
// After MaxAttempts failures within WindowSec for a (username, origin) pair,
// further attempts are refused for LockMinutes.
type ThrottleConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	WindowSec   int `yaml:"window_sec"`
	LockMinutes int `yaml:"lock_minutes"`
}

// MQTTConfig contains MQTT broker connection settings for reader-bridge ingest.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains the optional tag-read metrics sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// ReaderConfig contains reader presence heuristic thresholds in seconds.
type ReaderConfig struct {
	WarnAfterSec    int `yaml:"warn_after_sec"`
	OfflineAfterSec int `yaml:"offline_after_sec"`
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
// Environment variables follow the pattern: NIXSTRAV_SECTION_KEY
// For example: NIXSTRAV_DATABASE_PATH, NIXSTRAV_SESSION_SECRET
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
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "nixstrav",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/mng.db",
			EventsPath:  "./data/events.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Registry: RegistryConfig{
			MirrorPath: "./data/known_tags.json",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: SecurityConfig{
			Session: SessionConfig{
				CookieName: "nixstrav_mng_session",
				TTLMinutes: 720,
				Secure:     true,
			},
			Throttle: ThrottleConfig{
				MaxAttempts: 5,
				WindowSec:   900,
				LockMinutes: 10,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "nixstrav-mng",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Readers: ReaderConfig{
			WarnAfterSec:    90,
			OfflineAfterSec: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NIXSTRAV_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NIXSTRAV_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NIXSTRAV_EVENTS_DB_PATH"); v != "" {
		cfg.Database.EventsPath = v
	}
	if v := os.Getenv("NIXSTRAV_MIRROR_PATH"); v != "" {
		cfg.Registry.MirrorPath = v
	}

	if v := os.Getenv("NIXSTRAV_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("NIXSTRAV_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Session secret (IMPORTANT: always override in production)
	if v := os.Getenv("NIXSTRAV_SESSION_SECRET"); v != "" {
		cfg.Security.Session.Secret = v
	}

	if v := os.Getenv("NIXSTRAV_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NIXSTRAV_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NIXSTRAV_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("NIXSTRAV_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, "database.busy_timeout must not be negative")
	}

	if c.Registry.MirrorPath == "" {
		errs = append(errs, "registry.mirror_path is required")
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls requires cert_file and key_file when enabled")
	}

	if c.Security.Session.Secret == "" {
		errs = append(errs, "security.session.secret is required (set NIXSTRAV_SESSION_SECRET)")
	}
	if c.Security.Session.TTLMinutes <= 0 {
		errs = append(errs, "security.session.ttl_minutes must be positive")
	}
	if c.Security.Throttle.MaxAttempts <= 0 {
		errs = append(errs, "security.throttle.max_attempts must be positive")
	}
	if c.Security.Throttle.WindowSec <= 0 {
		errs = append(errs, "security.throttle.window_sec must be positive")
	}
	if c.Security.Throttle.LockMinutes <= 0 {
		errs = append(errs, "security.throttle.lock_minutes must be positive")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1 or 2")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled")
		}
	}

	if c.Readers.WarnAfterSec <= 0 || c.Readers.OfflineAfterSec <= c.Readers.WarnAfterSec {
		errs = append(errs, "readers.offline_after_sec must be greater than readers.warn_after_sec (both positive)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
