package config

import (
	"time"

	"github.com/clauselens/clauselens/internal/ailink"
	"github.com/clauselens/clauselens/internal/core/segment"
)

// Config represents the complete application configuration. Values are
// layered in this order, later layers winning:
// Layer 1: built-in defaults (setDefaults)
// Layer 2: config file ($XDG_CONFIG_HOME/clauselens/config.yaml or ./config)
// Layer 3: CLAUSELENS_* environment variables and runtime overrides
type Config struct {
	Server        ServerConfig    `mapstructure:"server"`
	Store         StoreConfig     `mapstructure:"store"`
	AILink        ailink.Config   `mapstructure:"ailink"`
	Segment       segment.Options `mapstructure:"segment"`
	HTTPRateLimit RateLimitConfig `mapstructure:"http_rate_limit"`
	Sessions      SessionConfig   `mapstructure:"sessions"`
	Logging       LoggingConfig   `mapstructure:"logging"`
	Metrics       MetricsConfig   `mapstructure:"metrics"`
	Health        HealthConfig    `mapstructure:"health"`
	Debug         DebugConfig     `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxBodyBytes caps request bodies on the document endpoints.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
	// Memory keeps sessions and the clause cache in process memory instead
	// of libsql.
	Memory bool `mapstructure:"memory"`
}

// RateLimitConfig throttles inbound requests per client IP.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// SessionConfig controls document session retention.
type SessionConfig struct {
	// TTL drops sessions not touched for this long. Zero keeps them.
	TTL time.Duration `mapstructure:"ttl"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	// Metrics are also available at the main HTTP port in JSON format
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`
}
