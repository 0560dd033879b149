// Package config provides centralized configuration management for ClauseLens.
// Defaults live in code, a YAML config file overrides them, and CLAUSELENS_*
// environment variables plus runtime overrides win over both.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/clauselens/clauselens/internal/ailink"
	"github.com/clauselens/clauselens/internal/core/segment"
)

// Application naming used for paths and environment variables.
const (
	AppName   = "clauselens"
	EnvPrefix = "CLAUSELENS_"
)

var (
	// appConfig holds the current application configuration
	appConfig  *Config
	configFile string
	configMu   sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// SetConfigFile pins the config file read by Load. An empty path restores
// discovery.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = strings.TrimSpace(path)
}

// Load builds the configuration from defaults, the config file, environment
// variables and runtime overrides, in increasing precedence.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	_ = ctx

	v := viper.New()
	setDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Load environment variable overrides
	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if envOverrides == nil {
		envOverrides = map[string]any{}
	}
	if err := applyScalarEnvOverrides(envOverrides); err != nil {
		return nil, err
	}
	applyPoolEnvOverrides(EnvPrefix, envOverrides)

	for _, layer := range append([]map[string]any{envOverrides}, runtimeOverrides...) {
		if len(layer) == 0 {
			continue
		}
		if err := v.MergeConfigMap(layer); err != nil {
			return nil, fmt.Errorf("failed to merge config overrides: %w", err)
		}
	}

	// Unmarshal into typed config struct
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	// Store the loaded config
	setConfig(cfg)

	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func Validate(cfg *Config) error {
	var problems []string
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Segment.MinClauseLength > cfg.Segment.MaxClauseLength {
		problems = append(problems, "segment.min_clause_length exceeds segment.max_clause_length")
	}
	if cfg.HTTPRateLimit.Enabled && cfg.HTTPRateLimit.RPS <= 0 {
		problems = append(problems, "http_rate_limit.rps must be positive when enabled")
	}
	for name, pool := range cfg.AILink.Pools {
		if strings.TrimSpace(pool.Env) == "" {
			problems = append(problems, fmt.Sprintf("ailink.pools.%s.env is required", name))
		}
		if pool.Quota <= 0 {
			problems = append(problems, fmt.Sprintf("ailink.pools.%s.quota must be positive", name))
		}
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func readConfigFile(v *viper.Viper) error {
	configMu.RLock()
	explicit := configFile
	configMu.RUnlock()

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", explicit, err)
		}
		return nil
	}

	if dir := gfconfig.GetAppConfigDir(AppName); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// It's OK if config file doesn't exist, we have defaults
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "SIMPLE")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")
	v.SetDefault("store.memory", false)

	// AILink defaults; pools are filled in by normalize.
	v.SetDefault("ailink.base_url", ailink.DefaultBaseURL)
	v.SetDefault("ailink.model", ailink.DefaultModel)
	v.SetDefault("ailink.default_timeout", ailink.DefaultTimeout.String())
	v.SetDefault("ailink.prompts_dir", "")

	// Segmentation defaults
	v.SetDefault("segment.max_clause_length", segment.DefaultMaxClauseLength)
	v.SetDefault("segment.min_clause_length", segment.DefaultMinClauseLength)

	// Inbound rate limit defaults
	v.SetDefault("http_rate_limit.enabled", true)
	v.SetDefault("http_rate_limit.rps", 5)
	v.SetDefault("http_rate_limit.burst", 20)

	v.SetDefault("sessions.ttl", "24h")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
}

// normalize fills gaps the layered sources leave open.
func normalize(cfg *Config) {
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	defaults := ailink.DefaultPools()
	if len(cfg.AILink.Pools) == 0 {
		cfg.AILink.Pools = defaults
		return
	}
	for name, pool := range cfg.AILink.Pools {
		base, ok := defaults[name]
		if !ok {
			base = ailink.PoolConfig{Quota: ailink.DefaultQuota, Window: ailink.DefaultWindow}
		}
		if strings.TrimSpace(pool.Env) == "" {
			pool.Env = base.Env
		}
		if pool.Quota == 0 {
			pool.Quota = base.Quota
		}
		if pool.Window == 0 {
			pool.Window = base.Window
		}
		cfg.AILink.Pools[name] = pool
	}
	// A partial pools section keeps the stock pools it does not mention.
	for name, pool := range defaults {
		if _, ok := cfg.AILink.Pools[name]; !ok {
			cfg.AILink.Pools[name] = pool
		}
	}
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps {PREFIX}{NAME} environment variables to config paths
func getEnvSpecs() []EnvVarSpec {
	prefix := EnvPrefix

	return []EnvVarSpec{
		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},
		{Name: prefix + "CORS_ORIGINS", Path: []string{"server", "cors_origins"}, Type: EnvString},
		{Name: prefix + "MAX_BODY_BYTES", Path: []string{"server", "max_body_bytes"}, Type: EnvInt},

		// Logging config
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Store config
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},
		{Name: prefix + "DB_MEMORY", Path: []string{"store", "memory"}, Type: EnvBool},

		// AILink config
		{Name: prefix + "AILINK_BASE_URL", Path: []string{"ailink", "base_url"}, Type: EnvString},
		{Name: prefix + "AILINK_MODEL", Path: []string{"ailink", "model"}, Type: EnvString},
		{Name: prefix + "AILINK_DEFAULT_TIMEOUT", Path: []string{"ailink", "default_timeout"}, Type: EnvString},
		{Name: prefix + "AILINK_PROMPTS_DIR", Path: []string{"ailink", "prompts_dir"}, Type: EnvString},
		{Name: prefix + "AILINK_TRACE_FILE", Path: []string{"ailink", "debug", "trace_file"}, Type: EnvString},

		// Segmentation
		{Name: prefix + "SEGMENT_MAX_CLAUSE_LENGTH", Path: []string{"segment", "max_clause_length"}, Type: EnvInt},
		{Name: prefix + "SEGMENT_MIN_CLAUSE_LENGTH", Path: []string{"segment", "min_clause_length"}, Type: EnvInt},

		// Inbound rate limit
		{Name: prefix + "HTTP_RATE_LIMIT_ENABLED", Path: []string{"http_rate_limit", "enabled"}, Type: EnvBool},
		{Name: prefix + "HTTP_RATE_LIMIT_BURST", Path: []string{"http_rate_limit", "burst"}, Type: EnvInt},

		{Name: prefix + "SESSION_TTL", Path: []string{"sessions", "ttl"}, Type: EnvString},

		// Metrics config
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		// Health config
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},

		// Debug config
		{Name: prefix + "DEBUG_ENABLED", Path: []string{"debug", "enabled"}, Type: EnvBool},
	}
}

// applyScalarEnvOverrides handles values the env spec types cannot express.
func applyScalarEnvOverrides(envOverrides map[string]any) error {
	if value := strings.TrimSpace(os.Getenv(EnvPrefix + "HTTP_RATE_LIMIT_RPS")); value != "" {
		rps, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid http rate limit rps: %w", err)
		}
		ensureMap(envOverrides, "http_rate_limit")["rps"] = rps
	}
	return nil
}

// applyPoolEnvOverrides maps CLAUSELENS_AILINK_POOLS_<NAME>_<FIELD> onto
// ailink.pools.<name>.<field>. FIELD is one of ENV, QUOTA, WINDOW or MODEL.
func applyPoolEnvOverrides(prefix string, envOverrides map[string]any) {
	poolPrefix := prefix + "AILINK_POOLS_"

	for _, item := range os.Environ() {
		key, value, ok := strings.Cut(item, "=")
		if !ok || !strings.HasPrefix(key, poolPrefix) {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		applyPoolOverride(envOverrides, key[len(poolPrefix):], value)
	}
}

func applyPoolOverride(envOverrides map[string]any, raw string, value string) {
	idx := strings.LastIndex(raw, "_")
	if idx <= 0 {
		return
	}
	name := toSlug(raw[:idx])
	field := strings.ToLower(raw[idx+1:])
	if name == "" {
		return
	}

	pools := ensureMap(ensureMap(envOverrides, "ailink"), "pools")
	pool := ensureMap(pools, name)
	switch field {
	case "env", "model", "window":
		pool[field] = value
	case "quota":
		if quota, err := strconv.Atoi(value); err == nil {
			pool[field] = quota
		}
	}
}

func ensureMap(parent map[string]any, key string) map[string]any {
	if parent == nil {
		return map[string]any{}
	}
	if existing, ok := parent[key]; ok {
		if typed, ok := existing.(map[string]any); ok {
			return typed
		}
	}
	next := map[string]any{}
	parent[key] = next
	return next
}

func toSlug(raw string) string {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		p := strings.ToLower(strings.TrimSpace(part))
		if p == "" {
			continue
		}
		clean = append(clean, p)
	}
	return strings.Join(clean, "-")
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(AppName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
