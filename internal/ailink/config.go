package ailink

import "time"

// Defaults for the Gemini provider.
const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 60 * time.Second
)

// Well-known pool names.
const (
	PoolAnalysis = "analysis"
	PoolChat     = "chat"
)

// Config defines provider and key pool configuration for AILink.
type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`

	// PromptsDir allows operators to override the built-in prompt set.
	PromptsDir string `mapstructure:"prompts_dir"`

	Debug DebugConfig `mapstructure:"debug"`

	// Pools are keyed by pool name (e.g. "analysis", "chat").
	Pools map[string]PoolConfig `mapstructure:"pools"`
}

// DebugConfig controls optional diagnostics.
type DebugConfig struct {
	// TraceFile, when set, receives an NDJSON trace of every provider call.
	TraceFile string `mapstructure:"trace_file"`
}

// PoolConfig describes one named key pool.
type PoolConfig struct {
	// Env names the environment variable holding comma-separated API keys.
	Env    string        `mapstructure:"env"`
	Quota  int           `mapstructure:"quota"`
	Window time.Duration `mapstructure:"window"`
	Model  string        `mapstructure:"model"`
}

// DefaultPools returns the stock pool layout.
func DefaultPools() map[string]PoolConfig {
	return map[string]PoolConfig{
		PoolAnalysis: {Env: "GEMINI_KEYS", Quota: DefaultQuota, Window: DefaultWindow},
		PoolChat:     {Env: "GEMINI_KEYS_CHAT", Quota: DefaultQuota, Window: DefaultWindow},
	}
}
