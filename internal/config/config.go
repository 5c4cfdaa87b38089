package config

import "time"

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	CORS     CORSConfig     `mapstructure:"cors" yaml:"cors"`
	AI       AIConfig       `mapstructure:"ai" yaml:"ai"`
	Insights InsightsConfig `mapstructure:"insights" yaml:"insights"`
	Datasets DatasetsConfig `mapstructure:"datasets" yaml:"datasets"`
}

// CacheConfig configures both cache tiers. TTLs are in seconds.
type CacheConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	DB        int    `mapstructure:"db" yaml:"db"`
	Password  string `mapstructure:"password" yaml:"password"`
	TTL       int    `mapstructure:"ttl" yaml:"ttl"`               // persistent tier, default 86400
	MemoryTTL int    `mapstructure:"memory_ttl" yaml:"memory_ttl"` // memory tier, default 300
}

// AuthConfig configures bearer-token validation. Token issuance happens in
// the account service; this side only validates.
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// AIConfig configures the narrative generator.
type AIConfig struct {
	Enabled         bool         `mapstructure:"enabled" yaml:"enabled"`
	Provider        string       `mapstructure:"provider" yaml:"provider"`
	TimeoutMs       int          `mapstructure:"timeout" yaml:"timeout"` // milliseconds
	PromptVersion   string       `mapstructure:"prompt_version" yaml:"prompt_version"`
	DefaultLanguage string       `mapstructure:"default_language" yaml:"default_language"`
	OpenAI          OpenAIConfig `mapstructure:"openai" yaml:"openai"`
}

func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// OpenAIConfig covers any OpenAI-compatible chat-completion endpoint.
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	Model       string  `mapstructure:"model" yaml:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float32 `mapstructure:"temperature" yaml:"temperature"`
}

// InsightsConfig tunes the rule engine thresholds, all in percent.
type InsightsConfig struct {
	WarningThresholdPct float64 `mapstructure:"warning_threshold_pct" yaml:"warning_threshold_pct"`
	AnomalyThresholdPct float64 `mapstructure:"anomaly_threshold_pct" yaml:"anomaly_threshold_pct"`
	NeutralBandPct      float64 `mapstructure:"neutral_band_pct" yaml:"neutral_band_pct"`
	TopSegments         int     `mapstructure:"top_segments" yaml:"top_segments"`
}

type DatasetsConfig struct {
	SeedPath string `mapstructure:"seed_path" yaml:"seed_path"`
}
