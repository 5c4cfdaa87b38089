package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration with the usual priority order:
// 1. Environment variables (COMPARA_*)
// 2. Configuration file (config.yaml)
// 3. Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/compara/")
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("COMPARA")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file - env vars and defaults only.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 86400)
	v.SetDefault("cache.memory_ttl", 300)

	v.SetDefault("auth.enabled", true)
	// Empty defaults keep env-only secrets visible to Unmarshal.
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("cache.password", "")
	v.SetDefault("ai.openai.api_key", "")
	v.SetDefault("ai.openai.base_url", "")
	v.SetDefault("datasets.seed_path", "")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("cors.max_age", 3600)

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.timeout", 30000)
	v.SetDefault("ai.prompt_version", "v1")
	v.SetDefault("ai.default_language", "es")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.max_tokens", 800)
	v.SetDefault("ai.openai.temperature", 0.3)

	v.SetDefault("insights.warning_threshold_pct", 10)
	v.SetDefault("insights.anomaly_threshold_pct", 30)
	v.SetDefault("insights.neutral_band_pct", 1)
	v.SetDefault("insights.top_segments", 3)
}

func validateConfig(config *Config) error {
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port: %d", config.Port)
	}
	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %d", config.Cache.TTL)
	}
	if config.Cache.MemoryTTL <= 0 {
		return fmt.Errorf("cache.memory_ttl must be positive, got %d", config.Cache.MemoryTTL)
	}
	if config.Auth.Enabled && config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if config.AI.Enabled && config.AI.Provider == "openai" && config.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("ai.openai.api_key is required when the AI path is enabled")
	}
	if config.Insights.TopSegments <= 0 {
		return fmt.Errorf("insights.top_segments must be positive, got %d", config.Insights.TopSegments)
	}
	return nil
}
