package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("COMPARA_AUTH_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 86400, cfg.Cache.TTL)
	assert.Equal(t, 300, cfg.Cache.MemoryTTL)
	assert.Equal(t, "es", cfg.AI.DefaultLanguage)
	assert.Equal(t, "v1", cfg.AI.PromptVersion)
	assert.False(t, cfg.AI.Enabled)
	assert.Equal(t, float64(10), cfg.Insights.WarningThresholdPct)
	assert.Equal(t, float64(30), cfg.Insights.AnomalyThresholdPct)
	assert.Equal(t, 3, cfg.Insights.TopSegments)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("COMPARA_AUTH_ENABLED", "false")
	t.Setenv("COMPARA_PORT", "9090")
	t.Setenv("COMPARA_CACHE_MEMORY_TTL", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 60, cfg.Cache.MemoryTTL)
}

func TestLoad_AuthRequiresSecret(t *testing.T) {
	t.Setenv("COMPARA_AUTH_ENABLED", "true")
	t.Setenv("COMPARA_AUTH_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestValidateConfig_Bounds(t *testing.T) {
	cfg := &Config{Port: 0, Cache: CacheConfig{TTL: 86400, MemoryTTL: 300}, Insights: InsightsConfig{TopSegments: 3}}
	assert.Error(t, validateConfig(cfg))

	cfg.Port = 8080
	cfg.Cache.TTL = -1
	assert.Error(t, validateConfig(cfg))

	cfg.Cache.TTL = 86400
	assert.NoError(t, validateConfig(cfg))
}
