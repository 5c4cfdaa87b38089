// Package cache implements the two-tier insights cache: a process-local
// memory tier for repeated reads within one instance, and a Valkey/Redis
// tier that survives restarts and is shared across instances.
package cache

import (
	"context"

	"github.com/platformbuilds/compara-core/internal/models"
)

// Baseline cache context applied when a caller omits language or prompt
// version, so unqualified calls stay cacheable and collide correctly with
// qualified calls using the same defaults.
const (
	DefaultLanguage      = "es"
	DefaultPromptVersion = "v1"
)

// InsightsCache is one cache tier. FindCached returns
// models.ErrCacheMiss when the key is absent or expired.
type InsightsCache interface {
	FindCached(ctx context.Context, datasetID string, filters models.DashboardFilters, cctx models.CacheContext) (*models.CachedInsightsPayload, error)
	SaveToCache(ctx context.Context, datasetID string, filters models.DashboardFilters, payload *models.CachedInsightsPayload, cctx models.CacheContext) error
	Invalidate(ctx context.Context, datasetID string) error
}

// normalizeContext fills in the baseline defaults for omitted fields.
func normalizeContext(cctx models.CacheContext) models.CacheContext {
	if cctx.Language == "" {
		cctx.Language = DefaultLanguage
	}
	if cctx.PromptVersion == "" {
		cctx.PromptVersion = DefaultPromptVersion
	}
	return cctx
}
