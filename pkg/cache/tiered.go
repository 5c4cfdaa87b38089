package cache

import (
	"context"
	"errors"

	"github.com/platformbuilds/compara-core/internal/models"
	"github.com/platformbuilds/compara-core/pkg/logger"
)

// TieredCache composes an ordered list of cache tiers, fastest first.
// Reads go through the tiers in order, warming earlier tiers on a later hit;
// writes go to every tier; invalidation clears every tier.
type TieredCache struct {
	tiers  []InsightsCache
	logger logger.Logger
}

// NewTieredCache builds a coordinator over the given tiers. Order matters:
// put the memory tier before the durable one.
func NewTieredCache(log logger.Logger, tiers ...InsightsCache) *TieredCache {
	return &TieredCache{tiers: tiers, logger: log}
}

// FindCached returns the first hit across tiers. A hit on a later tier warms
// every earlier tier (write-through-on-read) so repeated reads stay local.
// A tier read error is logged and treated as a miss for that tier; it never
// prevents falling through.
func (t *TieredCache) FindCached(ctx context.Context, datasetID string, filters models.DashboardFilters, cctx models.CacheContext) (*models.CachedInsightsPayload, error) {
	for i, tier := range t.tiers {
		payload, err := tier.FindCached(ctx, datasetID, filters, cctx)
		if err != nil {
			if !errors.Is(err, models.ErrCacheMiss) {
				t.logger.Warn("Cache tier read failed, falling through", "tier", i, "error", err)
			}
			continue
		}

		for j := 0; j < i; j++ {
			if warmErr := t.tiers[j].SaveToCache(ctx, datasetID, filters, payload, cctx); warmErr != nil {
				t.logger.Warn("Failed to warm cache tier", "tier", j, "error", warmErr)
			}
		}
		return payload, nil
	}
	return nil, models.ErrCacheMiss
}

// SaveToCache writes to every tier in order. The last error encountered is
// returned so the caller learns when the durable tier rejected the write;
// earlier tiers are not rolled back.
func (t *TieredCache) SaveToCache(ctx context.Context, datasetID string, filters models.DashboardFilters, payload *models.CachedInsightsPayload, cctx models.CacheContext) error {
	var lastErr error
	for i, tier := range t.tiers {
		if err := tier.SaveToCache(ctx, datasetID, filters, payload, cctx); err != nil {
			t.logger.Warn("Cache tier write failed", "tier", i, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// Invalidate clears the dataset's entries from every tier. All tiers are
// attempted even if one fails.
func (t *TieredCache) Invalidate(ctx context.Context, datasetID string) error {
	var lastErr error
	for i, tier := range t.tiers {
		if err := tier.Invalidate(ctx, datasetID); err != nil {
			t.logger.Warn("Cache tier invalidation failed", "tier", i, "error", err)
			lastErr = err
		}
	}
	return lastErr
}
