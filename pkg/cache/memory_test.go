package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/platformbuilds/compara-core/internal/models"
	"github.com/platformbuilds/compara-core/pkg/logger"
)

func testPayload() *models.CachedInsightsPayload {
	return &models.CachedInsightsPayload{
		Insights: []models.Insight{
			{ID: "i-1", DatasetID: "ds-1", Type: models.InsightTypeSummary, Severity: 2},
		},
		NarrativeStatus: models.NarrativeNotRequested,
	}
}

func TestMemoryStore_SetGet(t *testing.T) {
	m := NewMemoryStore(5*time.Minute, logger.NewNop())
	ctx := context.Background()
	filters := models.DashboardFilters{Categorical: map[string][]string{"country": {"CO"}}}

	if _, err := m.FindCached(ctx, "ds-1", filters, models.CacheContext{}); !errors.Is(err, models.ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}

	if err := m.SaveToCache(ctx, "ds-1", filters, testPayload(), models.CacheContext{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := m.FindCached(ctx, "ds-1", filters, models.CacheContext{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Insights) != 1 || got.Insights[0].ID != "i-1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	m := NewMemoryStore(300*time.Second, logger.NewNop())
	ctx := context.Background()
	filters := models.DashboardFilters{}

	if err := m.SaveToCache(ctx, "ds-1", filters, testPayload(), models.CacheContext{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Jump past the TTL; the entry must expire and be evicted.
	m.now = func() time.Time { return time.Now().Add(301 * time.Second) }
	if _, err := m.FindCached(ctx, "ds-1", filters, models.CacheContext{}); !errors.Is(err, models.ErrCacheMiss) {
		t.Fatalf("expected expiry miss, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expired entry not evicted, len=%d", m.Len())
	}
}

func TestMemoryStore_ExpiryEvictionKeepsRacingFreshWrite(t *testing.T) {
	m := NewMemoryStore(300*time.Second, logger.NewNop())
	ctx := context.Background()
	filters := models.DashboardFilters{}

	base := time.Now()
	m.now = func() time.Time { return base }
	if err := m.SaveToCache(ctx, "ds-1", filters, testPayload(), models.CacheContext{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	fresh := testPayload()
	fresh.Insights[0].ID = "i-2"
	expired := base.Add(301 * time.Second)

	// The first clock read is the expiry check; a writer lands right after
	// it, before the eviction runs. The fresh entry must survive.
	injected := false
	m.now = func() time.Time {
		if !injected {
			injected = true
			if err := m.SaveToCache(ctx, "ds-1", filters, fresh, models.CacheContext{}); err != nil {
				t.Errorf("racing save: %v", err)
			}
		}
		return expired
	}

	if _, err := m.FindCached(ctx, "ds-1", filters, models.CacheContext{}); !errors.Is(err, models.ErrCacheMiss) {
		t.Fatalf("stale read should miss, got %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("fresh entry was evicted, len=%d", m.Len())
	}

	got, err := m.FindCached(ctx, "ds-1", filters, models.CacheContext{})
	if err != nil {
		t.Fatalf("fresh entry should be readable, got %v", err)
	}
	if got.Insights[0].ID != "i-2" {
		t.Fatalf("expected the racing write's payload, got %+v", got)
	}
}

func TestMemoryStore_InvalidateIsDatasetScoped(t *testing.T) {
	m := NewMemoryStore(5*time.Minute, logger.NewNop())
	ctx := context.Background()

	if err := m.SaveToCache(ctx, "ds-1", models.DashboardFilters{}, testPayload(), models.CacheContext{}); err != nil {
		t.Fatalf("save ds-1: %v", err)
	}
	if err := m.SaveToCache(ctx, "ds-2", models.DashboardFilters{}, testPayload(), models.CacheContext{}); err != nil {
		t.Fatalf("save ds-2: %v", err)
	}

	if err := m.Invalidate(ctx, "ds-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := m.FindCached(ctx, "ds-1", models.DashboardFilters{}, models.CacheContext{}); !errors.Is(err, models.ErrCacheMiss) {
		t.Fatalf("ds-1 should be gone, got %v", err)
	}
	if _, err := m.FindCached(ctx, "ds-2", models.DashboardFilters{}, models.CacheContext{}); err != nil {
		t.Fatalf("ds-2 should survive, got %v", err)
	}
}
