package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/platformbuilds/compara-core/internal/models"
	"github.com/platformbuilds/compara-core/internal/monitoring"
	"github.com/platformbuilds/compara-core/pkg/logger"
)

const memoryTier = "memory"

type memoryEntry struct {
	payload   *models.CachedInsightsPayload
	expiresAt time.Time
}

// MemoryStore is the process-local cache tier. Entries expire after a fixed
// TTL and are evicted lazily on read. State is owned by the instance that
// created it; horizontally-scaled replicas each hold their own.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	logger  logger.Logger

	// now is swappable so expiry is testable without sleeping.
	now func() time.Time
}

// NewMemoryStore creates an in-process tier with the given entry TTL.
func NewMemoryStore(ttl time.Duration, log logger.Logger) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		logger:  log,
		now:     time.Now,
	}
}

// localKey namespaces entries by dataset so Invalidate can drop everything
// for one dataset with a prefix match.
func localKey(datasetID string, filters models.DashboardFilters, cctx models.CacheContext) string {
	return datasetID + ":" + Fingerprint(datasetID, filters, cctx)
}

func (m *MemoryStore) FindCached(_ context.Context, datasetID string, filters models.DashboardFilters, cctx models.CacheContext) (*models.CachedInsightsPayload, error) {
	key := localKey(datasetID, filters, cctx)

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		monitoring.RecordCacheOperation("get", "miss", memoryTier)
		return nil, models.ErrCacheMiss
	}
	if m.now().After(entry.expiresAt) {
		// Re-check under the write lock: a writer may have replaced the
		// entry between the read and this eviction, and a fresh entry must
		// not be dropped.
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && m.now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		monitoring.RecordCacheOperation("get", "expired", memoryTier)
		return nil, models.ErrCacheMiss
	}

	monitoring.RecordCacheOperation("get", "hit", memoryTier)
	return entry.payload, nil
}

func (m *MemoryStore) SaveToCache(_ context.Context, datasetID string, filters models.DashboardFilters, payload *models.CachedInsightsPayload, cctx models.CacheContext) error {
	key := localKey(datasetID, filters, cctx)

	m.mu.Lock()
	m.entries[key] = memoryEntry{payload: payload, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()

	monitoring.RecordCacheOperation("set", "ok", memoryTier)
	return nil
}

func (m *MemoryStore) Invalidate(_ context.Context, datasetID string) error {
	prefix := datasetID + ":"

	m.mu.Lock()
	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Debug("Memory cache invalidated", "dataset_id", datasetID, "entries", removed)
	}
	monitoring.RecordCacheOperation("invalidate", "ok", memoryTier)
	return nil
}

// Len reports the number of live entries. Used by tests and health reporting.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
