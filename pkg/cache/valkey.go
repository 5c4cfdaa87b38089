package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platformbuilds/compara-core/internal/models"
	"github.com/platformbuilds/compara-core/internal/monitoring"
	"github.com/platformbuilds/compara-core/pkg/logger"
)

const valkeyTier = "valkey"

const (
	entryKeyPrefix  = "insights:cache:"
	datasetIndexKey = "insights:dataset:"
)

// cacheEntry is the persisted record layout. The filters snapshot is stored
// for operator inspection; lookups go by fingerprint only.
type cacheEntry struct {
	CacheKey      string                        `json:"cacheKey"`
	DatasetID     string                        `json:"datasetId"`
	Filters       models.DashboardFilters       `json:"filters"`
	Payload       *models.CachedInsightsPayload `json:"summary"`
	Language      string                        `json:"language"`
	PromptVersion string                        `json:"promptVersion"`
	CreatedAt     time.Time                     `json:"createdAt"`
}

// ValkeyStore is the durable cache tier. TTL expiry is enforced by the
// storage engine (SET EX), not by client-side timestamp checks, so it
// survives process restarts. A per-dataset membership set supports
// dataset-scoped bulk invalidation.
type ValkeyStore struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewValkeyStore connects to a single-node Valkey/Redis instance.
func NewValkeyStore(addr string, db int, password string, ttl time.Duration, log logger.Logger) (*ValkeyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyStore{client: client, ttl: ttl, logger: log}, nil
}

// NewValkeyStoreWithClient wraps an existing client. Used by tests.
func NewValkeyStoreWithClient(client *redis.Client, ttl time.Duration, log logger.Logger) *ValkeyStore {
	return &ValkeyStore{client: client, ttl: ttl, logger: log}
}

func (v *ValkeyStore) FindCached(ctx context.Context, datasetID string, filters models.DashboardFilters, cctx models.CacheContext) (*models.CachedInsightsPayload, error) {
	key := entryKeyPrefix + Fingerprint(datasetID, filters, cctx)

	data, err := v.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		monitoring.RecordCacheOperation("get", "miss", valkeyTier)
		return nil, models.ErrCacheMiss
	}
	if err != nil {
		monitoring.RecordCacheOperation("get", "error", valkeyTier)
		return nil, fmt.Errorf("valkey get failed: %w", err)
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		monitoring.RecordCacheOperation("get", "error", valkeyTier)
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	monitoring.RecordCacheOperation("get", "hit", valkeyTier)
	return entry.Payload, nil
}

func (v *ValkeyStore) SaveToCache(ctx context.Context, datasetID string, filters models.DashboardFilters, payload *models.CachedInsightsPayload, cctx models.CacheContext) error {
	cctx = normalizeContext(cctx)
	fingerprint := Fingerprint(datasetID, filters, cctx)
	key := entryKeyPrefix + fingerprint

	entry := cacheEntry{
		CacheKey:      fingerprint,
		DatasetID:     datasetID,
		Filters:       filters,
		Payload:       payload,
		Language:      cctx.Language,
		PromptVersion: cctx.PromptVersion,
		CreatedAt:     time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	// SET is an upsert; a concurrent writer for the same key simply wins last.
	if err := v.client.Set(ctx, key, data, v.ttl).Err(); err != nil {
		monitoring.RecordCacheOperation("set", "error", valkeyTier)
		return fmt.Errorf("valkey set failed: %w", err)
	}

	// Track key membership for dataset-scoped invalidation. The index lives
	// at least as long as its newest entry.
	indexKey := datasetIndexKey + datasetID
	if err := v.client.SAdd(ctx, indexKey, key).Err(); err != nil {
		monitoring.RecordCacheOperation("set", "error", valkeyTier)
		return fmt.Errorf("valkey index update failed: %w", err)
	}
	if err := v.client.Expire(ctx, indexKey, v.ttl).Err(); err != nil {
		v.logger.Warn("Failed to refresh dataset index TTL", "dataset_id", datasetID, "error", err)
	}

	monitoring.RecordCacheOperation("set", "ok", valkeyTier)
	return nil
}

func (v *ValkeyStore) Invalidate(ctx context.Context, datasetID string) error {
	indexKey := datasetIndexKey + datasetID

	keys, err := v.client.SMembers(ctx, indexKey).Result()
	if err != nil && err != redis.Nil {
		monitoring.RecordCacheOperation("invalidate", "error", valkeyTier)
		return fmt.Errorf("valkey index read failed: %w", err)
	}

	if len(keys) > 0 {
		if err := v.client.Del(ctx, keys...).Err(); err != nil {
			monitoring.RecordCacheOperation("invalidate", "error", valkeyTier)
			return fmt.Errorf("valkey bulk delete failed: %w", err)
		}
	}
	if err := v.client.Del(ctx, indexKey).Err(); err != nil {
		monitoring.RecordCacheOperation("invalidate", "error", valkeyTier)
		return fmt.Errorf("valkey index delete failed: %w", err)
	}

	v.logger.Info("Persistent cache invalidated", "dataset_id", datasetID, "entries", len(keys))
	monitoring.RecordCacheOperation("invalidate", "ok", valkeyTier)
	return nil
}

// HealthCheck pings the backing store.
func (v *ValkeyStore) HealthCheck(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}
