package funnel

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ignite/outreach-analytics/internal/pkg/logger"
	"github.com/ignite/outreach-analytics/internal/reconcile"
	"github.com/redis/go-redis/v9"
)

// Cache stores completed reconciliation results in Redis, keyed by scope.
// Misses and Redis errors are both treated as cache misses; the cache is an
// accelerator, never a source of truth.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache creates a Cache. ttl <= 0 defaults to 5 minutes.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

const (
	campaignKeyPrefix = "funnel:campaigns:"
	stepKeyPrefix     = "funnel:steps:"
)

// GetCampaigns returns the cached aggregate set for a scope key, if present.
func (c *Cache) GetCampaigns(ctx context.Context, key string) ([]reconcile.CampaignAggregate, bool) {
	data, err := c.rdb.Get(ctx, campaignKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var aggs []reconcile.CampaignAggregate
	if err := json.Unmarshal(data, &aggs); err != nil {
		logger.Warn("cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return aggs, true
}

// SetCampaigns stores the aggregate set for a scope key.
func (c *Cache) SetCampaigns(ctx context.Context, key string, aggs []reconcile.CampaignAggregate) {
	data, err := json.Marshal(aggs)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, campaignKeyPrefix+key, data, c.ttl).Err(); err != nil {
		logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// GetSteps returns the cached step aggregates for a scope+campaign key.
func (c *Cache) GetSteps(ctx context.Context, key string) ([]reconcile.SequenceStepAggregate, bool) {
	data, err := c.rdb.Get(ctx, stepKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var steps []reconcile.SequenceStepAggregate
	if err := json.Unmarshal(data, &steps); err != nil {
		logger.Warn("cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return steps, true
}

// SetSteps stores the step aggregates for a scope+campaign key.
func (c *Cache) SetSteps(ctx context.Context, key string, steps []reconcile.SequenceStepAggregate) {
	data, err := json.Marshal(steps)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, stepKeyPrefix+key, data, c.ttl).Err(); err != nil {
		logger.Warn("cache write failed", "key", key, "error", err)
	}
}
