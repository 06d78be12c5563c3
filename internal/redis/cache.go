package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"hail/internal/domain"
	"hail/internal/repository"
)

// FareConfigCacheTTL bounds how stale a cached slab/surge table may be.
// Resolver correctness never depends on freshness; caps and claims are
// enforced at the write path regardless of what this cache serves.
const FareConfigCacheTTL = 60 * time.Second

const (
	fareSlabsCacheKey  = "cache:fare_slabs"
	surgeRulesCacheKey = "cache:surge_rules"
)

// FareConfigCache is a read-through cache over a FareConfigRepository. The
// fare pipeline reads the slab and surge tables on every acceptance; caching
// them avoids two table scans per accept while Invalidate gives the admin
// surface an explicit refresh hook.
type FareConfigCache struct {
	client *redis.Client
	source repository.FareConfigRepository
}

// NewFareConfigCache creates a read-through cache over source.
func NewFareConfigCache(client *redis.Client, source repository.FareConfigRepository) *FareConfigCache {
	return &FareConfigCache{client: client, source: source}
}

var _ repository.FareConfigRepository = (*FareConfigCache)(nil)

// ActiveSlabs returns the cached slab table, reading through on a miss.
// Cache errors fall back to the source.
func (c *FareConfigCache) ActiveSlabs(ctx context.Context) ([]*domain.FareSlab, error) {
	data, err := c.client.Get(ctx, fareSlabsCacheKey).Bytes()
	if err == nil {
		var slabs []*domain.FareSlab
		if err := json.Unmarshal(data, &slabs); err == nil {
			return slabs, nil
		}
	}

	slabs, err := c.source.ActiveSlabs(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(slabs); err == nil {
		_ = c.client.Set(ctx, fareSlabsCacheKey, data, FareConfigCacheTTL).Err()
	}

	return slabs, nil
}

// ActiveSurgeRules returns the cached surge table, reading through on a miss.
func (c *FareConfigCache) ActiveSurgeRules(ctx context.Context) ([]*domain.SurgeRule, error) {
	data, err := c.client.Get(ctx, surgeRulesCacheKey).Bytes()
	if err == nil {
		var rules []*domain.SurgeRule
		if err := json.Unmarshal(data, &rules); err == nil {
			return rules, nil
		}
	}

	rules, err := c.source.ActiveSurgeRules(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rules); err == nil {
		_ = c.client.Set(ctx, surgeRulesCacheKey, data, FareConfigCacheTTL).Err()
	}

	return rules, nil
}

// Invalidate drops both cached tables so the next read hits the source.
func (c *FareConfigCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, fareSlabsCacheKey, surgeRulesCacheKey).Err()
}
