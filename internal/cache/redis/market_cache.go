package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

const marketTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache using Redis hashes with JSON-
// serialized Market data and a secondary slug-to-market index.
//
// Key schema:
//
//	market:{conditionID}  - hash with field "data" containing JSON
//	market:slug:{slug}    - string value of the condition ID
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketKey(id string) string       { return "market:" + id }
func marketSlugKey(slug string) string { return "market:slug:" + slug }

// Set stores a Market in the cache with a 5-minute TTL, plus a slug index
// entry when the market has a slug.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ConditionID, err)
	}

	key := marketKey(market.ConditionID)

	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, marketTTL)

	if market.Slug != "" {
		pipe.Set(ctx, marketSlugKey(market.Slug), market.ConditionID, marketTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ConditionID, err)
	}
	return nil
}

// Get retrieves a Market by its condition ID from the cache.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MarketCache) Get(ctx context.Context, conditionID string) (domain.Market, error) {
	data, err := mc.rdb.HGet(ctx, marketKey(conditionID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", conditionID, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", conditionID, err)
	}
	return market, nil
}

// Invalidate removes a Market and its slug index entry from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, conditionID string) error {
	market, err := mc.Get(ctx, conditionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("redis: invalidate market %s: %w", conditionID, err)
	}

	pipe := mc.rdb.TxPipeline()
	pipe.Del(ctx, marketKey(conditionID))

	if err == nil && market.Slug != "" {
		pipe.Del(ctx, marketSlugKey(market.Slug))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", conditionID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
