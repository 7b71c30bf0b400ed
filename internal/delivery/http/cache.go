package http

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/commercefull/stockledger/pkg/logger"

	ledgerdomain "github.com/commercefull/stockledger/internal/ledger/domain"
)

// AvailabilityCache caches availability reads in Redis. The ledger stays
// the source of truth; entries are short-lived and invalidated on every
// mutation for the same (location, sku).
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache creates an availability cache
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AvailabilityCache{client: client, ttl: ttl}
}

func availabilityKey(locationID, sku string) string {
	return fmt.Sprintf("stock:available:%s:%s", locationID, sku)
}

// Get returns the cached available quantity, if present
func (c *AvailabilityCache) Get(ctx context.Context, locationID, sku string) (int, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}

	key := availabilityKey(locationID, sku)
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn(ctx).Err(err).Str("cache_key", key).Msg("Availability cache read failed")
		}
		return 0, false
	}

	available, err := strconv.Atoi(val)
	if err != nil {
		logger.Warn(ctx).Str("cache_key", key).Str("value", val).Msg("Availability cache entry malformed")
		return 0, false
	}

	logger.Debug(ctx).Str("cache_key", key).Msg("Availability cache hit")
	return available, true
}

// Set stores the available quantity with the configured TTL
func (c *AvailabilityCache) Set(ctx context.Context, locationID, sku string, available int) {
	if c == nil || c.client == nil {
		return
	}

	key := availabilityKey(locationID, sku)
	if err := c.client.Set(ctx, key, strconv.Itoa(available), c.ttl).Err(); err != nil {
		logger.Warn(ctx).Err(err).Str("cache_key", key).Msg("Failed to cache availability")
	}
}

// Invalidate drops the cached entry for a stock record
func (c *AvailabilityCache) Invalidate(ctx context.Context, locationID, sku string) {
	if c == nil || c.client == nil {
		return
	}

	key := availabilityKey(locationID, sku)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		logger.Warn(ctx).Err(err).Str("cache_key", key).Msg("Failed to invalidate availability cache")
	}
}

// LedgerMutated implements ledger.MutationObserver so every ledger write
// drops the stale availability entry. Runs under the aggregate lock, so
// only the cheap Redis delete happens here.
func (c *AvailabilityCache) LedgerMutated(ctx context.Context, record *ledgerdomain.StockRecord, entry *ledgerdomain.LedgerEntry) {
	c.Invalidate(ctx, record.LocationID, record.SKU)
}
