package dashboard

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/inkwell-analytics/insight/internal/analytics"
)

const cacheKeyPrefix = "insight:dashboard:"

// redisCommands is the slice of redis.Client the cache depends on.
type redisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cache is a Redis-backed response cache for dashboard pages. Entries
// are keyed by page and filter state; a short TTL keeps responses fresh
// without a write-side invalidation path.
type Cache struct {
	client redisCommands
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache creates a dashboard response cache.
func NewCache(client redisCommands, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get loads a cached response into dest. Returns false on miss or any
// Redis/decode failure; the caller recomputes in that case.
func (c *Cache) Get(ctx context.Context, page string, f analytics.Filters, dest interface{}) bool {
	payload, err := c.client.Get(ctx, cacheKey(page, f)).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.Debug("cache read failed", zap.String("page", page), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("page", page), zap.Error(err))
		return false
	}
	return true
}

// Set stores a response. Failures are logged and otherwise ignored; the
// cache is best-effort.
func (c *Cache) Set(ctx context.Context, page string, f analytics.Filters, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("page", page), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, cacheKey(page, f), payload, c.ttl).Err(); err != nil {
		c.logger.Debug("cache write failed", zap.String("page", page), zap.Error(err))
	}
}

func cacheKey(page string, f analytics.Filters) string {
	payload, _ := json.Marshal(f)
	h := fnv.New64a()
	h.Write(payload)
	return cacheKeyPrefix + page + ":" + strconv.FormatUint(h.Sum64(), 16)
}
