package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

const seriesKeyPrefix = "series_cache:"

// RedisSeriesCache keeps series in Redis, msgpack encoded. Keys expire after
// the retention period so stale but real data outlives the freshness window
// without growing unbounded.
type RedisSeriesCache struct {
	redis     *redis.Client
	retention time.Duration
	prefix    string
	logger    *logrus.Logger

	mu    sync.RWMutex
	stats Stats
}

// NewRedisSeriesCache creates a new Redis-based series cache
func NewRedisSeriesCache(redisClient *redis.Client, retention time.Duration, logger *logrus.Logger) *RedisSeriesCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisSeriesCache{
		redis:     redisClient,
		retention: retention,
		prefix:    seriesKeyPrefix,
		logger:    logger,
	}
}

func (c *RedisSeriesCache) Get(ctx context.Context, key Key) (Entry, bool) {
	cacheKey := c.prefix + key.String()

	data, err := c.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithFields(logrus.Fields{"key": cacheKey}).WithError(err).Warn("Redis error getting series")
		}
		c.record(func(s *Stats) { s.Misses++ })
		return Entry{}, false
	}

	var entry Entry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		c.logger.WithFields(logrus.Fields{"key": cacheKey}).WithError(err).Warn("Error decoding cached series")
		c.record(func(s *Stats) { s.Misses++ })
		return Entry{}, false
	}

	c.record(func(s *Stats) { s.Hits++ })
	return entry, true
}

func (c *RedisSeriesCache) Set(ctx context.Context, key Key, entry Entry) error {
	cacheKey := c.prefix + key.String()

	data, err := msgpack.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("failed to encode series for %s: %w", key, err)
	}
	if err := c.redis.Set(ctx, cacheKey, data, c.retention).Err(); err != nil {
		return fmt.Errorf("failed to store series for %s: %w", key, err)
	}

	c.record(func(s *Stats) { s.Sets++ })
	c.logger.WithFields(logrus.Fields{
		"key":       cacheKey,
		"points":    len(entry.Series),
		"retention": c.retention.String(),
	}).Debug("Cached series")
	return nil
}

func (c *RedisSeriesCache) record(update func(*Stats)) {
	c.mu.Lock()
	update(&c.stats)
	c.mu.Unlock()
}

// GetStats returns current cache statistics
func (c *RedisSeriesCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// LogStats logs current cache performance statistics
func (c *RedisSeriesCache) LogStats() {
	stats := c.GetStats()
	c.logger.WithFields(logrus.Fields{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"sets":     stats.Sets,
		"hit_rate": fmt.Sprintf("%.2f%%", stats.HitRate()),
	}).Info("Redis series cache stats")
}

func (c *RedisSeriesCache) scan(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error scanning cache keys: %w", err)
	}
	return keys, nil
}

// Keys returns the keys currently held in Redis.
func (c *RedisSeriesCache) Keys(ctx context.Context) ([]Key, error) {
	raw, err := c.scan(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(raw))
	for _, r := range raw {
		k, err := ParseKey(r[len(c.prefix):])
		if err != nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Clear removes all cached series.
func (c *RedisSeriesCache) Clear(ctx context.Context) error {
	keys, err := c.scan(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing cache: %w", err)
	}
	c.logger.WithField("count", len(keys)).Info("Cleared series cache entries")
	return nil
}
