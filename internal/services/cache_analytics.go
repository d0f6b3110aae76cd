package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache categories recorded by the services.
const (
	CategoryHistorical = "historical"
	CategoryMarkets    = "markets"
	categoryOverall    = "overall"

	analyticsKey = "cache:analytics:stats"
)

// CacheStats represents cache statistics
type CacheStats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	Stale       int64     `json:"stale"`
	Fallbacks   int64     `json:"fallbacks"`
	HitRate     float64   `json:"hit_rate"`
	TotalOps    int64     `json:"total_ops"`
	LastUpdated time.Time `json:"last_updated"`
}

// CacheMetrics represents detailed cache metrics by category
type CacheMetrics struct {
	Overall    CacheStats            `json:"overall"`
	ByCategory map[string]CacheStats `json:"by_category"`
	RedisInfo  map[string]string     `json:"redis_info,omitempty"`
	KeyCount   int64                 `json:"key_count"`
}

// CacheAnalyticsService tracks cache performance metrics. The Redis client
// is optional; without it metrics cover the process only.
type CacheAnalyticsService struct {
	redisClient *redis.Client
	logger      *logrus.Logger
	stats       map[string]*CacheStats
	mu          sync.RWMutex
}

// NewCacheAnalyticsService creates a new cache analytics service
func NewCacheAnalyticsService(redisClient *redis.Client, logger *logrus.Logger) *CacheAnalyticsService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CacheAnalyticsService{
		redisClient: redisClient,
		logger:      logger,
		stats:       make(map[string]*CacheStats),
	}
}

func (c *CacheAnalyticsService) record(category string, update func(*CacheStats)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, name := range []string{category, categoryOverall} {
		s := c.stats[name]
		if s == nil {
			s = &CacheStats{}
			c.stats[name] = s
		}
		update(s)
		s.TotalOps = s.Hits + s.Misses
		if s.TotalOps > 0 {
			s.HitRate = float64(s.Hits) / float64(s.TotalOps)
		}
		s.LastUpdated = now
	}
}

// RecordHit records a cache hit for the given category
func (c *CacheAnalyticsService) RecordHit(category string) {
	c.record(category, func(s *CacheStats) { s.Hits++ })
}

// RecordMiss records a cache miss for the given category
func (c *CacheAnalyticsService) RecordMiss(category string) {
	c.record(category, func(s *CacheStats) { s.Misses++ })
}

// RecordStale records that stale data was served after an upstream failure.
func (c *CacheAnalyticsService) RecordStale(category string) {
	c.record(category, func(s *CacheStats) { s.Stale++ })
}

// RecordFallback records that synthetic data was served.
func (c *CacheAnalyticsService) RecordFallback(category string) {
	c.record(category, func(s *CacheStats) { s.Fallbacks++ })
}

// GetStats returns cache statistics for a specific category
func (c *CacheAnalyticsService) GetStats(category string) CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if stats, exists := c.stats[category]; exists {
		return *stats
	}
	return CacheStats{}
}

// GetAllStats returns all cache statistics
func (c *CacheAnalyticsService) GetAllStats() map[string]CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]CacheStats, len(c.stats))
	for category, stats := range c.stats {
		result[category] = *stats
	}
	return result
}

// GetMetrics returns the counters plus Redis memory and keyspace info when
// Redis is configured.
func (c *CacheAnalyticsService) GetMetrics(ctx context.Context) (*CacheMetrics, error) {
	allStats := c.GetAllStats()
	metrics := &CacheMetrics{
		Overall:    allStats[categoryOverall],
		ByCategory: allStats,
	}
	delete(metrics.ByCategory, categoryOverall)

	if c.redisClient == nil {
		return metrics, nil
	}

	redisInfo, err := c.redisClient.Info(ctx, "memory", "keyspace").Result()
	if err != nil {
		return nil, err
	}
	metrics.RedisInfo = parseRedisInfo(redisInfo)

	keyCount, err := c.redisClient.DBSize(ctx).Result()
	if err == nil {
		metrics.KeyCount = keyCount
	}
	return metrics, nil
}

// parseRedisInfo parses Redis INFO command output
func parseRedisInfo(info string) map[string]string {
	result := make(map[string]string)

	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if found {
			result[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}

	return result
}

// ResetStats resets all cache statistics
func (c *CacheAnalyticsService) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = make(map[string]*CacheStats)
}

// StartPeriodicReporting publishes the counters every interval until ctx is done.
func (c *CacheAnalyticsService) StartPeriodicReporting(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.reportStats(ctx)
			}
		}
	}()
}

// reportStats logs the overall counters and stores all of them in Redis for
// other instances to read.
func (c *CacheAnalyticsService) reportStats(ctx context.Context) {
	allStats := c.GetAllStats()
	overall := allStats[categoryOverall]
	c.logger.WithFields(logrus.Fields{
		"hits":      overall.Hits,
		"misses":    overall.Misses,
		"stale":     overall.Stale,
		"fallbacks": overall.Fallbacks,
		"hit_rate":  overall.HitRate,
	}).Info("Cache analytics")

	if c.redisClient == nil {
		return
	}
	statsJSON, err := json.Marshal(allStats)
	if err != nil {
		return
	}
	if err := c.redisClient.Set(ctx, analyticsKey, statsJSON, 24*time.Hour).Err(); err != nil {
		c.logger.WithError(err).Warn("Failed to publish cache analytics")
	}
}
