package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/pricecast/internal/cache"
	"github.com/irfndi/pricecast/internal/services"
)

// CacheMetricsProvider reports hit/miss analytics.
type CacheMetricsProvider interface {
	GetMetrics(ctx context.Context) (*services.CacheMetrics, error)
	ResetStats()
}

// SeriesCacheStats reports counters of the in-process series cache.
type SeriesCacheStats interface {
	GetStats() cache.Stats
	Len() int
}

// SeriesStore enumerates and clears cached series windows.
type SeriesStore interface {
	Keys(ctx context.Context) ([]cache.Key, error)
	Clear(ctx context.Context) error
}

type CacheStatsResponse struct {
	*services.CacheMetrics
	SeriesCache *SeriesCacheSummary `json:"series_cache,omitempty"`
}

type SeriesCacheSummary struct {
	Entries int64   `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	HitRate float64 `json:"hit_rate"`
}

type CacheKeysResponse struct {
	Keys  []cache.Key `json:"keys"`
	Total int         `json:"total"`
}

type CacheHandler struct {
	analytics CacheMetricsProvider
	series    SeriesCacheStats
	store     SeriesStore
	logger    *logrus.Logger
}

// NewCacheHandler creates a cache handler; series and store may be nil.
func NewCacheHandler(analytics CacheMetricsProvider, series SeriesCacheStats, store SeriesStore, logger *logrus.Logger) *CacheHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CacheHandler{analytics: analytics, series: series, store: store, logger: logger}
}

// GetCacheStats handles GET /api/v1/cache/stats.
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	metrics, err := h.analytics.GetMetrics(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to collect cache metrics")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to collect cache metrics"})
		return
	}

	resp := CacheStatsResponse{CacheMetrics: metrics}
	if h.series != nil {
		stats := h.series.GetStats()
		resp.SeriesCache = &SeriesCacheSummary{
			Entries: int64(h.series.Len()),
			Hits:    stats.Hits,
			Misses:  stats.Misses,
			Sets:    stats.Sets,
			HitRate: stats.HitRate(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ResetCacheStats handles POST /api/v1/cache/stats/reset.
func (h *CacheHandler) ResetCacheStats(c *gin.Context) {
	h.analytics.ResetStats()
	c.JSON(http.StatusOK, gin.H{"message": "cache statistics reset"})
}

// GetCacheKeys handles GET /api/v1/cache/keys.
func (h *CacheHandler) GetCacheKeys(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, CacheKeysResponse{Keys: []cache.Key{}})
		return
	}
	keys, err := h.store.Keys(c.Request.Context())
	if err != nil {
		// Keys from the local tier are still worth returning.
		h.logger.WithError(err).Warn("Failed to list shared cache keys")
	}
	if keys == nil {
		keys = []cache.Key{}
	}
	c.JSON(http.StatusOK, CacheKeysResponse{Keys: keys, Total: len(keys)})
}

// ClearCache handles DELETE /api/v1/cache.
func (h *CacheHandler) ClearCache(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"message": "nothing to clear"})
		return
	}
	if err := h.store.Clear(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Failed to clear series cache")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to clear cache"})
		return
	}
	h.logger.Info("Series cache cleared")
	c.JSON(http.StatusOK, gin.H{"message": "cache cleared"})
}
