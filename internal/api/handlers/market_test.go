package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/pricecast/internal/cache"
	"github.com/irfndi/pricecast/internal/models"
	"github.com/irfndi/pricecast/internal/services"
)

type mockMarkets struct{ mock.Mock }

func (m *mockMarkets) GetMarkets(ctx context.Context) services.MarketResult {
	return m.Called(ctx).Get(0).(services.MarketResult)
}

func TestGetMarkets(t *testing.T) {
	t.Run("live", func(t *testing.T) {
		markets := new(mockMarkets)
		markets.On("GetMarkets", mock.Anything).Return(services.MarketResult{
			Markets: []models.MarketSnapshot{
				{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: decimal.NewFromInt(67000), MarketCapRank: 1},
				{ID: "lido-dao", Symbol: "ldo", Name: "Lido DAO", CurrentPrice: decimal.RequireFromString("1.92")},
			},
			Source:    services.SourceLive,
			FetchedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		})

		router := gin.New()
		router.GET("/markets", NewMarketHandler(markets).GetMarkets)
		w := serve(t, router, "/markets")
		require.Equal(t, http.StatusOK, w.Code)

		var resp MarketsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Total)
		assert.False(t, resp.Approximate)
		assert.Equal(t, "lido-dao", resp.Data[1].ID)
		assert.True(t, decimal.RequireFromString("1.92").Equal(resp.Data[1].CurrentPrice))
	})

	t.Run("stale", func(t *testing.T) {
		markets := new(mockMarkets)
		markets.On("GetMarkets", mock.Anything).Return(services.MarketResult{Source: services.SourceStale})

		router := gin.New()
		router.GET("/markets", NewMarketHandler(markets).GetMarkets)
		w := serve(t, router, "/markets")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
		assert.Contains(t, w.Body.String(), `"approximate":true`)
	})
}

type stubRedis struct{ err error }

func (s stubRedis) HealthCheck(context.Context) error { return s.err }

func newBreakers(t *testing.T) *services.CircuitBreakerManager {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return services.NewCircuitBreakerManager(services.CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Second,
		MaxRequests:      1,
		ResetTimeout:     time.Hour,
	}, logger)
}

func TestHealthCheck(t *testing.T) {
	logger, _ := test.NewNullLogger()

	decode := func(t *testing.T, body []byte) HealthResponse {
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		return resp
	}

	t.Run("redis disabled", func(t *testing.T) {
		router := gin.New()
		router.GET("/health", NewHealthHandler(nil, newBreakers(t), "1.2.3", logger).HealthCheck)
		w := serve(t, router, "/health")
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode(t, w.Body.Bytes())
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "1.2.3", resp.Version)
		assert.Equal(t, "disabled", resp.Services["redis"])
		assert.Equal(t, "healthy", resp.Services["coingecko"])
		require.NotNil(t, resp.System)
		assert.Positive(t, resp.System.Goroutines)
	})

	t.Run("redis healthy", func(t *testing.T) {
		router := gin.New()
		router.GET("/health", NewHealthHandler(stubRedis{}, nil, "1.2.3", logger).HealthCheck)
		w := serve(t, router, "/health")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", decode(t, w.Body.Bytes()).Services["redis"])
	})

	t.Run("redis down", func(t *testing.T) {
		router := gin.New()
		router.GET("/health", NewHealthHandler(stubRedis{err: errors.New("connection refused")}, nil, "1.2.3", logger).HealthCheck)
		w := serve(t, router, "/health")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		resp := decode(t, w.Body.Bytes())
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Contains(t, resp.Services["redis"], "connection refused")
	})

	t.Run("open breaker degrades", func(t *testing.T) {
		breakers := newBreakers(t)
		cb := breakers.GetOrCreate("coingecko_market_chart")
		_ = cb.Execute(context.Background(), func(context.Context) error { return errors.New("503") })
		require.True(t, cb.IsOpen())

		router := gin.New()
		router.GET("/health", NewHealthHandler(nil, breakers, "1.2.3", logger).HealthCheck)
		w := serve(t, router, "/health")
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode(t, w.Body.Bytes())
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "degraded: circuit open", resp.Services["coingecko"])
		assert.Equal(t, "open", resp.CircuitBreakers["coingecko_market_chart"].State)
	})
}

func TestCacheStats(t *testing.T) {
	logger, _ := test.NewNullLogger()
	analytics := services.NewCacheAnalyticsService(nil, logger)
	analytics.RecordHit(services.CategoryHistorical)
	analytics.RecordHit(services.CategoryHistorical)
	analytics.RecordMiss(services.CategoryHistorical)

	series := cache.NewMemorySeriesCache()
	key := cache.Key{AssetID: "bitcoin", Days: 7}
	require.NoError(t, series.Set(context.Background(), key, cache.Entry{Series: models.Series{{Timestamp: 1, Price: 1}}}))
	series.Get(context.Background(), key)

	h := NewCacheHandler(analytics, series, series, logger)
	router := gin.New()
	router.GET("/cache/stats", h.GetCacheStats)
	router.POST("/cache/stats/reset", h.ResetCacheStats)
	router.GET("/cache/keys", h.GetCacheKeys)
	router.DELETE("/cache", h.ClearCache)

	w := serve(t, router, "/cache/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Overall     services.CacheStats            `json:"overall"`
		ByCategory  map[string]services.CacheStats `json:"by_category"`
		SeriesCache SeriesCacheSummary             `json:"series_cache"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.ByCategory[services.CategoryHistorical].Hits)
	assert.Equal(t, int64(1), resp.ByCategory[services.CategoryHistorical].Misses)
	assert.Equal(t, int64(1), resp.SeriesCache.Entries)
	assert.Equal(t, int64(1), resp.SeriesCache.Hits)
	assert.Equal(t, int64(1), resp.SeriesCache.Sets)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cache/stats/reset", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, analytics.GetStats(services.CategoryHistorical).Hits)

	var keys CacheKeysResponse
	require.NoError(t, json.Unmarshal(serve(t, router, "/cache/keys").Body.Bytes(), &keys))
	assert.Equal(t, []cache.Key{key}, keys.Keys)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/cache", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, series.Len())
}

type failingMetrics struct{}

func (failingMetrics) GetMetrics(context.Context) (*services.CacheMetrics, error) {
	return nil, errors.New("redis: connection refused")
}

func (failingMetrics) ResetStats() {}

func TestCacheStats_Error(t *testing.T) {
	logger, _ := test.NewNullLogger()
	router := gin.New()
	router.GET("/cache/stats", NewCacheHandler(failingMetrics{}, nil, nil, logger).GetCacheStats)

	w := serve(t, router, "/cache/stats")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
