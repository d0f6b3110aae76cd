package api

import (
	"github.com/gin-gonic/gin"

	"github.com/irfndi/pricecast/internal/api/handlers"
)

// Handlers groups the endpoint handlers mounted by SetupRoutes. Cache is
// optional.
type Handlers struct {
	Health *handlers.HealthHandler
	Asset  *handlers.AssetHandler
	Market *handlers.MarketHandler
	Cache  *handlers.CacheHandler
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", h.Health.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		assets := v1.Group("/assets/:id")
		{
			assets.GET("/history", h.Asset.GetHistory)
			assets.GET("/forecast", h.Asset.GetForecast)
			assets.GET("/indicators", h.Asset.GetIndicators)
		}

		v1.GET("/markets", h.Market.GetMarkets)

		if h.Cache != nil {
			cache := v1.Group("/cache")
			{
				cache.GET("/stats", h.Cache.GetCacheStats)
				cache.POST("/stats/reset", h.Cache.ResetCacheStats)
				cache.GET("/keys", h.Cache.GetCacheKeys)
				cache.DELETE("", h.Cache.ClearCache)
			}
		}
	}
}
