package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/irfndi/pricecast/internal/api"
	"github.com/irfndi/pricecast/internal/api/handlers"
	"github.com/irfndi/pricecast/internal/cache"
	"github.com/irfndi/pricecast/internal/coingecko"
	"github.com/irfndi/pricecast/internal/config"
	"github.com/irfndi/pricecast/internal/database"
	"github.com/irfndi/pricecast/internal/forecast"
	"github.com/irfndi/pricecast/internal/logging"
	"github.com/irfndi/pricecast/internal/middleware"
	"github.com/irfndi/pricecast/internal/services"
	"github.com/irfndi/pricecast/internal/telemetry"
)

const analyticsReportInterval = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired components and the teardown order.
type app struct {
	router   *gin.Engine
	warming  *services.CacheWarmingService
	redis    *database.RedisClient
	stopping []func()
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	std := logging.NewStandardLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.InitTelemetry(ctx, telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Exporter:       cfg.Telemetry.Exporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Failed to shutdown telemetry")
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Warming.Enabled {
		if err := a.warming.Start(ctx); err != nil {
			return fmt.Errorf("failed to start cache warming: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           a.router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		std.LogStartup(telemetry.ServiceName, cfg.Telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		std.LogShutdown(telemetry.ServiceName, "signal received")
	}

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

// newApp wires storage, upstream client, services and routes. Redis is
// optional: when it is disabled or unreachable the service runs on the
// in-process cache alone.
func newApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*app, error) {
	a := &app{}

	memory := cache.NewMemorySeriesCache()
	var seriesCache cache.SeriesCache = memory
	var store handlers.SeriesStore = memory
	var analytics *services.CacheAnalyticsService

	redisClient, err := database.NewRedisConnection(cfg.Redis, logger)
	switch {
	case err == nil:
		a.redis = redisClient
		a.stopping = append(a.stopping, redisClient.Close)
		tiered := cache.NewTieredSeriesCache(memory, cache.NewRedisSeriesCache(redisClient.Client, cfg.Redis.Retention, logger), logger)
		seriesCache, store = tiered, tiered
		analytics = services.NewCacheAnalyticsService(redisClient.Client, logger)
	case errors.Is(err, database.ErrRedisDisabled):
		logger.Info("Redis disabled, using in-process cache only")
		analytics = services.NewCacheAnalyticsService(nil, logger)
	default:
		logger.WithError(err).Warn("Redis unavailable, using in-process cache only")
		analytics = services.NewCacheAnalyticsService(nil, logger)
	}

	reportCtx, stopReporting := context.WithCancel(ctx)
	a.stopping = append(a.stopping, stopReporting)
	analytics.StartPeriodicReporting(reportCtx, analyticsReportInterval)

	client := coingecko.NewClient(cfg.CoinGecko, coingecko.WithLogger(logger))
	breakers := services.NewCircuitBreakerManager(services.BreakerConfigFrom(cfg.CircuitBreaker), logger)

	historical := services.NewHistoricalService(client, seriesCache,
		services.WithHistoricalTTL(cfg.Cache.HistoricalTTL),
		services.WithBreaker(breakers.GetOrCreate("coingecko_market_chart")),
		services.WithAnalytics(analytics),
		services.WithHistoricalLogger(logger),
	)
	markets := services.NewMarketService(client, logger,
		services.WithMarketTTL(cfg.Cache.MarketTTL),
		services.WithMarketBreaker(breakers.GetOrCreate("coingecko_markets")),
		services.WithMarketAnalytics(analytics),
	)
	engine := forecast.NewEngine(
		forecast.WithAlpha(cfg.Forecast.Alpha),
		forecast.WithNoise(cfg.Forecast.Noise),
		forecast.WithLogger(logger),
	)
	forecaster := services.NewForecastService(historical, engine, cfg.Forecast, logger)
	indicators := services.NewIndicatorService(historical, logger)

	a.warming = services.NewCacheWarmingService(historical, markets, cfg.Warming, logger)
	a.stopping = append(a.stopping, a.warming.Stop)

	var redisChecker handlers.RedisChecker
	if a.redis != nil {
		redisChecker = a.redis
	}

	a.router = newRouter(cfg, logger, api.Handlers{
		Health: handlers.NewHealthHandler(redisChecker, breakers, cfg.Telemetry.ServiceVersion, logger),
		Asset:  handlers.NewAssetHandler(historical, forecaster, indicators),
		Market: handlers.NewMarketHandler(markets),
		Cache:  handlers.NewCacheHandler(analytics, memory, store, logger),
	})
	return a, nil
}

func newRouter(cfg *config.Config, logger *logrus.Logger, h api.Handlers) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(telemetry.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logging.NewStandardLogger(logger)))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	api.SetupRoutes(router, h)
	return router
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.stopping) - 1; i >= 0; i-- {
		a.stopping[i]()
	}
}
