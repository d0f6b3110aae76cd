package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/pricecast/internal/config"
)

// SeriesRefresher refetches one asset window regardless of freshness.
type SeriesRefresher interface {
	Refresh(ctx context.Context, assetID string, days int) HistoricalResult
}

// WarmingReport summarizes one warming run.
type WarmingReport struct {
	Refreshed int           `json:"refreshed"`
	Degraded  int           `json:"degraded"`
	Duration  time.Duration `json:"duration"`
}

// CacheWarmingService periodically refetches the configured asset windows
// so requests for them are served from cache.
type CacheWarmingService struct {
	refresher SeriesRefresher
	markets   *MarketService
	cfg       config.WarmingConfig
	logger    *logrus.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewCacheWarmingService creates a new cache warming service. markets may be nil.
func NewCacheWarmingService(refresher SeriesRefresher, markets *MarketService, cfg config.WarmingConfig, logger *logrus.Logger) *CacheWarmingService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CacheWarmingService{
		refresher: refresher,
		markets:   markets,
		cfg:       cfg,
		logger:    logger,
	}
}

// WarmCache refreshes every configured (asset, days) window once.
func (c *CacheWarmingService) WarmCache(ctx context.Context) WarmingReport {
	c.logger.Info("Starting cache warming")
	start := time.Now()

	var report WarmingReport
	for _, assetID := range c.cfg.Assets {
		for _, days := range c.cfg.Days {
			if ctx.Err() != nil {
				c.logger.WithError(ctx.Err()).Warn("Cache warming interrupted")
				report.Duration = time.Since(start)
				return report
			}
			res := c.refresher.Refresh(ctx, assetID, days)
			if res.Source == SourceNone {
				continue
			}
			report.Refreshed++
			if res.Approximate() {
				report.Degraded++
			}
		}
	}

	if c.markets != nil {
		c.markets.GetMarkets(ctx)
	}

	report.Duration = time.Since(start)
	c.logger.WithFields(logrus.Fields{
		"refreshed":   report.Refreshed,
		"degraded":    report.Degraded,
		"duration_ms": report.Duration.Milliseconds(),
	}).Info("Cache warming completed")
	return report
}

// Start schedules WarmCache on the configured cron schedule and runs it once
// immediately. ctx bounds every scheduled run.
func (c *CacheWarmingService) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("cache warming already running")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(c.cfg.Schedule, func() { c.WarmCache(ctx) }); err != nil {
		return fmt.Errorf("invalid warming schedule %q: %w", c.cfg.Schedule, err)
	}
	scheduler.Start()
	c.cron = scheduler
	c.running = true

	go c.WarmCache(ctx)

	c.logger.WithFields(logrus.Fields{
		"schedule": c.cfg.Schedule,
		"assets":   c.cfg.Assets,
		"days":     c.cfg.Days,
	}).Info("Cache warming scheduled")
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (c *CacheWarmingService) Stop() {
	c.mu.Lock()
	scheduler := c.cron
	c.cron = nil
	c.running = false
	c.mu.Unlock()

	if scheduler == nil {
		return
	}
	<-scheduler.Stop().Done()
	c.logger.Info("Cache warming stopped")
}
