package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/pricecast/internal/config"
)

func warmingConfig() config.WarmingConfig {
	return config.WarmingConfig{
		Enabled:  true,
		Schedule: "@every 1h",
		Assets:   []string{"bitcoin", "ethereum"},
		Days:     []int{7, 365},
	}
}

func TestCacheWarmingService_WarmCache(t *testing.T) {
	refresher := new(MockHistoricalFetcher)
	refresher.On("Refresh", mock.Anything, "bitcoin", mock.Anything).Return(HistoricalResult{Source: SourceLive})
	refresher.On("Refresh", mock.Anything, "ethereum", 7).Return(HistoricalResult{Source: SourceFallback})
	refresher.On("Refresh", mock.Anything, "ethereum", 365).Return(HistoricalResult{Source: SourceStale})

	logger, hook := test.NewNullLogger()
	svc := NewCacheWarmingService(refresher, nil, warmingConfig(), logger)

	report := svc.WarmCache(context.Background())

	assert.Equal(t, 4, report.Refreshed)
	assert.Equal(t, 2, report.Degraded)
	refresher.AssertNumberOfCalls(t, "Refresh", 4)
	assert.Equal(t, "Cache warming completed", hook.LastEntry().Message)
}

func TestCacheWarmingService_SkipsInvalidWindows(t *testing.T) {
	refresher := new(MockHistoricalFetcher)
	refresher.On("Refresh", mock.Anything, mock.Anything, mock.Anything).Return(HistoricalResult{Source: SourceNone})

	cfg := warmingConfig()
	cfg.Assets = []string{""}
	svc := NewCacheWarmingService(refresher, nil, cfg, nil)

	report := svc.WarmCache(context.Background())

	assert.Equal(t, 0, report.Refreshed)
}

func TestCacheWarmingService_StopsOnCancelledContext(t *testing.T) {
	refresher := new(MockHistoricalFetcher)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewCacheWarmingService(refresher, nil, warmingConfig(), nil)
	report := svc.WarmCache(ctx)

	assert.Equal(t, 0, report.Refreshed)
	refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything, mock.Anything)
}

func TestCacheWarmingService_WarmsMarkets(t *testing.T) {
	refresher := new(MockHistoricalFetcher)
	provider := new(MockMarketDataProvider)
	provider.On("FetchMarkets", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	cfg := warmingConfig()
	cfg.Assets = nil
	markets := newTestMarketService(provider, newTestClock())
	svc := NewCacheWarmingService(refresher, markets, cfg, nil)

	svc.WarmCache(context.Background())

	provider.AssertCalled(t, "FetchMarkets", mock.Anything, mock.Anything)
}

func TestCacheWarmingService_StartStop(t *testing.T) {
	var calls atomic.Int32
	refresher := new(MockHistoricalFetcher)
	refresher.On("Refresh", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { calls.Add(1) }).
		Return(HistoricalResult{Source: SourceLive})

	logger, _ := test.NewNullLogger()
	svc := NewCacheWarmingService(refresher, nil, warmingConfig(), logger)

	require.NoError(t, svc.Start(context.Background()))
	assert.Error(t, svc.Start(context.Background()))

	// Start runs one warming pass right away.
	assert.Eventually(t, func() bool {
		return calls.Load() >= 4
	}, time.Second, 10*time.Millisecond)

	svc.Stop()
	svc.Stop()
}

func TestCacheWarmingService_InvalidSchedule(t *testing.T) {
	cfg := warmingConfig()
	cfg.Schedule = "not a schedule"
	svc := NewCacheWarmingService(new(MockHistoricalFetcher), nil, cfg, nil)

	err := svc.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid warming schedule")
}
