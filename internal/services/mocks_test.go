package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/irfndi/pricecast/internal/coingecko"
	"github.com/irfndi/pricecast/internal/models"
	"github.com/irfndi/pricecast/internal/series"
)

// MockMarketDataProvider is a testify mock of coingecko.MarketDataProvider.
type MockMarketDataProvider struct {
	mock.Mock
}

func (m *MockMarketDataProvider) FetchMarketChart(ctx context.Context, assetID string, days int) (*coingecko.MarketChart, error) {
	args := m.Called(ctx, assetID, days)
	chart, _ := args.Get(0).(*coingecko.MarketChart)
	return chart, args.Error(1)
}

func (m *MockMarketDataProvider) FetchMarkets(ctx context.Context, query coingecko.MarketsQuery) ([]models.MarketSnapshot, error) {
	args := m.Called(ctx, query)
	markets, _ := args.Get(0).([]models.MarketSnapshot)
	return markets, args.Error(1)
}

// MockHistoricalFetcher returns a fixed result for every asset window.
type MockHistoricalFetcher struct {
	mock.Mock
}

func (m *MockHistoricalFetcher) Fetch(ctx context.Context, assetID string, days int) HistoricalResult {
	args := m.Called(ctx, assetID, days)
	return args.Get(0).(HistoricalResult)
}

func (m *MockHistoricalFetcher) Refresh(ctx context.Context, assetID string, days int) HistoricalResult {
	args := m.Called(ctx, assetID, days)
	return args.Get(0).(HistoricalResult)
}

var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// testClock is a manually advanced clock.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock { return &testClock{t: testEpoch} }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// chart builds a market chart of n hourly points with prices start, start+step, ...
func chart(n int, start, step float64) *coingecko.MarketChart {
	pairs := make([]series.Pair, n)
	for i := range pairs {
		pairs[i] = series.Pair{
			Timestamp: testEpoch.Add(-time.Duration(n-i) * time.Hour).UnixMilli(),
			Price:     start + float64(i)*step,
		}
	}
	return &coingecko.MarketChart{Prices: pairs}
}

// linearSeries builds a series of n daily points with prices start, start+step, ...
func linearSeries(n int, start, step float64) models.Series {
	out := make(models.Series, n)
	for i := range out {
		ts := testEpoch.Add(-time.Duration(n-i) * 24 * time.Hour).UnixMilli()
		out[i] = models.PricePoint{
			Timestamp: ts,
			Price:     start + float64(i)*step,
			Label:     series.Label(ts, n),
		}
	}
	return out
}
