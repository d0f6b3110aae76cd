package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/irfndi/pricecast/internal/cache"
	"github.com/irfndi/pricecast/internal/coingecko"
	"github.com/irfndi/pricecast/internal/fallback"
	"github.com/irfndi/pricecast/internal/logging"
	"github.com/irfndi/pricecast/internal/models"
	"github.com/irfndi/pricecast/internal/series"
	"github.com/irfndi/pricecast/internal/telemetry"
)

const (
	// DefaultHistoricalTTL is how long a fetched series is served without refetching.
	DefaultHistoricalTTL = 5 * time.Minute
	defaultFetchTimeout  = 15 * time.Second
)

// Source tells where a returned series came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceCache    Source = "cache"
	SourceStale    Source = "stale"
	SourceFallback Source = "fallback"
	SourceNone     Source = "none"
)

// HistoricalResult is a series together with its provenance.
type HistoricalResult struct {
	AssetID   string        `json:"asset_id"`
	Days      int           `json:"days"`
	Series    models.Series `json:"data"`
	Source    Source        `json:"source"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Approximate reports whether the series is synthetic or older than the freshness window.
func (r HistoricalResult) Approximate() bool {
	return r.Source == SourceStale || r.Source == SourceFallback
}

// HistoricalFetcher is what the forecast and indicator services need from
// the historical pipeline.
type HistoricalFetcher interface {
	Fetch(ctx context.Context, assetID string, days int) HistoricalResult
}

// HistoricalService fetches, normalizes, samples and caches historical
// series. It never fails: upstream errors degrade to stale or synthetic data.
type HistoricalService struct {
	provider     coingecko.MarketDataProvider
	cache        cache.SeriesCache
	generator    *fallback.Generator
	breaker      *CircuitBreaker
	analytics    *CacheAnalyticsService
	logger       *logrus.Logger
	log          *logging.StandardLogger
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	group singleflight.Group

	errMu      sync.RWMutex
	lastErrors map[cache.Key]error
}

// HistoricalOption configures a HistoricalService.
type HistoricalOption func(*HistoricalService)

func WithHistoricalTTL(ttl time.Duration) HistoricalOption {
	return func(s *HistoricalService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds a single upstream call, independent of the caller.
func WithFetchTimeout(timeout time.Duration) HistoricalOption {
	return func(s *HistoricalService) {
		if timeout > 0 {
			s.fetchTimeout = timeout
		}
	}
}

func WithGenerator(g *fallback.Generator) HistoricalOption {
	return func(s *HistoricalService) { s.generator = g }
}

func WithBreaker(cb *CircuitBreaker) HistoricalOption {
	return func(s *HistoricalService) { s.breaker = cb }
}

func WithAnalytics(a *CacheAnalyticsService) HistoricalOption {
	return func(s *HistoricalService) { s.analytics = a }
}

func WithHistoricalLogger(logger *logrus.Logger) HistoricalOption {
	return func(s *HistoricalService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithHistoricalClock(now func() time.Time) HistoricalOption {
	return func(s *HistoricalService) { s.now = now }
}

func NewHistoricalService(provider coingecko.MarketDataProvider, seriesCache cache.SeriesCache, opts ...HistoricalOption) *HistoricalService {
	s := &HistoricalService{
		provider:     provider,
		cache:        seriesCache,
		ttl:          DefaultHistoricalTTL,
		fetchTimeout: defaultFetchTimeout,
		logger:       logrus.StandardLogger(),
		now:          time.Now,
		lastErrors:   make(map[cache.Key]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NewMemorySeriesCache()
	}
	if s.generator == nil {
		s.generator = fallback.NewGenerator(fallback.WithClock(s.now))
	}
	if s.breaker == nil {
		s.breaker = NewCircuitBreaker("coingecko_market_chart", CircuitBreakerConfig{}, s.logger)
	}
	s.log = logging.NewStandardLogger(s.logger)
	return s
}

// GetHistoricalSeries returns the display-ready series for an asset window.
func (s *HistoricalService) GetHistoricalSeries(ctx context.Context, assetID string, days int) models.Series {
	return s.Fetch(ctx, assetID, days).Series
}

// Fetch returns the series for an asset window and where it came from.
// A fresh cached entry is served without contacting the upstream.
func (s *HistoricalService) Fetch(ctx context.Context, assetID string, days int) HistoricalResult {
	return s.fetch(ctx, assetID, days, false)
}

// Refresh refetches an asset window even when the cached entry is fresh.
// Concurrent refreshes of one window share a single upstream call.
func (s *HistoricalService) Refresh(ctx context.Context, assetID string, days int) HistoricalResult {
	return s.fetch(ctx, assetID, days, true)
}

func (s *HistoricalService) fetch(ctx context.Context, assetID string, days int, force bool) HistoricalResult {
	id := normalizeAssetID(assetID)
	if id == "" || days <= 0 {
		return HistoricalResult{AssetID: id, Days: days, Series: models.Series{}, Source: SourceNone}
	}
	key := cache.Key{AssetID: id, Days: days}

	if !force {
		start := time.Now()
		entry, ok := s.cache.Get(ctx, key)
		hit := ok && entry.Fresh(s.now(), s.ttl)
		s.log.LogCacheOperation("get", key.String(), hit, time.Since(start).Milliseconds())
		if hit {
			s.recordHit()
			return resultFromEntry(key, entry, SourceCache)
		}
		s.recordMiss()
	}

	// The refresh outlives an abandoning caller so the cache still gets populated.
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key.String(), func() (interface{}, error) {
		return s.refresh(detached, key, force), nil
	})

	select {
	case res := <-ch:
		out := res.Val.(HistoricalResult)
		out.Series = out.Series.Clone()
		return out
	case <-ctx.Done():
		if entry, ok := s.cache.Get(detached, key); ok {
			source := SourceStale
			if entry.Fresh(s.now(), s.ttl) {
				source = SourceCache
			}
			return resultFromEntry(key, entry, source)
		}
		return HistoricalResult{AssetID: id, Days: days, Series: models.Series{}, Source: SourceNone}
	}
}

func (s *HistoricalService) refresh(ctx context.Context, key cache.Key, force bool) HistoricalResult {
	previous, hasPrevious := s.cache.Get(ctx, key)
	if !force && hasPrevious && previous.Fresh(s.now(), s.ttl) {
		return resultFromEntry(key, previous, SourceCache)
	}

	fetched, err := s.fetchUpstream(ctx, key)
	if err == nil {
		entry := cache.Entry{Series: fetched, FetchedAt: s.now()}
		s.store(ctx, key, entry)
		s.setLastError(key, nil)
		return resultFromEntry(key, entry, SourceLive)
	}

	s.setLastError(key, err)
	log := s.log.WithAsset(key.AssetID, key.Days).WithField("component", "historical").WithError(err)

	if hasPrevious {
		log.Warn("Upstream fetch failed, serving previous series")
		s.recordStale()
		return resultFromEntry(key, previous, SourceStale)
	}

	log.Warn("Upstream fetch failed, serving generated series")
	s.recordFallback()
	entry := cache.Entry{
		Series:    s.generator.Generate(key.AssetID, key.Days),
		FetchedAt: s.now(),
		Synthetic: true,
	}
	s.store(ctx, key, entry)
	return resultFromEntry(key, entry, SourceFallback)
}

func (s *HistoricalService) fetchUpstream(ctx context.Context, key cache.Key) (models.Series, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, telemetry.GetExternalTracer(), "coingecko.market_chart",
		telemetry.StringAttribute("asset_id", key.AssetID),
		telemetry.IntAttribute("days", key.Days),
	)
	defer span.End()

	var chart *coingecko.MarketChart
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		c, err := s.provider.FetchMarketChart(ctx, key.AssetID, key.Days)
		if err != nil {
			return err
		}
		chart = c
		return nil
	})
	if errors.Is(err, ErrCircuitOpen) {
		err = coingecko.Unavailable("circuit open", err)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	normalized := series.Normalize(chart.Prices, key.Days)
	if len(normalized) == 0 {
		err := fmt.Errorf("%w: no price points for %s", coingecko.ErrUpstreamUnavailable, key)
		telemetry.RecordError(span, err)
		return nil, err
	}
	sampled := series.Sample(normalized, series.TargetCount(key.Days))
	span.SetAttributes(telemetry.IntAttribute("points", len(sampled)))
	return sampled, nil
}

func (s *HistoricalService) store(ctx context.Context, key cache.Key, entry cache.Entry) {
	if err := s.cache.Set(ctx, key, entry); err != nil {
		s.log.WithAsset(key.AssetID, key.Days).WithError(err).Warn("Failed to cache series")
	}
}

// LastError returns the most recent upstream failure for an asset window,
// or nil when the last fetch succeeded or none happened.
func (s *HistoricalService) LastError(assetID string, days int) error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.lastErrors[cache.Key{AssetID: normalizeAssetID(assetID), Days: days}]
}

func (s *HistoricalService) setLastError(key cache.Key, err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if err == nil {
		delete(s.lastErrors, key)
		return
	}
	s.lastErrors[key] = err
}

// Breaker exposes the upstream circuit breaker for health reporting.
func (s *HistoricalService) Breaker() *CircuitBreaker {
	return s.breaker
}

func (s *HistoricalService) recordHit() {
	if s.analytics != nil {
		s.analytics.RecordHit(CategoryHistorical)
	}
}

func (s *HistoricalService) recordMiss() {
	if s.analytics != nil {
		s.analytics.RecordMiss(CategoryHistorical)
	}
}

func (s *HistoricalService) recordStale() {
	if s.analytics != nil {
		s.analytics.RecordStale(CategoryHistorical)
	}
}

func (s *HistoricalService) recordFallback() {
	if s.analytics != nil {
		s.analytics.RecordFallback(CategoryHistorical)
	}
}

func resultFromEntry(key cache.Key, entry cache.Entry, source Source) HistoricalResult {
	if entry.Synthetic {
		source = SourceFallback
	}
	return HistoricalResult{
		AssetID:   key.AssetID,
		Days:      key.Days,
		Series:    entry.Series,
		Source:    source,
		FetchedAt: entry.FetchedAt,
	}
}

func normalizeAssetID(assetID string) string {
	return strings.ToLower(strings.TrimSpace(assetID))
}
