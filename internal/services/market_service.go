package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/irfndi/pricecast/internal/coingecko"
	"github.com/irfndi/pricecast/internal/fallback"
	"github.com/irfndi/pricecast/internal/logging"
	"github.com/irfndi/pricecast/internal/models"
	"github.com/irfndi/pricecast/internal/telemetry"
)

const (
	DefaultMarketTTL = time.Minute
	marketsPerPage   = 50
	marketsFlightKey = "markets"
)

// requiredMarketIDs are always part of the snapshot even when they rank
// below the first page.
var requiredMarketIDs = []string{"lido-dao", "staked-ether"}

// MarketResult is the market snapshot list with its provenance.
type MarketResult struct {
	Markets   []models.MarketSnapshot `json:"markets"`
	Source    Source                  `json:"source"`
	FetchedAt time.Time               `json:"fetched_at"`
}

func (r MarketResult) Approximate() bool {
	return r.Source == SourceStale || r.Source == SourceFallback
}

// MarketService serves the top assets by market cap.
type MarketService struct {
	provider  coingecko.MarketDataProvider
	breaker   *CircuitBreaker
	analytics *CacheAnalyticsService
	logger    *logrus.Logger
	ttl       time.Duration
	now       func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	markets   []models.MarketSnapshot
	fetchedAt time.Time
}

type MarketOption func(*MarketService)

func WithMarketTTL(ttl time.Duration) MarketOption {
	return func(s *MarketService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithMarketBreaker(cb *CircuitBreaker) MarketOption {
	return func(s *MarketService) { s.breaker = cb }
}

func WithMarketAnalytics(a *CacheAnalyticsService) MarketOption {
	return func(s *MarketService) { s.analytics = a }
}

func WithMarketClock(now func() time.Time) MarketOption {
	return func(s *MarketService) { s.now = now }
}

func NewMarketService(provider coingecko.MarketDataProvider, logger *logrus.Logger, opts ...MarketOption) *MarketService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &MarketService{
		provider: provider,
		logger:   logger,
		ttl:      DefaultMarketTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = NewCircuitBreaker("coingecko_markets", CircuitBreakerConfig{}, logger)
	}
	return s
}

// GetMarkets returns the cached snapshot list, refreshing it when older than
// the ttl. Failures fall back to the previous list, then to a static one.
func (s *MarketService) GetMarkets(ctx context.Context) MarketResult {
	if cached, fetchedAt, ok := s.cached(); ok && s.now().Sub(fetchedAt) < s.ttl {
		s.record(func(a *CacheAnalyticsService) { a.RecordHit(CategoryMarkets) })
		return MarketResult{Markets: cached, Source: SourceCache, FetchedAt: fetchedAt}
	}
	s.record(func(a *CacheAnalyticsService) { a.RecordMiss(CategoryMarkets) })

	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(marketsFlightKey, func() (interface{}, error) {
		return s.refresh(detached), nil
	})

	select {
	case res := <-ch:
		out := res.Val.(MarketResult)
		out.Markets = cloneMarkets(out.Markets)
		return out
	case <-ctx.Done():
		if cached, fetchedAt, ok := s.cached(); ok {
			return MarketResult{Markets: cached, Source: SourceStale, FetchedAt: fetchedAt}
		}
		return MarketResult{Markets: fallback.MarketSnapshots(s.now()), Source: SourceFallback, FetchedAt: s.now()}
	}
}

func (s *MarketService) refresh(ctx context.Context) MarketResult {
	ctx, span := telemetry.StartSpan(ctx, telemetry.GetExternalTracer(), "coingecko.markets")
	defer span.End()
	log := logging.NewStandardLogger(s.logger).WithComponent("markets")

	markets, err := s.fetch(ctx, coingecko.MarketsQuery{PerPage: marketsPerPage})
	if err == nil && len(markets) == 0 {
		err = coingecko.Unavailable("empty markets response", nil)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		if cached, fetchedAt, ok := s.cached(); ok {
			log.WithError(err).Warn("Markets fetch failed, serving previous snapshot")
			s.record(func(a *CacheAnalyticsService) { a.RecordStale(CategoryMarkets) })
			return MarketResult{Markets: cached, Source: SourceStale, FetchedAt: fetchedAt}
		}
		log.WithError(err).Warn("Markets fetch failed, serving static snapshot")
		s.record(func(a *CacheAnalyticsService) { a.RecordFallback(CategoryMarkets) })
		return MarketResult{Markets: fallback.MarketSnapshots(s.now()), Source: SourceFallback, FetchedAt: s.now()}
	}

	if missing := missingIDs(markets, requiredMarketIDs); len(missing) > 0 {
		extra, err := s.fetch(ctx, coingecko.MarketsQuery{PerPage: len(missing), IDs: missing})
		if err != nil {
			log.WithError(err).WithField("ids", missing).Warn("Failed to fetch required markets")
		} else {
			markets = append(markets, extra...)
		}
	}

	now := s.now()
	s.mu.Lock()
	s.markets = markets
	s.fetchedAt = now
	s.mu.Unlock()

	span.SetAttributes(telemetry.IntAttribute("markets", len(markets)))
	return MarketResult{Markets: markets, Source: SourceLive, FetchedAt: now}
}

func (s *MarketService) fetch(ctx context.Context, query coingecko.MarketsQuery) ([]models.MarketSnapshot, error) {
	var markets []models.MarketSnapshot
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		m, err := s.provider.FetchMarkets(ctx, query)
		if err != nil {
			return err
		}
		markets = m
		return nil
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, coingecko.Unavailable("circuit open", err)
	}
	return markets, err
}

func (s *MarketService) cached() ([]models.MarketSnapshot, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.markets == nil {
		return nil, time.Time{}, false
	}
	return cloneMarkets(s.markets), s.fetchedAt, true
}

func (s *MarketService) record(fn func(*CacheAnalyticsService)) {
	if s.analytics != nil {
		fn(s.analytics)
	}
}

// Breaker exposes the upstream circuit breaker for health reporting.
func (s *MarketService) Breaker() *CircuitBreaker {
	return s.breaker
}

func missingIDs(markets []models.MarketSnapshot, required []string) []string {
	present := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		present[m.ID] = struct{}{}
	}
	var missing []string
	for _, id := range required {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func cloneMarkets(in []models.MarketSnapshot) []models.MarketSnapshot {
	if in == nil {
		return nil
	}
	out := make([]models.MarketSnapshot, len(in))
	copy(out, in)
	return out
}
