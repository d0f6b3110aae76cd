// Package fallback produces plausible synthetic data when the upstream
// market data provider cannot be reached.
package fallback

import (
	"strings"
	"time"

	"github.com/irfndi/pricecast/internal/models"
	"github.com/irfndi/pricecast/internal/random"
	"github.com/irfndi/pricecast/internal/series"
)

const msPerDay = int64(24 * time.Hour / time.Millisecond)

// SeedParameters describe the starting point of a synthetic random walk.
type SeedParameters struct {
	StartPrice float64
	Volatility float64
}

// DefaultSeed is used for assets without an entry in the seed table.
var DefaultSeed = SeedParameters{StartPrice: 10, Volatility: 0.05}

var seeds = map[string]SeedParameters{
	"bitcoin":      {StartPrice: 30000, Volatility: 0.03},
	"ethereum":     {StartPrice: 2000, Volatility: 0.04},
	"tether":       {StartPrice: 1, Volatility: 0.001},
	"binancecoin":  {StartPrice: 300, Volatility: 0.03},
	"ripple":       {StartPrice: 0.5, Volatility: 0.05},
	"cardano":      {StartPrice: 0.3, Volatility: 0.06},
	"solana":       {StartPrice: 100, Volatility: 0.07},
	"dogecoin":     {StartPrice: 0.07, Volatility: 0.08},
	"polkadot":     {StartPrice: 5, Volatility: 0.05},
	"lido-dao":     {StartPrice: 2, Volatility: 0.06},
	"staked-ether": {StartPrice: 2000, Volatility: 0.04},
}

// LookupSeed returns the seed parameters for an asset id, ignoring case.
func LookupSeed(assetID string) SeedParameters {
	if p, ok := seeds[strings.ToLower(strings.TrimSpace(assetID))]; ok {
		return p
	}
	return DefaultSeed
}

// Generator builds synthetic historical series.
type Generator struct {
	rand random.Source
	now  func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithSource sets the randomness used for the walk.
func WithSource(src random.Source) Option {
	return func(g *Generator) {
		g.rand = src
	}
}

// WithClock sets the clock the series ends at.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rand: random.New(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a random walk for the asset covering the last days days.
// The series has series.TargetCount(days) points, starts at the seed price
// and never drops below series.MinPrice.
func (g *Generator) Generate(assetID string, days int) models.Series {
	if days <= 0 {
		return models.Series{}
	}

	seed := LookupSeed(assetID)
	points := series.TargetCount(days)
	msPerPoint := int64(days) * msPerDay / int64(points)
	now := g.now().UnixMilli()

	out := make(models.Series, points)
	price := seed.StartPrice
	for i := 0; i < points; i++ {
		if i > 0 {
			change := (g.rand.Float64() - 0.5) * 2 * seed.Volatility * price
			price += change
			if price < series.MinPrice {
				price = series.MinPrice
			}
		}
		ts := now - int64(points-i)*msPerPoint
		out[i] = models.PricePoint{
			Timestamp: ts,
			Price:     series.FloorPrice(price),
			Label:     series.Label(ts, days),
		}
	}
	return out
}
