package fallback

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/pricecast/internal/models"
)

type snapshotSeed struct {
	id, symbol, name string
	marketCap        int64
}

// Ordered by market cap rank. Prices come from the seed table.
var snapshotSeeds = []snapshotSeed{
	{"bitcoin", "btc", "Bitcoin", 585_000_000_000},
	{"ethereum", "eth", "Ethereum", 240_000_000_000},
	{"tether", "usdt", "Tether", 83_000_000_000},
	{"binancecoin", "bnb", "BNB", 46_000_000_000},
	{"solana", "sol", "Solana", 43_000_000_000},
	{"staked-ether", "steth", "Lido Staked Ether", 18_000_000_000},
	{"ripple", "xrp", "XRP", 27_000_000_000},
	{"cardano", "ada", "Cardano", 10_500_000_000},
	{"dogecoin", "doge", "Dogecoin", 10_000_000_000},
	{"polkadot", "dot", "Polkadot", 6_500_000_000},
	{"lido-dao", "ldo", "Lido DAO", 1_800_000_000},
}

// MarketSnapshots returns the static snapshot list served when the upstream
// markets endpoint fails and nothing is cached.
func MarketSnapshots(now time.Time) []models.MarketSnapshot {
	out := make([]models.MarketSnapshot, 0, len(snapshotSeeds))
	for i, s := range snapshotSeeds {
		seed := LookupSeed(s.id)
		price := decimal.NewFromFloat(seed.StartPrice)
		out = append(out, models.MarketSnapshot{
			ID:            s.id,
			Symbol:        s.symbol,
			Name:          s.name,
			CurrentPrice:  price,
			MarketCap:     decimal.NewFromInt(s.marketCap),
			MarketCapRank: i + 1,
			TotalVolume:   decimal.NewFromInt(s.marketCap / 50),
			LastUpdated:   now.UTC(),
		})
	}
	return out
}
