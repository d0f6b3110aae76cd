package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot represents the current market state of a single asset
type MarketSnapshot struct {
	ID                       string          `json:"id"`
	Symbol                   string          `json:"symbol"`
	Name                     string          `json:"name"`
	Image                    string          `json:"image,omitempty"`
	CurrentPrice             decimal.Decimal `json:"current_price"`
	MarketCap                decimal.Decimal `json:"market_cap"`
	MarketCapRank            int             `json:"market_cap_rank"`
	TotalVolume              decimal.Decimal `json:"total_volume"`
	PriceChangePercentage24h float64         `json:"price_change_percentage_24h"`
	LastUpdated              time.Time       `json:"last_updated"`
}

// IndicatorResult holds the values of one technical indicator over a series
type IndicatorResult struct {
	Name      string            `json:"name"`
	Period    int               `json:"period"`
	Values    []decimal.Decimal `json:"values"`
	Signal    string            `json:"signal"` // "buy", "sell", "hold"
	Timestamp time.Time         `json:"timestamp"`
}

// IndicatorSet groups the indicators computed for an asset window.
type IndicatorSet struct {
	AssetID     string            `json:"asset_id"`
	Days        int               `json:"days"`
	Approximate bool              `json:"approximate"`
	Indicators  []IndicatorResult `json:"indicators"`
}
