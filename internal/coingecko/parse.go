package coingecko

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/irfndi/pricecast/internal/models"
	"github.com/irfndi/pricecast/internal/series"
)

// MarketChart is the validated content of a /market_chart response.
type MarketChart struct {
	Prices []series.Pair
}

// ParseMarketChart validates body and extracts the price pairs.
// Every schema violation is reported as ErrMalformedPayload.
func ParseMarketChart(body []byte) (*MarketChart, error) {
	if !gjson.ValidBytes(body) {
		return nil, Malformed("response is not valid JSON")
	}

	prices := gjson.GetBytes(body, "prices")
	if !prices.Exists() {
		return nil, Malformed("missing prices field")
	}
	if !prices.IsArray() {
		return nil, Malformed("prices is %s, want array", prices.Type)
	}

	rows := prices.Array()
	chart := &MarketChart{Prices: make([]series.Pair, 0, len(rows))}
	for i, row := range rows {
		if !row.IsArray() {
			return nil, Malformed("prices[%d] is not an array", i)
		}
		cols := row.Array()
		if len(cols) < 2 {
			return nil, Malformed("prices[%d] has %d columns, want 2", i, len(cols))
		}
		if cols[0].Type != gjson.Number || cols[1].Type != gjson.Number {
			return nil, Malformed("prices[%d] is not a [timestamp, price] pair", i)
		}
		chart.Prices = append(chart.Prices, series.Pair{
			Timestamp: cols[0].Int(),
			Price:     cols[1].Float(),
		})
	}
	return chart, nil
}

// ParseMarkets extracts snapshots from a /coins/markets response.
func ParseMarkets(body []byte) ([]models.MarketSnapshot, error) {
	if !gjson.ValidBytes(body) {
		return nil, Malformed("response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, Malformed("markets response is %s, want array", root.Type)
	}

	var out []models.MarketSnapshot
	for i, coin := range root.Array() {
		id := coin.Get("id").String()
		if id == "" {
			return nil, Malformed("markets[%d] has no id", i)
		}
		snap := models.MarketSnapshot{
			ID:                       id,
			Symbol:                   coin.Get("symbol").String(),
			Name:                     coin.Get("name").String(),
			Image:                    coin.Get("image").String(),
			CurrentPrice:             decimalField(coin, "current_price"),
			MarketCap:                decimalField(coin, "market_cap"),
			MarketCapRank:            int(coin.Get("market_cap_rank").Int()),
			TotalVolume:              decimalField(coin, "total_volume"),
			PriceChangePercentage24h: coin.Get("price_change_percentage_24h").Float(),
		}
		if ts, err := time.Parse(time.RFC3339, coin.Get("last_updated").String()); err == nil {
			snap.LastUpdated = ts
		}
		out = append(out, snap)
	}
	return out, nil
}

func decimalField(r gjson.Result, path string) decimal.Decimal {
	v := r.Get(path)
	if v.Type != gjson.Number {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v.Raw)
	if err != nil {
		return decimal.NewFromFloat(v.Float())
	}
	return d
}
