// Package series normalizes raw price observations into display-ready
// historical series: rounding, labelling, ordering and down-sampling.
package series

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/pricecast/internal/models"
)

// MinPrice is the floor applied to every generated or projected price.
const MinPrice = 0.01

const (
	labelIntraday = "03:04 PM"
	labelDaily    = "Jan 2"
	labelMonthly  = "Jan 2006"
)

// TargetCount returns how many points a window of the given number of days is sampled down to.
func TargetCount(days int) int {
	switch {
	case days <= 1:
		return 24
	case days <= 7:
		return 42
	case days <= 30:
		return 60
	case days <= 365:
		return 52
	default:
		return 60
	}
}

// Sample reduces s to roughly target points by stride selection.
// The last point of s is always kept. The result never aliases s.
func Sample(s models.Series, target int) models.Series {
	if target < 1 {
		target = 1
	}
	if len(s) <= target {
		return s.Clone()
	}

	step := len(s) / target
	out := make(models.Series, 0, target+1)
	for i := 0; i < len(s); i += step {
		out = append(out, s[i])
	}
	if out[len(out)-1].Timestamp != s[len(s)-1].Timestamp {
		out = append(out, s[len(s)-1])
	}
	return out
}

// Label formats a timestamp with the granularity suited to the window size.
func Label(ts int64, days int) string {
	t := time.UnixMilli(ts).UTC()
	switch {
	case days <= 1:
		return t.Format(labelIntraday)
	case days <= 30:
		return t.Format(labelDaily)
	default:
		return t.Format(labelMonthly)
	}
}

// ProjectedLabel formats a forecast timestamp.
func ProjectedLabel(ts int64) string {
	return time.UnixMilli(ts).UTC().Format(labelMonthly)
}

// RoundPrice rounds to two decimal places.
func RoundPrice(p float64) float64 {
	f, _ := decimal.NewFromFloat(p).Round(2).Float64()
	return f
}

// FloorPrice rounds p and clamps it to MinPrice.
func FloorPrice(p float64) float64 {
	if p < MinPrice {
		p = MinPrice
	}
	r := RoundPrice(p)
	if r < MinPrice {
		return MinPrice
	}
	return r
}

// Pair is a raw (timestamp, price) observation as delivered upstream.
type Pair struct {
	Timestamp int64
	Price     float64
}

// Normalize turns raw pairs into a chronological series without duplicate
// timestamps. Prices are rounded and labelled for the window; the first
// occurrence of a timestamp wins.
func Normalize(pairs []Pair, days int) models.Series {
	sorted := make([]Pair, len(pairs))
	copy(sorted, pairs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	out := make(models.Series, 0, len(sorted))
	for i, p := range sorted {
		if i > 0 && p.Timestamp == sorted[i-1].Timestamp {
			continue
		}
		price := RoundPrice(p.Price)
		if price < 0 {
			price = 0
		}
		out = append(out, models.PricePoint{
			Timestamp: p.Timestamp,
			Price:     price,
			Label:     Label(p.Timestamp, days),
		})
	}
	return out
}
