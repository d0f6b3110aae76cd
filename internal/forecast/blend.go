package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/irfndi/pricecast/internal/models"
	"github.com/irfndi/pricecast/internal/series"
)

var (
	ErrLengthMismatch  = errors.New("forecast: model outputs and timestamps differ in length")
	ErrDegenerateInput = errors.New("forecast: historical series too short to project")
)

const msPerYear = int64(365 * 24 * time.Hour / time.Millisecond)

// HorizonMs returns the length of a projection of the given number of years.
func HorizonMs(years int) int64 {
	return int64(years) * msPerYear
}

// BlendWeight is the weight of the trend model for the i-th of k future
// points, counting from 1. The adaptive model gets the remainder.
func BlendWeight(i, k int) float64 {
	if k <= 0 {
		return 0
	}
	return float64(i) / float64(k)
}

// LimitedPoints returns how many future points to project: the historical
// density carried over the horizon, capped at one point per month.
func LimitedPoints(historical models.Series, years int) int {
	if len(historical) < 2 || years <= 0 {
		return 0
	}
	span := historical.Span()
	if span <= 0 {
		return 0
	}
	density := math.Ceil(float64(HorizonMs(years)) * float64(len(historical)) / float64(span))
	limit := years * 12
	if density < float64(limit) {
		return int(density)
	}
	return limit
}

// FutureTimestamps spaces k points evenly after last, the k-th at last+horizonMs.
func FutureTimestamps(last, horizonMs int64, k int) []int64 {
	if k <= 0 {
		return []int64{}
	}
	out := make([]int64, k)
	for i := 1; i <= k; i++ {
		out[i-1] = last + int64(i)*horizonMs/int64(k)
	}
	return out
}

// HistoricalOnly flags every point of s as observed.
func HistoricalOnly(s models.Series) []models.ProjectedPoint {
	out := make([]models.ProjectedPoint, len(s))
	for i, p := range s {
		out[i] = models.ProjectedPoint{PricePoint: p}
	}
	return out
}

// Blend combines the two model outputs into projected points and appends
// them to the historical series.
func Blend(historical models.Series, linear, smoothed []float64, timestamps []int64) ([]models.ProjectedPoint, error) {
	k := len(timestamps)
	if len(linear) != k || len(smoothed) != k {
		return nil, fmt.Errorf("%w: linear=%d smoothed=%d timestamps=%d", ErrLengthMismatch, len(linear), len(smoothed), k)
	}

	out := make([]models.ProjectedPoint, 0, len(historical)+k)
	out = append(out, HistoricalOnly(historical)...)
	for i := 1; i <= k; i++ {
		w := BlendWeight(i, k)
		v := linear[i-1]*w + smoothed[i-1]*(1-w)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("forecast: non-finite blended value at point %d", i)
		}
		ts := timestamps[i-1]
		out = append(out, models.ProjectedPoint{
			PricePoint: models.PricePoint{
				Timestamp: ts,
				Price:     series.FloorPrice(v),
				Label:     series.ProjectedLabel(ts),
			},
			IsProjected: true,
		})
	}
	return out, nil
}
