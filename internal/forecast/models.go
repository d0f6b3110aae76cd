// Package forecast projects a historical price series forward by blending a
// least-squares trend line with an exponentially smoothed random walk.
//
// Forecasts are illustrative. They carry no confidence intervals.
package forecast

import (
	"github.com/irfndi/pricecast/internal/random"
)

const (
	// DefaultAlpha is the smoothing factor of the adaptive model.
	DefaultAlpha = 0.3
	// DefaultNoise is the maximum relative step of the adaptive model's walk.
	DefaultNoise = 0.05
)

// regression fits y = m*x + b over x = 0..len(y)-1. Degenerate inputs
// yield a flat line through the mean.
func regression(prices []float64) (m, b float64) {
	n := float64(len(prices))
	if len(prices) == 0 {
		return 0, 0
	}

	var sumX, sumY float64
	for i, p := range prices {
		sumX += float64(i)
		sumY += p
	}
	meanX, meanY := sumX/n, sumY/n
	if len(prices) == 1 {
		return 0, meanY
	}

	var num, den float64
	for i, p := range prices {
		dx := float64(i) - meanX
		num += dx * (p - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0, meanY
	}
	m = num / den
	return m, meanY - m*meanX
}

// PredictLinear extends the least-squares line through prices by n points.
func PredictLinear(prices []float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	m, b := regression(prices)
	l := float64(len(prices))

	out := make([]float64, n)
	for i := 1; i <= n; i++ {
		out[i-1] = m*(l+float64(i)-1) + b
	}
	return out
}

// Smooth returns the last exponentially smoothed value of prices.
func Smooth(prices []float64, alpha float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	s := prices[0]
	for _, p := range prices[1:] {
		s = alpha*p + (1-alpha)*s
	}
	return s
}

// SmoothingOptions tune the adaptive model.
type SmoothingOptions struct {
	Alpha float64
	Noise float64
}

// PredictSmoothed emits n points starting at the smoothed level and walking
// by up to DefaultNoise per step.
func PredictSmoothed(prices []float64, n int, alpha float64, src random.Source) []float64 {
	return PredictSmoothedWith(prices, n, SmoothingOptions{Alpha: alpha, Noise: DefaultNoise}, src)
}

// PredictSmoothedWith is PredictSmoothed with an explicit noise amplitude.
func PredictSmoothedWith(prices []float64, n int, opts SmoothingOptions, src random.Source) []float64 {
	if len(prices) == 0 || n <= 0 {
		return []float64{}
	}
	if src == nil {
		src = random.New()
	}

	current := Smooth(prices, opts.Alpha)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = current
		current *= 1 + (src.Float64()*2-1)*opts.Noise
	}
	return out
}
