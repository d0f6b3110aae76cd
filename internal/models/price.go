package models

// PricePoint represents a single price observation in a historical series
type PricePoint struct {
	Timestamp int64   `json:"timestamp" msgpack:"t"` // epoch milliseconds
	Price     float64 `json:"price" msgpack:"p"`
	Label     string  `json:"date" msgpack:"l"`
}

// ProjectedPoint is a point of a combined series, flagged when it comes from the forecast
type ProjectedPoint struct {
	PricePoint
	IsProjected bool `json:"isProjected"`
}

// Series is a chronologically ordered list of price points without duplicate timestamps
type Series []PricePoint

// Prices returns the price column of the series.
func (s Series) Prices() []float64 {
	prices := make([]float64, len(s))
	for i, p := range s {
		prices[i] = p.Price
	}
	return prices
}

// Timestamps returns the timestamp column of the series.
func (s Series) Timestamps() []int64 {
	ts := make([]int64, len(s))
	for i, p := range s {
		ts[i] = p.Timestamp
	}
	return ts
}

// Clone returns a copy that does not share the backing array.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Last returns the most recent point and false when the series is empty.
func (s Series) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}

// Span returns the distance in milliseconds between the first and last point.
func (s Series) Span() int64 {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Timestamp - s[0].Timestamp
}
