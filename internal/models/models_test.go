package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeries_Columns(t *testing.T) {
	s := Series{
		{Timestamp: 1000, Price: 1.5, Label: "Jan 1"},
		{Timestamp: 2000, Price: 2.5, Label: "Jan 2"},
	}

	assert.Equal(t, []float64{1.5, 2.5}, s.Prices())
	assert.Equal(t, []int64{1000, 2000}, s.Timestamps())
	assert.Equal(t, int64(1000), s.Span())
}

func TestSeries_CloneDoesNotShareBacking(t *testing.T) {
	s := Series{{Timestamp: 1, Price: 10}}
	c := s.Clone()
	c[0].Price = 99

	assert.Equal(t, 10.0, s[0].Price)
	assert.Nil(t, Series(nil).Clone())
}

func TestSeries_Last(t *testing.T) {
	_, ok := Series{}.Last()
	assert.False(t, ok)

	p, ok := Series{{Timestamp: 1}, {Timestamp: 2}}.Last()
	require.True(t, ok)
	assert.Equal(t, int64(2), p.Timestamp)
	assert.Equal(t, int64(0), Series{{Timestamp: 5}}.Span())
}

func TestProjectedPoint_JSON(t *testing.T) {
	p := ProjectedPoint{
		PricePoint:  PricePoint{Timestamp: 1700000000000, Price: 42.5, Label: "Nov 2023"},
		IsProjected: true,
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":1700000000000,"price":42.5,"date":"Nov 2023","isProjected":true}`, string(data))
}

func TestMarketSnapshot_JSON(t *testing.T) {
	m := MarketSnapshot{
		ID:           "bitcoin",
		Symbol:       "btc",
		Name:         "Bitcoin",
		CurrentPrice: decimal.NewFromFloat(30000.5),
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "bitcoin", decoded["id"])
	assert.Equal(t, "30000.5", decoded["current_price"])
}
