package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/pricecast/internal/models"
)

func makeSeries(n int) models.Series {
	s := make(models.Series, n)
	for i := range s {
		s[i] = models.PricePoint{Timestamp: int64(i) * 1000, Price: float64(i + 1)}
	}
	return s
}

func TestTargetCount(t *testing.T) {
	tests := []struct {
		days     int
		expected int
	}{
		{0, 24},
		{1, 24},
		{2, 42},
		{7, 42},
		{8, 60},
		{30, 60},
		{90, 52},
		{365, 52},
		{366, 60},
		{1825, 60},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, TargetCount(tt.days), "days=%d", tt.days)
	}
}

func TestSample_ShortSeriesIsCopied(t *testing.T) {
	s := makeSeries(10)
	out := Sample(s, 24)

	require.Equal(t, s, out)
	out[0].Price = -1
	assert.Equal(t, 1.0, s[0].Price)
}

func TestSample_KeepsLastPoint(t *testing.T) {
	for _, n := range []int{25, 100, 101, 365, 1000} {
		for _, target := range []int{24, 42, 52, 60} {
			s := makeSeries(n)
			out := Sample(s, target)

			require.NotEmpty(t, out)
			assert.Equal(t, s[0], out[0], "n=%d target=%d", n, target)
			assert.Equal(t, s[n-1], out[len(out)-1], "n=%d target=%d", n, target)
			for i := 1; i < len(out); i++ {
				assert.Less(t, out[i-1].Timestamp, out[i].Timestamp)
			}
		}
	}
}

func TestSample_StrideSelection(t *testing.T) {
	s := makeSeries(10)
	out := Sample(s, 3)

	// step = 3: indices 0, 3, 6, 9
	assert.Equal(t, []int64{0, 3000, 6000, 9000}, out.Timestamps())

	out = Sample(makeSeries(11), 3)
	// indices 0, 3, 6, 9 plus the appended tail 10
	assert.Equal(t, []int64{0, 3000, 6000, 9000, 10000}, out.Timestamps())
}

func TestSample_Idempotent(t *testing.T) {
	for _, n := range []int{50, 100, 500, 2000} {
		for _, days := range []int{1, 7, 30, 365, 1000} {
			target := TargetCount(days)
			once := Sample(makeSeries(n), target)
			twice := Sample(once, target)
			assert.Equal(t, once, twice, "n=%d days=%d", n, days)
		}
	}
}

func TestSample_NonPositiveTarget(t *testing.T) {
	out := Sample(makeSeries(5), 0)
	assert.Equal(t, []int64{0, 4000}, out.Timestamps())

	assert.Empty(t, Sample(nil, 10))
}

func TestLabel(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC).UnixMilli()

	assert.Equal(t, "02:30 PM", Label(ts, 1))
	assert.Equal(t, "Mar 5", Label(ts, 7))
	assert.Equal(t, "Mar 5", Label(ts, 30))
	assert.Equal(t, "Mar 2024", Label(ts, 365))
	assert.Equal(t, "Mar 2024", ProjectedLabel(ts))
}

func TestRoundAndFloor(t *testing.T) {
	assert.Equal(t, 1.23, RoundPrice(1.234))
	assert.Equal(t, 1.24, RoundPrice(1.235))
	assert.Equal(t, MinPrice, FloorPrice(-5))
	assert.Equal(t, MinPrice, FloorPrice(0.001))
	assert.Equal(t, 12.35, FloorPrice(12.345))
}

func TestNormalize(t *testing.T) {
	pairs := []Pair{
		{Timestamp: 3000, Price: 3.333},
		{Timestamp: 1000, Price: 1.111},
		{Timestamp: 2000, Price: 2.222},
		{Timestamp: 2000, Price: 9.999},
	}

	out := Normalize(pairs, 365)

	require.Len(t, out, 3)
	assert.Equal(t, []int64{1000, 2000, 3000}, out.Timestamps())
	assert.Equal(t, []float64{1.11, 2.22, 3.33}, out.Prices())
	assert.Equal(t, "Jan 1970", out[0].Label)
	assert.Equal(t, int64(3000), pairs[0].Timestamp)
	assert.Empty(t, Normalize(nil, 7))
}
