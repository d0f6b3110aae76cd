package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/pricecast/internal/models"
)

const (
	DefaultSMAPeriod = 20
	DefaultEMAPeriod = 20
	DefaultRSIPeriod = 14

	rsiOverbought = 70.0
	rsiOversold   = 30.0

	SignalBuy  = "buy"
	SignalSell = "sell"
	SignalHold = "hold"
)

// IndicatorPeriods selects the lookback of each indicator. Zero means the default.
type IndicatorPeriods struct {
	SMA int
	EMA int
	RSI int
}

func (p IndicatorPeriods) withDefaults() IndicatorPeriods {
	if p.SMA <= 0 {
		p.SMA = DefaultSMAPeriod
	}
	if p.EMA <= 0 {
		p.EMA = DefaultEMAPeriod
	}
	if p.RSI <= 0 {
		p.RSI = DefaultRSIPeriod
	}
	return p
}

// IndicatorService computes moving averages and RSI over the sampled
// historical series of an asset.
type IndicatorService struct {
	historical HistoricalFetcher
	logger     *logrus.Logger
	now        func() time.Time
}

func NewIndicatorService(historical HistoricalFetcher, logger *logrus.Logger) *IndicatorService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &IndicatorService{historical: historical, logger: logger, now: time.Now}
}

// Calculate returns every indicator the series is long enough for.
func (s *IndicatorService) Calculate(ctx context.Context, assetID string, days int, periods IndicatorPeriods) models.IndicatorSet {
	periods = periods.withDefaults()
	hist := s.historical.Fetch(ctx, assetID, days)
	prices := hist.Series.Prices()

	set := models.IndicatorSet{
		AssetID:     hist.AssetID,
		Days:        days,
		Approximate: hist.Approximate(),
		Indicators:  []models.IndicatorResult{},
	}
	for _, result := range []*models.IndicatorResult{
		s.calculateSMA(prices, periods.SMA),
		s.calculateEMA(prices, periods.EMA),
		s.calculateRSI(prices, periods.RSI),
	} {
		if result != nil {
			set.Indicators = append(set.Indicators, *result)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"asset_id":   hist.AssetID,
		"days":       days,
		"points":     len(prices),
		"indicators": len(set.Indicators),
	}).Debug("Indicators calculated")
	return set
}

func (s *IndicatorService) calculateSMA(prices []float64, period int) *models.IndicatorResult {
	if len(prices) < period {
		return nil
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	result := helper.ChanToSlice(sma.Compute(helper.SliceToChan(prices)))

	return &models.IndicatorResult{
		Name:      fmt.Sprintf("SMA_%d", period),
		Period:    period,
		Values:    toDecimals(result),
		Signal:    averageSignal(prices, result),
		Timestamp: s.now(),
	}
}

func (s *IndicatorService) calculateEMA(prices []float64, period int) *models.IndicatorResult {
	if len(prices) < period {
		return nil
	}
	ema := trend.NewEmaWithPeriod[float64](period)
	result := helper.ChanToSlice(ema.Compute(helper.SliceToChan(prices)))

	return &models.IndicatorResult{
		Name:      fmt.Sprintf("EMA_%d", period),
		Period:    period,
		Values:    toDecimals(result),
		Signal:    averageSignal(prices, result),
		Timestamp: s.now(),
	}
}

func (s *IndicatorService) calculateRSI(prices []float64, period int) *models.IndicatorResult {
	if len(prices) < period+1 {
		return nil
	}
	rsi := momentum.NewRsiWithPeriod[float64](period)
	result := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(prices)))

	return &models.IndicatorResult{
		Name:      fmt.Sprintf("RSI_%d", period),
		Period:    period,
		Values:    toDecimals(result),
		Signal:    rsiSignal(result),
		Timestamp: s.now(),
	}
}

// averageSignal compares the latest price with the latest average.
func averageSignal(prices, average []float64) string {
	if len(prices) == 0 || len(average) == 0 {
		return SignalHold
	}
	price := prices[len(prices)-1]
	avg := average[len(average)-1]
	switch {
	case math.IsNaN(avg):
		return SignalHold
	case price > avg:
		return SignalBuy
	case price < avg:
		return SignalSell
	default:
		return SignalHold
	}
}

func rsiSignal(values []float64) string {
	if len(values) == 0 {
		return SignalHold
	}
	last := values[len(values)-1]
	switch {
	case math.IsNaN(last):
		return SignalHold
	case last > rsiOverbought:
		return SignalSell
	case last < rsiOversold:
		return SignalBuy
	default:
		return SignalHold
	}
}

// toDecimals rounds to 4 places. Non-finite values (a flat series has no
// defined RSI) are dropped since decimal cannot represent them.
func toDecimals(values []float64) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, decimal.NewFromFloat(v).Round(4))
	}
	return out
}
