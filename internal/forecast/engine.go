package forecast

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"

	"github.com/irfndi/pricecast/internal/models"
	"github.com/irfndi/pricecast/internal/random"
	"github.com/irfndi/pricecast/internal/telemetry"
)

// Engine runs the full projection pipeline.
type Engine struct {
	alpha  float64
	noise  float64
	rand   random.Source
	logger *logrus.Logger
}

type EngineOption func(*Engine)

func WithAlpha(alpha float64) EngineOption {
	return func(e *Engine) { e.alpha = alpha }
}

func WithNoise(noise float64) EngineOption {
	return func(e *Engine) { e.noise = noise }
}

func WithRandom(src random.Source) EngineOption {
	return func(e *Engine) { e.rand = src }
}

func WithLogger(logger *logrus.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		alpha:  DefaultAlpha,
		noise:  DefaultNoise,
		rand:   random.New(),
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Project returns the historical series followed by the blended forecast for
// the given number of years. It never fails: when projection is impossible
// the historical series is returned with every point unflagged.
func (e *Engine) Project(ctx context.Context, historical models.Series, years int) (result []models.ProjectedPoint) {
	_, span := telemetry.StartSpan(ctx, telemetry.GetForecastTracer(), "forecast.project",
		telemetry.IntAttribute("historical_points", len(historical)),
		telemetry.IntAttribute("years", years),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("forecast panic: %v", r)
			telemetry.RecordError(span, err)
			e.logger.WithError(err).Error("Forecast projection panicked, returning historical series")
			result = HistoricalOnly(historical)
		}
	}()

	out, err := e.project(historical, years)
	if err != nil {
		telemetry.RecordError(span, err)
		e.logger.WithFields(logrus.Fields{
			"component":         "forecast",
			"historical_points": len(historical),
			"years":             years,
		}).WithError(err).Warn("Forecast unavailable, returning historical series")
		return HistoricalOnly(historical)
	}
	telemetry.SetSpanAttributes(span, telemetry.IntAttribute("projected_points", len(out)-len(historical)))
	telemetry.SetSpanStatus(span, codes.Ok, "")
	return out
}

func (e *Engine) project(historical models.Series, years int) ([]models.ProjectedPoint, error) {
	k := LimitedPoints(historical, years)
	if k <= 0 {
		return nil, ErrDegenerateInput
	}

	prices := historical.Prices()
	linear := PredictLinear(prices, k)
	smoothed := PredictSmoothedWith(prices, k, SmoothingOptions{Alpha: e.alpha, Noise: e.noise}, e.rand)

	last, _ := historical.Last()
	timestamps := FutureTimestamps(last.Timestamp, HorizonMs(years), k)

	return Blend(historical, linear, smoothed, timestamps)
}
