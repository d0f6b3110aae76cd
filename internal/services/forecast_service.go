package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/pricecast/internal/config"
	"github.com/irfndi/pricecast/internal/forecast"
	"github.com/irfndi/pricecast/internal/models"
)

// ForecastResult is a historical series followed by its illustrative projection.
type ForecastResult struct {
	AssetID     string                  `json:"asset_id"`
	Days        int                     `json:"days"`
	Years       int                     `json:"years"`
	Approximate bool                    `json:"approximate"`
	Source      Source                  `json:"source"`
	Points      []models.ProjectedPoint `json:"data"`
}

// ForecastService projects the historical series of an asset forward.
type ForecastService struct {
	historical   HistoricalFetcher
	engine       *forecast.Engine
	defaultYears int
	maxYears     int
	logger       *logrus.Logger
}

// NewForecastService creates a forecast service. A nil engine gets the
// default smoothing parameters.
func NewForecastService(historical HistoricalFetcher, engine *forecast.Engine, cfg config.ForecastConfig, logger *logrus.Logger) *ForecastService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if engine == nil {
		engine = forecast.NewEngine(forecast.WithLogger(logger))
	}
	defaultYears := cfg.YearsToPredict
	if defaultYears <= 0 {
		defaultYears = 5
	}
	maxYears := cfg.MaxYears
	if maxYears < defaultYears {
		maxYears = defaultYears
	}
	return &ForecastService{
		historical:   historical,
		engine:       engine,
		defaultYears: defaultYears,
		maxYears:     maxYears,
		logger:       logger,
	}
}

// Years resolves a requested horizon: non-positive means the default and
// anything above the maximum is clamped.
func (s *ForecastService) Years(requested int) int {
	switch {
	case requested <= 0:
		return s.defaultYears
	case requested > s.maxYears:
		return s.maxYears
	default:
		return requested
	}
}

// Forecast fetches the historical window and appends the projection.
func (s *ForecastService) Forecast(ctx context.Context, assetID string, days, years int) ForecastResult {
	years = s.Years(years)
	hist := s.historical.Fetch(ctx, assetID, days)

	points := s.engine.Project(ctx, hist.Series, years)
	if points == nil {
		points = []models.ProjectedPoint{}
	}

	s.logger.WithFields(logrus.Fields{
		"asset_id": hist.AssetID,
		"days":     days,
		"years":    years,
		"source":   hist.Source,
		"points":   len(points),
	}).Debug("Forecast computed")

	return ForecastResult{
		AssetID:     hist.AssetID,
		Days:        days,
		Years:       years,
		Approximate: hist.Approximate(),
		Source:      hist.Source,
		Points:      points,
	}
}
