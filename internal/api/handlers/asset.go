package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/pricecast/internal/middleware"
	"github.com/irfndi/pricecast/internal/models"
	"github.com/irfndi/pricecast/internal/services"
	"github.com/irfndi/pricecast/internal/utils"
)

const (
	defaultDays = 365
	maxDays     = 3650
	maxPeriod   = 200
)

// HistoricalReader serves historical series.
type HistoricalReader interface {
	Fetch(ctx context.Context, assetID string, days int) services.HistoricalResult
}

// Forecaster projects a historical series forward.
type Forecaster interface {
	Forecast(ctx context.Context, assetID string, days, years int) services.ForecastResult
}

// IndicatorCalculator computes technical indicators over a historical series.
type IndicatorCalculator interface {
	Calculate(ctx context.Context, assetID string, days int, periods services.IndicatorPeriods) models.IndicatorSet
}

// HistoryResponse is the body of GET /assets/:id/history.
type HistoryResponse struct {
	AssetID     string          `json:"asset_id"`
	Days        int             `json:"days"`
	Approximate bool            `json:"approximate"`
	Source      services.Source `json:"source"`
	FetchedAt   *time.Time      `json:"fetched_at,omitempty"`
	Data        models.Series   `json:"data"`
}

// ForecastResponse is the body of GET /assets/:id/forecast.
type ForecastResponse struct {
	AssetID      string                  `json:"asset_id"`
	Days         int                     `json:"days"`
	Years        int                     `json:"years"`
	Approximate  bool                    `json:"approximate"`
	Illustrative bool                    `json:"illustrative"`
	Source       services.Source         `json:"source"`
	Data         []models.ProjectedPoint `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// AssetHandler serves the per-asset history, forecast and indicator endpoints.
type AssetHandler struct {
	historical HistoricalReader
	forecaster Forecaster
	indicators IndicatorCalculator
}

func NewAssetHandler(historical HistoricalReader, forecaster Forecaster, indicators IndicatorCalculator) *AssetHandler {
	return &AssetHandler{
		historical: historical,
		forecaster: forecaster,
		indicators: indicators,
	}
}

// GetHistory handles GET /api/v1/assets/:id/history?days=N.
func (h *AssetHandler) GetHistory(c *gin.Context) {
	assetID := strings.TrimSpace(c.Param("id"))
	days, err := utils.ParseBoundedInt("days", c.Query("days"), defaultDays, 1, maxDays)
	if err != nil {
		badRequest(c, err)
		return
	}

	res := h.historical.Fetch(c.Request.Context(), assetID, days)
	annotate(c, assetID, days, res.Source)

	resp := HistoryResponse{
		AssetID:     res.AssetID,
		Days:        days,
		Approximate: res.Approximate(),
		Source:      res.Source,
		Data:        res.Series,
	}
	if resp.Data == nil {
		resp.Data = models.Series{}
	}
	if !res.FetchedAt.IsZero() {
		fetchedAt := res.FetchedAt
		resp.FetchedAt = &fetchedAt
	}
	c.JSON(http.StatusOK, resp)
}

// GetForecast handles GET /api/v1/assets/:id/forecast?days=N&years=Y.
func (h *AssetHandler) GetForecast(c *gin.Context) {
	assetID := strings.TrimSpace(c.Param("id"))
	days, err := utils.ParseBoundedInt("days", c.Query("days"), defaultDays, 1, maxDays)
	if err != nil {
		badRequest(c, err)
		return
	}
	// Zero selects the configured default horizon.
	years, err := utils.ParseBoundedInt("years", c.Query("years"), 0, 0, 100)
	if err != nil {
		badRequest(c, err)
		return
	}

	res := h.forecaster.Forecast(c.Request.Context(), assetID, days, years)
	annotate(c, assetID, days, res.Source)

	c.JSON(http.StatusOK, ForecastResponse{
		AssetID:      res.AssetID,
		Days:         res.Days,
		Years:        res.Years,
		Approximate:  res.Approximate,
		Illustrative: true,
		Source:       res.Source,
		Data:         res.Points,
	})
}

// GetIndicators handles GET /api/v1/assets/:id/indicators?days=N&sma=20&ema=20&rsi=14.
func (h *AssetHandler) GetIndicators(c *gin.Context) {
	assetID := strings.TrimSpace(c.Param("id"))
	days, err := utils.ParseBoundedInt("days", c.Query("days"), defaultDays, 1, maxDays)
	if err != nil {
		badRequest(c, err)
		return
	}

	var periods services.IndicatorPeriods
	for _, p := range []struct {
		name string
		dst  *int
		def  int
	}{
		{"sma", &periods.SMA, services.DefaultSMAPeriod},
		{"ema", &periods.EMA, services.DefaultEMAPeriod},
		{"rsi", &periods.RSI, services.DefaultRSIPeriod},
	} {
		v, err := utils.ParseBoundedInt(p.name, c.Query(p.name), p.def, 2, maxPeriod)
		if err != nil {
			badRequest(c, err)
			return
		}
		*p.dst = v
	}

	set := h.indicators.Calculate(c.Request.Context(), assetID, days, periods)
	c.JSON(http.StatusOK, set)
}

func annotate(c *gin.Context, assetID string, days int, source services.Source) {
	middleware.AddSpanAttribute(c, "asset_id", assetID)
	middleware.AddSpanAttribute(c, "days", days)
	middleware.AddSpanAttribute(c, "source", string(source))
}

func badRequest(c *gin.Context, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var v *utils.ValidationError
	if errors.As(err, &v) {
		resp.Field = v.Field
	}
	c.JSON(http.StatusBadRequest, resp)
}
