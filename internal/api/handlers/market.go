package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/pricecast/internal/models"
	"github.com/irfndi/pricecast/internal/services"
)

// MarketReader serves the market snapshot list.
type MarketReader interface {
	GetMarkets(ctx context.Context) services.MarketResult
}

// MarketsResponse is the body of GET /markets.
type MarketsResponse struct {
	Data        []models.MarketSnapshot `json:"data"`
	Total       int                     `json:"total"`
	Approximate bool                    `json:"approximate"`
	Source      services.Source         `json:"source"`
	Timestamp   time.Time               `json:"timestamp"`
}

type MarketHandler struct {
	markets MarketReader
}

func NewMarketHandler(markets MarketReader) *MarketHandler {
	return &MarketHandler{markets: markets}
}

// GetMarkets handles GET /api/v1/markets.
func (h *MarketHandler) GetMarkets(c *gin.Context) {
	res := h.markets.GetMarkets(c.Request.Context())
	data := res.Markets
	if data == nil {
		data = []models.MarketSnapshot{}
	}
	c.JSON(http.StatusOK, MarketsResponse{
		Data:        data,
		Total:       len(data),
		Approximate: res.Approximate(),
		Source:      res.Source,
		Timestamp:   res.FetchedAt,
	})
}
