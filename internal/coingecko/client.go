// Package coingecko is the client for the CoinGecko public market data API.
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/irfndi/pricecast/internal/config"
	"github.com/irfndi/pricecast/internal/models"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	defaultTimeout = 15 * time.Second
	userAgent      = "pricecast/1.0"
	apiKeyHeader   = "x-cg-demo-api-key"
)

// MarketDataProvider is the upstream source of price data.
type MarketDataProvider interface {
	FetchMarketChart(ctx context.Context, assetID string, days int) (*MarketChart, error)
	FetchMarkets(ctx context.Context, query MarketsQuery) ([]models.MarketSnapshot, error)
}

// MarketsQuery selects a page of /coins/markets.
type MarketsQuery struct {
	VsCurrency string
	PerPage    int
	IDs        []string
}

// Client calls the CoinGecko REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	vsCurrency string
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, e.g. to install a recording transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithVsCurrency(currency string) Option {
	return func(c *Client) {
		if currency != "" {
			c.vsCurrency = strings.ToLower(currency)
		}
	}
}

// WithRateLimit caps outgoing requests per minute. Zero disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client from configuration; options override it.
func NewClient(cfg config.CoinGeckoConfig, opts ...Option) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		vsCurrency: "usd",
		logger:     logrus.StandardLogger(),
	}
	base := []Option{
		WithBaseURL(cfg.BaseURL),
		WithAPIKey(cfg.APIKey),
		WithVsCurrency(cfg.VsCurrency),
		WithRateLimit(cfg.RequestsPerMinute),
	}
	for _, opt := range append(base, opts...) {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the per-request deadline of the underlying HTTP client.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// FetchMarketChart returns the price history of an asset for the last days days.
func (c *Client) FetchMarketChart(ctx context.Context, assetID string, days int) (*MarketChart, error) {
	params := url.Values{}
	params.Set("vs_currency", c.vsCurrency)
	params.Set("days", strconv.Itoa(days))
	path := fmt.Sprintf("/coins/%s/market_chart?%s", url.PathEscape(assetID), params.Encode())

	body, err := c.makeRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	return ParseMarketChart(body)
}

// FetchMarkets returns market snapshots ordered by market cap.
func (c *Client) FetchMarkets(ctx context.Context, query MarketsQuery) ([]models.MarketSnapshot, error) {
	currency := query.VsCurrency
	if currency == "" {
		currency = c.vsCurrency
	}
	perPage := query.PerPage
	if perPage <= 0 {
		perPage = 50
	}

	params := url.Values{}
	params.Set("vs_currency", currency)
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", "1")
	params.Set("sparkline", "false")
	if len(query.IDs) > 0 {
		params.Set("ids", strings.Join(query.IDs, ","))
	}

	body, err := c.makeRequest(ctx, "/coins/markets?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return ParseMarkets(body)
}

func (c *Client) makeRequest(ctx context.Context, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, Throttled(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Unavailable("request failed", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Debug("Error closing response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Unavailable("failed to read response body", err)
	}

	c.logger.WithFields(logrus.Fields{
		"component":   "coingecko",
		"path":        req.URL.Path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Upstream request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Kind:       KindUnavailable,
			StatusCode: resp.StatusCode,
			Message:    "unexpected response",
			Cause:      errors.New(truncate(string(respBody), 200)),
		}
	}
	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
