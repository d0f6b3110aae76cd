package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Environment: "test",
		LogLevel:    "debug",
		Server:      ServerConfig{Port: 8080},
		Redis:       RedisConfig{Retention: 24 * time.Hour},
		CoinGecko: CoinGeckoConfig{
			BaseURL:           "https://api.coingecko.com/api/v3",
			Timeout:           15,
			RequestsPerMinute: 30,
		},
		Cache:    CacheConfig{HistoricalTTL: 5 * time.Minute, MarketTTL: time.Minute},
		Forecast: ForecastConfig{YearsToPredict: 5, MaxYears: 10, Alpha: 0.3, Noise: 0.05},
		Warming:  WarmingConfig{Enabled: true, Schedule: "@every 2m"},
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", config.Environment)
	assert.True(t, config.IsDevelopment())
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 8080, config.Server.Port)

	assert.False(t, config.Redis.Enabled)
	assert.Equal(t, "localhost", config.Redis.Host)
	assert.Equal(t, 6379, config.Redis.Port)
	assert.Equal(t, 24*time.Hour, config.Redis.Retention)

	assert.Equal(t, "https://api.coingecko.com/api/v3", config.CoinGecko.BaseURL)
	assert.Equal(t, 15, config.CoinGecko.Timeout)
	assert.Equal(t, "usd", config.CoinGecko.VsCurrency)
	assert.Equal(t, 30, config.CoinGecko.RequestsPerMinute)

	assert.Equal(t, 5*time.Minute, config.Cache.HistoricalTTL)
	assert.Equal(t, time.Minute, config.Cache.MarketTTL)

	assert.Equal(t, 5, config.Forecast.YearsToPredict)
	assert.Equal(t, 10, config.Forecast.MaxYears)
	assert.Equal(t, 0.3, config.Forecast.Alpha)
	assert.Equal(t, 0.05, config.Forecast.Noise)

	assert.True(t, config.Warming.Enabled)
	assert.Equal(t, "@every 2m", config.Warming.Schedule)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, config.Warming.Assets)
	assert.Equal(t, []int{365}, config.Warming.Days)

	assert.Equal(t, 5, config.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, config.CircuitBreaker.Timeout)

	assert.False(t, config.Telemetry.Enabled)
	assert.Equal(t, "stdout", config.Telemetry.Exporter)
	assert.Equal(t, "pricecast", config.Telemetry.ServiceName)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "prod-redis.example.com")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "1")
	t.Setenv("CACHE_HISTORICAL_TTL", "10m")
	t.Setenv("FORECAST_ALPHA", "0.5")
	t.Setenv("COINGECKO_API_KEY", "demo-key")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.False(t, config.IsDevelopment())
	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, 9000, config.Server.Port)
	assert.True(t, config.Redis.Enabled)
	assert.Equal(t, "prod-redis.example.com", config.Redis.Host)
	assert.Equal(t, 6380, config.Redis.Port)
	assert.Equal(t, 1, config.Redis.DB)
	assert.Equal(t, 10*time.Minute, config.Cache.HistoricalTTL)
	assert.Equal(t, 0.5, config.Forecast.Alpha)
	assert.Equal(t, "demo-key", config.CoinGecko.APIKey)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	yaml := []byte(`
server:
  port: 8181
warming:
  assets: [solana]
  days: [7, 30]
forecast:
  years_to_predict: 3
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), yaml, 0o600))
	t.Chdir(dir)

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8181, config.Server.Port)
	assert.Equal(t, []string{"solana"}, config.Warming.Assets)
	assert.Equal(t, []int{7, 30}, config.Warming.Days)
	assert.Equal(t, 3, config.Forecast.YearsToPredict)
	assert.Equal(t, "usd", config.CoinGecko.VsCurrency)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "70000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"empty base url", func(c *Config) { c.CoinGecko.BaseURL = "" }, "base url"},
		{"negative rate", func(c *Config) { c.CoinGecko.RequestsPerMinute = -1 }, "requests per minute"},
		{"zero historical ttl", func(c *Config) { c.Cache.HistoricalTTL = 0 }, "historical cache ttl"},
		{"zero market ttl", func(c *Config) { c.Cache.MarketTTL = 0 }, "market cache ttl"},
		{"alpha zero", func(c *Config) { c.Forecast.Alpha = 0 }, "alpha"},
		{"alpha above one", func(c *Config) { c.Forecast.Alpha = 1.5 }, "alpha"},
		{"alpha one", func(c *Config) { c.Forecast.Alpha = 1 }, ""},
		{"negative noise", func(c *Config) { c.Forecast.Noise = -0.1 }, "noise"},
		{"noise one", func(c *Config) { c.Forecast.Noise = 1 }, "noise"},
		{"years above max", func(c *Config) { c.Forecast.YearsToPredict = 11 }, "forecast years"},
		{"short retention", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Retention = time.Minute
		}, "retention"},
		{"short retention without redis", func(c *Config) { c.Redis.Retention = time.Minute }, ""},
		{"half-open budget below success threshold", func(c *Config) {
			c.CircuitBreaker.MaxRequests = 1
			c.CircuitBreaker.SuccessThreshold = 2
		}, "max requests"},
		{"success threshold above default budget", func(c *Config) { c.CircuitBreaker.SuccessThreshold = 4 }, "max requests"},
		{"max requests below default threshold", func(c *Config) { c.CircuitBreaker.MaxRequests = 1 }, "max requests"},
		{"half-open budget equals threshold", func(c *Config) {
			c.CircuitBreaker.MaxRequests = 2
			c.CircuitBreaker.SuccessThreshold = 2
		}, ""},
		{"empty schedule", func(c *Config) { c.Warming.Schedule = "" }, "schedule"},
		{"empty schedule disabled", func(c *Config) {
			c.Warming.Enabled = false
			c.Warming.Schedule = ""
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
