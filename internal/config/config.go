package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment    string               `mapstructure:"environment"`
	LogLevel       string               `mapstructure:"log_level"`
	Server         ServerConfig         `mapstructure:"server"`
	Redis          RedisConfig          `mapstructure:"redis"`
	CoinGecko      CoinGeckoConfig      `mapstructure:"coingecko"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Forecast       ForecastConfig       `mapstructure:"forecast"`
	Warming        WarmingConfig        `mapstructure:"warming"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Retention time.Duration `mapstructure:"retention"`
}

type CoinGeckoConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	APIKey            string `mapstructure:"api_key" json:"-" yaml:"-"`
	Timeout           int    `mapstructure:"timeout"`
	VsCurrency        string `mapstructure:"vs_currency"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// CacheConfig holds the freshness windows for cached upstream data.
type CacheConfig struct {
	HistoricalTTL time.Duration `mapstructure:"historical_ttl"`
	MarketTTL     time.Duration `mapstructure:"market_ttl"`
}

type ForecastConfig struct {
	YearsToPredict int     `mapstructure:"years_to_predict"`
	MaxYears       int     `mapstructure:"max_years"`
	Alpha          float64 `mapstructure:"alpha"`
	Noise          float64 `mapstructure:"noise"`
}

type WarmingConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Schedule string   `mapstructure:"schedule"`
	Assets   []string `mapstructure:"assets"`
	Days     []int    `mapstructure:"days"`
}

// Breaker defaults applied when a value is unset.
const (
	DefaultBreakerSuccessThreshold = 2
	DefaultBreakerMaxRequests      = 3
)

type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRequests      int           `mapstructure:"max_requests"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Exporter       string `mapstructure:"exporter"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set default values
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("coingecko.api_key", "COINGECKO_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind COINGECKO_API_KEY environment variable: %w", err)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d", c.Server.Port)
	}
	if c.CoinGecko.BaseURL == "" {
		return errors.New("coingecko base url cannot be empty")
	}
	if c.CoinGecko.RequestsPerMinute < 0 {
		return errors.New("coingecko requests per minute cannot be negative")
	}
	if c.Cache.HistoricalTTL <= 0 {
		return errors.New("historical cache ttl must be greater than 0")
	}
	if c.Cache.MarketTTL <= 0 {
		return errors.New("market cache ttl must be greater than 0")
	}
	if c.Forecast.Alpha <= 0 || c.Forecast.Alpha > 1 {
		return fmt.Errorf("forecast alpha must be in (0, 1], got %v", c.Forecast.Alpha)
	}
	if c.Forecast.Noise < 0 || c.Forecast.Noise >= 1 {
		return fmt.Errorf("forecast noise must be in [0, 1), got %v", c.Forecast.Noise)
	}
	if c.Forecast.YearsToPredict <= 0 || c.Forecast.YearsToPredict > c.Forecast.MaxYears {
		return fmt.Errorf("forecast years must be between 1 and %d, got %d", c.Forecast.MaxYears, c.Forecast.YearsToPredict)
	}
	if c.Redis.Enabled && c.Redis.Retention < c.Cache.HistoricalTTL {
		return errors.New("redis retention must not be shorter than the historical cache ttl")
	}
	// A half-open breaker closes only after SuccessThreshold successes out of
	// at most MaxRequests trial calls.
	maxRequests, successThreshold := c.CircuitBreaker.MaxRequests, c.CircuitBreaker.SuccessThreshold
	if maxRequests <= 0 {
		maxRequests = DefaultBreakerMaxRequests
	}
	if successThreshold <= 0 {
		successThreshold = DefaultBreakerSuccessThreshold
	}
	if maxRequests < successThreshold {
		return fmt.Errorf("circuit breaker max requests (%d) must not be below the success threshold (%d)", maxRequests, successThreshold)
	}
	if c.Warming.Enabled && c.Warming.Schedule == "" {
		return errors.New("warming schedule cannot be empty when warming is enabled")
	}
	return nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func setDefaults(v *viper.Viper) {
	// Environment
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.retention", "24h")

	// CoinGecko
	v.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("coingecko.api_key", "")
	v.SetDefault("coingecko.timeout", 15)
	v.SetDefault("coingecko.vs_currency", "usd")
	v.SetDefault("coingecko.requests_per_minute", 30)

	// Cache
	v.SetDefault("cache.historical_ttl", "5m")
	v.SetDefault("cache.market_ttl", "1m")

	// Forecast
	v.SetDefault("forecast.years_to_predict", 5)
	v.SetDefault("forecast.max_years", 10)
	v.SetDefault("forecast.alpha", 0.3)
	v.SetDefault("forecast.noise", 0.05)

	// Warming
	v.SetDefault("warming.enabled", true)
	v.SetDefault("warming.schedule", "@every 2m")
	v.SetDefault("warming.assets", []string{"bitcoin", "ethereum"})
	v.SetDefault("warming.days", []int{365})

	// Circuit breaker
	v.SetDefault("circuit_breaker.failure_threshold", 5)
	v.SetDefault("circuit_breaker.success_threshold", DefaultBreakerSuccessThreshold)
	v.SetDefault("circuit_breaker.timeout", "60s")
	v.SetDefault("circuit_breaker.max_requests", DefaultBreakerMaxRequests)
	v.SetDefault("circuit_breaker.reset_timeout", "300s")

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "pricecast")
	v.SetDefault("telemetry.service_version", "1.0.0")
}
