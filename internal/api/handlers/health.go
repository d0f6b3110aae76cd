package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/pricecast/internal/logging"
	"github.com/irfndi/pricecast/internal/middleware"
	"github.com/irfndi/pricecast/internal/services"
)

var startTime = time.Now()

// RedisChecker is the health probe of the optional Redis tier.
type RedisChecker interface {
	HealthCheck(ctx context.Context) error
}

// BreakerReporter exposes circuit breaker state for the upstream provider.
type BreakerReporter interface {
	GetAllStats() map[string]services.CircuitBreakerStats
	AnyOpen() bool
}

type HealthResponse struct {
	Status          string                                  `json:"status"`
	Timestamp       time.Time                               `json:"timestamp"`
	Version         string                                  `json:"version"`
	Uptime          string                                  `json:"uptime"`
	Services        map[string]string                       `json:"services"`
	CircuitBreakers map[string]services.CircuitBreakerStats `json:"circuit_breakers,omitempty"`
	System          *SystemStats                            `json:"system,omitempty"`
}

type SystemStats struct {
	Goroutines        int     `json:"goroutines"`
	HeapAllocMB       float64 `json:"heap_alloc_mb"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	HostUptimeSeconds uint64  `json:"host_uptime_seconds"`
}

type HealthHandler struct {
	redis    RedisChecker
	breakers BreakerReporter
	version  string
	logger   *logrus.Logger
}

// NewHealthHandler creates a health handler. redis is nil when the Redis
// tier is disabled.
func NewHealthHandler(redis RedisChecker, breakers BreakerReporter, version string, logger *logrus.Logger) *HealthHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HealthHandler{
		redis:    redis,
		breakers: breakers,
		version:  version,
		logger:   logger,
	}
}

// HealthCheck handles GET /health. The service stays up while the upstream
// is down, so an open breaker degrades the status without failing the probe.
// Only an unreachable Redis tier returns 503.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Services:  map[string]string{},
		System:    h.systemStats(ctx),
	}
	statusCode := http.StatusOK

	if h.redis == nil {
		response.Services["redis"] = "disabled"
	} else if err := h.redis.HealthCheck(ctx); err != nil {
		logging.NewStandardLogger(h.logger).WithRequestID(middleware.GetRequestID(c)).
			WithError(err).Warn("Redis health check failed")
		response.Services["redis"] = "unhealthy: " + err.Error()
		response.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	} else {
		response.Services["redis"] = "healthy"
	}

	response.Services["coingecko"] = "healthy"
	if h.breakers != nil {
		response.CircuitBreakers = h.breakers.GetAllStats()
		if h.breakers.AnyOpen() {
			response.Services["coingecko"] = "degraded: circuit open"
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
		}
	}

	c.JSON(statusCode, response)
}

func (h *HealthHandler) systemStats(ctx context.Context) *SystemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats := &SystemStats{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(ms.HeapAlloc) / 1024 / 1024,
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryUsedPercent = vm.UsedPercent
	} else {
		h.logger.WithError(err).Debug("Failed to read system memory")
	}
	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		stats.HostUptimeSeconds = uptime
	}
	return stats
}
