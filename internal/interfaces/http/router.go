// Package http exposes the scoring engine and the reference corpus over a
// gin JSON API.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	appmetrics "github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Protocol-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Protocol-Intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
type RouterConfig struct {
	// Handlers
	ProtocolHandler  *handlers.ProtocolHandler
	BenchmarkHandler *handlers.BenchmarkHandler
	HealthHandler    *handlers.HealthHandler

	// Middleware; a nil CORS config or limiter disables that layer.
	CORS        *config.CORSConfig
	RateLimiter *middleware.ClientLimiter
	Logging     middleware.LoggingConfig
	MaxBodySize int64

	// Infrastructure
	Logger           logging.Logger
	Metrics          *appmetrics.AppMetrics
	MetricsCollector appmetrics.MetricsCollector
	MetricsPath      string
}

// NewRouter builds the route tree: probes and metrics at the root, the
// rate-limited API under /api/v1.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(cfg.Logger, cfg.Metrics))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Metrics, cfg.Logging))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = config.DefaultMetricsPath
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimit(cfg.RateLimiter, cfg.Metrics))
	}
	api.Use(middleware.BodyLimit(cfg.MaxBodySize))

	registerProtocolRoutes(api, cfg.ProtocolHandler)
	registerBenchmarkRoutes(api, cfg.BenchmarkHandler)
	return r
}

func registerProtocolRoutes(g *gin.RouterGroup, h *handlers.ProtocolHandler) {
	if h == nil {
		return
	}
	p := g.Group("/protocols")
	p.POST("/analyze", h.Analyze)
	p.POST("/analyze/batch", h.AnalyzeBatch)
	p.POST("/features", h.Features)
	p.POST("/complexity", h.Complexity)
	p.POST("/enrollment", h.Enrollment)
	p.POST("/visit-burden", h.VisitBurden)
}

func registerBenchmarkRoutes(g *gin.RouterGroup, h *handlers.BenchmarkHandler) {
	if h == nil {
		return
	}
	g.POST("/benchmarks", h.Benchmark)
	g.GET("/corpus/summary", h.CorpusSummary)
	g.POST("/corpus/reload", h.ReloadCorpus)
}
