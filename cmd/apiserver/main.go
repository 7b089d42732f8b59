// Command apiserver serves the Protocol Intelligence HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Protocol-Intelligence/internal/application/analysis"
	"github.com/turtacn/Protocol-Intelligence/internal/config"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	appmetrics "github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/storage"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/common"
	httpserver "github.com/turtacn/Protocol-Intelligence/internal/interfaces/http"
	"github.com/turtacn/Protocol-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Protocol-Intelligence/internal/interfaces/http/middleware"
)

// Build-time variable injected via ldflags.
var version = "dev"

const limiterIdle = 10 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	httpPort := flag.Int("http-port", 0, "HTTP port (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("api server exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.Server.Mode)
	logger.Info("starting protocol intelligence api server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port))

	// ── Metrics ──────────────────────────────────────────────────────────────
	metrics := appmetrics.NewNoopAppMetrics()
	var collector appmetrics.MetricsCollector
	if cfg.Metrics.Enabled {
		c, err := appmetrics.NewMetricsCollector(appmetrics.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			Subsystem:            cfg.Metrics.Subsystem,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		collector = c
		metrics = appmetrics.NewAppMetrics(c)
	}

	// ── Storage and corpus ───────────────────────────────────────────────────
	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	corpus := analysis.NewCorpusProvider(store, cfg.Benchmark,
		analysis.WithCorpusLogger(logger),
		analysis.WithCorpusMetrics(metrics))
	if err := corpus.Load(ctx); err != nil {
		logger.Warn("reference corpus not loaded; benchmarks disabled until it is", logging.Err(err))
	}

	checkers := []handlers.HealthChecker{
		handlers.CheckFunc{Component: "storage", Fn: func(ctx context.Context) error {
			_, err := store.Exists(ctx, cfg.Benchmark.DatasetKey)
			return err
		}},
		handlers.CheckFunc{Component: "corpus", Fn: func(context.Context) error {
			if !corpus.Loaded() {
				return analysis.ErrCorpusNotLoaded
			}
			return nil
		}},
	}

	// ── Redis ────────────────────────────────────────────────────────────────
	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		checkers = append(checkers, handlers.CheckFunc{Component: "redis", Fn: rc.Ping})
	}

	// ── Kafka ────────────────────────────────────────────────────────────────
	svcOpts := []analysis.Option{
		analysis.WithCorpus(corpus),
		analysis.WithMetrics(common.NewPrometheusAnalysisMetrics(metrics)),
		analysis.WithLogger(logger),
		analysis.WithBatchConfig(cfg.Analysis),
	}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		publisher := kafka.NewPublisher(producer, "apiserver", logger)
		defer publisher.Close()
		svcOpts = append(svcOpts, analysis.WithPublisher(publisher))

		consumer, err := kafka.NewConsumer(cfg.Kafka, []string{kafka.TopicCorpusBuilt}, logger)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		consumer.Subscribe(kafka.TopicCorpusBuilt, corpus.HandleCorpusBuilt)
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		defer consumer.Close()
	}

	// ── Config hot reload ────────────────────────────────────────────────────
	if configPath != "" {
		watchConfig(configPath, logger)
	}

	// ── HTTP ─────────────────────────────────────────────────────────────────
	svc := analysis.NewService(svcOpts...)
	var limiter *middleware.ClientLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewClientLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, limiterIdle)
		defer limiter.Stop()
	}
	router := httpserver.NewRouter(httpserver.RouterConfig{
		ProtocolHandler:  handlers.NewProtocolHandler(svc, logger),
		BenchmarkHandler: handlers.NewBenchmarkHandler(svc, corpus, logger),
		HealthHandler:    handlers.NewHealthHandler(version, metrics, checkers...),
		CORS:             &cfg.CORS,
		RateLimiter:      limiter,
		Logging:          middleware.DefaultLoggingConfig(),
		MaxBodySize:      cfg.Server.MaxBodySize,
		Logger:           logger,
		Metrics:          metrics,
		MetricsCollector: collector,
		MetricsPath:      cfg.Metrics.Path,
	})

	srv := httpserver.NewServer(cfg.Server, router, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down api server")
	return srv.Stop(context.Background())
}

// watchConfig applies log level changes without a restart.
func watchConfig(path string, logger logging.Logger) {
	leveled, ok := logger.(interface{ SetLevel(string) })
	if !ok {
		return
	}
	err := config.Watch(path, func(c *config.Config) {
		leveled.SetLevel(c.Log.Level)
		logger.Info("configuration reloaded", logging.String("log_level", c.Log.Level))
	}, func(err error) {
		logger.Warn("configuration reload rejected", logging.Err(err))
	})
	if err != nil {
		logger.Warn("configuration watch disabled", logging.Err(err))
	}
}
