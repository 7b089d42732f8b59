// Command worker rebuilds the reference corpus from ClinicalTrials.gov on a
// schedule.  Replicas coordinate through a redis lock so only one harvests
// at a time.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Protocol-Intelligence/internal/application/collection"
	"github.com/turtacn/Protocol-Intelligence/internal/config"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	appmetrics "github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/registry/clinicaltrials"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/storage"
	httpserver "github.com/turtacn/Protocol-Intelligence/internal/interfaces/http"
	"github.com/turtacn/Protocol-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Protocol-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// Build-time variable injected via ldflags.
var version = "dev"

// lockTTL must outlast the longest expected harvest.
const lockTTL = 6 * time.Hour

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	once := flag.Bool("once", false, "run a single collection and exit")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	if err := run(cfg, *once, logger); err != nil {
		logger.Error("worker exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, once bool, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	gin.SetMode(cfg.Server.Mode)

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

	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	checkers := []handlers.HealthChecker{
		handlers.CheckFunc{Component: "storage", Fn: func(ctx context.Context) error {
			_, err := store.Exists(ctx, cfg.Benchmark.DatasetKey)
			return err
		}},
	}

	clientOpts := []clinicaltrials.Option{
		clinicaltrials.WithLogger(logger),
		clinicaltrials.WithMetrics(metrics),
	}
	collOpts := []collection.Option{
		collection.WithLogger(logger),
		collection.WithMetrics(metrics),
		collection.WithDatasetKey(cfg.Benchmark.DatasetKey),
		collection.WithMinCohortSize(cfg.Benchmark.MinCohortSize),
	}

	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		checkers = append(checkers, handlers.CheckFunc{Component: "redis", Fn: rc.Ping})
		collOpts = append(collOpts, collection.WithLocker(redis.NewMutex(rc, "collector", lockTTL, logger)))
		if cfg.Registry.CacheTTL > 0 {
			cache := redis.NewRedisCache(rc, logger, redis.WithPrefix(cfg.Redis.KeyPrefix))
			clientOpts = append(clientOpts, clinicaltrials.WithPageCache(cache, cfg.Registry.CacheTTL))
		}
	}

	if cfg.Kafka.Enabled {
		ensureTopics(ctx, cfg.Kafka, logger)
		producer, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		publisher := kafka.NewPublisher(producer, "worker", logger)
		defer publisher.Close()
		collOpts = append(collOpts, collection.WithPublisher(publisher))
	}

	coll := collection.NewCollector(clinicaltrials.NewClient(cfg.Registry, clientOpts...), store, cfg.Collector, collOpts...)

	if once {
		_, err := coll.Run(ctx)
		return err
	}

	var lastFailed atomic.Bool
	checkers = append(checkers, handlers.CheckFunc{Component: "last_run", Fn: func(context.Context) error {
		if lastFailed.Load() {
			return errors.New(errors.ErrCodeCorpusEmpty, "last collection run failed")
		}
		return nil
	}})

	healthCfg := cfg.Server
	healthCfg.Port = cfg.Worker.HealthPort
	health := httpserver.NewServer(healthCfg, httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler:    handlers.NewHealthHandler(version, metrics, checkers...).ForService("worker"),
		Logging:          middleware.LoggingConfig{SkipPaths: []string{"/healthz", "/readyz"}},
		Logger:           logger,
		Metrics:          metrics,
		MetricsCollector: collector,
		MetricsPath:      cfg.Metrics.Path,
	}), logger)
	go func() {
		if err := health.Start(); err != nil {
			logger.Error("health server failed", logging.Err(err))
		}
	}()
	defer func() {
		if err := health.Stop(context.Background()); err != nil {
			logger.Warn("health server shutdown failed", logging.Err(err))
		}
	}()

	logger.Info("worker started",
		logging.String("version", version),
		logging.Duration("interval", cfg.Worker.RebuildInterval),
		logging.Bool("run_on_start", cfg.Worker.RunOnStart))

	runOnce := func() {
		_, err := coll.Run(ctx)
		switch {
		case err == nil:
			lastFailed.Store(false)
		case errors.IsCode(err, errors.ErrCodeCollectionRunning):
			logger.Info("collection skipped; another replica holds the lock")
		case ctx.Err() != nil:
		default:
			lastFailed.Store(true)
		}
	}
	if cfg.Worker.RunOnStart {
		runOnce()
	}

	ticker := time.NewTicker(cfg.Worker.RebuildInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopping")
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}

// ensureTopics creates the event topics.  Failure is logged; brokers with
// auto-creation still work.
func ensureTopics(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) {
	tm, err := kafka.NewTopicManager(cfg.Brokers, logger)
	if err != nil {
		logger.Warn("kafka topic manager unavailable", logging.Err(err))
		return
	}
	defer tm.Close()
	if err := tm.EnsureDefaultTopics(ctx); err != nil {
		logger.Warn("kafka topics not ensured", logging.Err(err))
	}
}
