package cli

import (
	"context"
	"time"

	"github.com/turtacn/Protocol-Intelligence/internal/application/analysis"
	"github.com/turtacn/Protocol-Intelligence/internal/application/collection"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/registry/clinicaltrials"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/storage"
)

// collectLockTTL bounds how long a crashed run can block the next one.
const collectLockTTL = 6 * time.Hour

// runtimeDeps holds the optional infrastructure a command opened.  Close
// releases all of it.
type runtimeDeps struct {
	store     storage.ArtifactStore
	redis     *redis.Client
	publisher *kafka.Publisher
	logger    logging.Logger
}

func openDeps(cliCtx *CLIContext, withKafka bool) (*runtimeDeps, error) {
	cfg := cliCtx.Config
	d := &runtimeDeps{logger: cliCtx.Logger}

	store, err := storage.Open(cfg.Storage, cliCtx.Logger)
	if err != nil {
		return nil, err
	}
	d.store = store

	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis, cliCtx.Logger)
		if err != nil {
			return nil, err
		}
		d.redis = rc
	}

	if withKafka && cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, cliCtx.Logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.publisher = kafka.NewPublisher(producer, "protointel-cli", cliCtx.Logger)
	}
	return d, nil
}

func (d *runtimeDeps) Close() {
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			d.logger.Warn("kafka producer close failed", logging.Err(err))
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.logger.Warn("redis close failed", logging.Err(err))
		}
	}
}

// corpus loads the reference dataset.  A missing dataset is not an error:
// the provider stays unloaded and benchmarks report CORPUS_001.
func (d *runtimeDeps) corpus(ctx context.Context, cliCtx *CLIContext) *analysis.CorpusProvider {
	p := analysis.NewCorpusProvider(d.store, cliCtx.Config.Benchmark, analysis.WithCorpusLogger(cliCtx.Logger))
	if err := p.Load(ctx); err != nil {
		cliCtx.Logger.Warn("reference corpus unavailable", logging.Err(err))
	}
	return p
}

// collector wires the registry client and collector, adding the redis page
// cache and run lock when redis is enabled.
func (d *runtimeDeps) collector(cliCtx *CLIContext) *collection.Collector {
	cfg := cliCtx.Config
	clientOpts := []clinicaltrials.Option{clinicaltrials.WithLogger(cliCtx.Logger)}
	opts := []collection.Option{
		collection.WithLogger(cliCtx.Logger),
		collection.WithDatasetKey(cfg.Benchmark.DatasetKey),
		collection.WithMinCohortSize(cfg.Benchmark.MinCohortSize),
	}
	if d.redis != nil {
		if cfg.Registry.CacheTTL > 0 {
			cache := redis.NewRedisCache(d.redis, cliCtx.Logger, redis.WithPrefix(cfg.Redis.KeyPrefix))
			clientOpts = append(clientOpts, clinicaltrials.WithPageCache(cache, cfg.Registry.CacheTTL))
		}
		opts = append(opts, collection.WithLocker(redis.NewMutex(d.redis, "collector", collectLockTTL, cliCtx.Logger)))
	}
	if d.publisher != nil {
		opts = append(opts, collection.WithPublisher(d.publisher))
	}
	client := clinicaltrials.NewClient(cfg.Registry, clientOpts...)
	return collection.NewCollector(client, d.store, cfg.Collector, opts...)
}
