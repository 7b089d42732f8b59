// Package config defines the configuration structures for Protocol-Intelligence.
// No I/O lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimit is the sustained per-client request rate; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
	Path      string `mapstructure:"path"`
}

// CORSConfig lists the browser origins allowed to call the HTTP API.
type CORSConfig struct {
	AllowOrigins []string      `mapstructure:"allow_origins"`
	AllowMethods []string      `mapstructure:"allow_methods"`
	AllowHeaders []string      `mapstructure:"allow_headers"`
	MaxAge       time.Duration `mapstructure:"max_age"`
}

// RegistryConfig configures the ClinicalTrials.gov client.
type RegistryConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	RateBurst  int           `mapstructure:"rate_burst"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryBase  time.Duration `mapstructure:"retry_base"`
	UserAgent  string        `mapstructure:"user_agent"`
	// CacheTTL > 0 enables the redis page cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// CollectorConfig tunes a corpus harvesting run.
type CollectorConfig struct {
	PageSize           int      `mapstructure:"page_size"`
	MaxProtocols       int      `mapstructure:"max_protocols"`
	MaxEmptyPages      int      `mapstructure:"max_empty_pages"`
	ConditionTarget    int      `mapstructure:"condition_target"`
	PhaseTarget        int      `mapstructure:"phase_target"`
	StudyTypeTarget    int      `mapstructure:"study_type_target"`
	Concurrency        int      `mapstructure:"concurrency"`
	PagesPerSlice      int      `mapstructure:"pages_per_slice"`
	PersistWorkers     int      `mapstructure:"persist_workers"`
	Conditions         []string `mapstructure:"conditions"`
	Phases             []string `mapstructure:"phases"`
	StudyTypes         []string `mapstructure:"study_types"`
	SkipProtocolFiles  bool     `mapstructure:"skip_protocol_files"`
	RequireProtocolDoc bool     `mapstructure:"require_protocol_doc"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// StorageConfig selects where collector artifacts and the dataset live.
type StorageConfig struct {
	Backend string      `mapstructure:"backend"` // "filesystem" | "minio"
	Dir     string      `mapstructure:"dir"`
	MinIO   MinIOConfig `mapstructure:"minio"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Apache Kafka producer parameters.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	ClientID     string        `mapstructure:"client_id"`
	GroupID      string        `mapstructure:"group_id"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RequiredAcks int           `mapstructure:"required_acks"`
}

// BenchmarkConfig holds benchmark cohort and outlier thresholds.
type BenchmarkConfig struct {
	DatasetKey     string  `mapstructure:"dataset_key"`
	MinCohortSize  int     `mapstructure:"min_cohort_size"`
	UpperThreshold float64 `mapstructure:"upper_threshold"`
	LowerThreshold float64 `mapstructure:"lower_threshold"`
}

// AnalysisConfig bounds batch analysis requests.
type AnalysisConfig struct {
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	ItemTimeout      time.Duration `mapstructure:"item_timeout"`
	BatchTimeout     time.Duration `mapstructure:"batch_timeout"`
}

// WorkerConfig holds the background corpus-rebuild parameters.
type WorkerConfig struct {
	RebuildInterval time.Duration `mapstructure:"rebuild_interval"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
	HealthPort      int           `mapstructure:"health_port"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Log       logging.LogConfig `mapstructure:"log"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	CORS      CORSConfig        `mapstructure:"cors"`
	Registry  RegistryConfig    `mapstructure:"registry"`
	Collector CollectorConfig   `mapstructure:"collector"`
	Storage   StorageConfig     `mapstructure:"storage"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Kafka     KafkaConfig       `mapstructure:"kafka"`
	Benchmark BenchmarkConfig   `mapstructure:"benchmark"`
	Analysis  AnalysisConfig    `mapstructure:"analysis"`
	Worker    WorkerConfig      `mapstructure:"worker"`
}

// Validate performs semantic validation of a fully populated Config and
// returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Registry.BaseURL == "" {
		return fmt.Errorf("config: registry.base_url is required")
	}
	if c.Registry.RateLimit <= 0 {
		return fmt.Errorf("config: registry.rate_limit must be > 0, got %v", c.Registry.RateLimit)
	}

	if c.Collector.PageSize < 1 || c.Collector.PageSize > 1000 {
		return fmt.Errorf("config: collector.page_size %d is out of range [1, 1000]", c.Collector.PageSize)
	}
	if c.Collector.Concurrency < 1 {
		return fmt.Errorf("config: collector.concurrency must be ≥ 1, got %d", c.Collector.Concurrency)
	}
	if c.Collector.MaxProtocols < 1 {
		return fmt.Errorf("config: collector.max_protocols must be ≥ 1, got %d", c.Collector.MaxProtocols)
	}
	if c.Collector.MaxEmptyPages < 1 {
		return fmt.Errorf("config: collector.max_empty_pages must be ≥ 1, got %d", c.Collector.MaxEmptyPages)
	}
	if c.Collector.PagesPerSlice < 1 {
		return fmt.Errorf("config: collector.pages_per_slice must be ≥ 1, got %d", c.Collector.PagesPerSlice)
	}
	if c.Collector.PersistWorkers < 1 {
		return fmt.Errorf("config: collector.persist_workers must be ≥ 1, got %d", c.Collector.PersistWorkers)
	}
	if c.Collector.ConditionTarget > c.Collector.PhaseTarget || c.Collector.PhaseTarget > c.Collector.StudyTypeTarget {
		return fmt.Errorf("config: collector sweep targets must be non-decreasing (condition %d, phase %d, study_type %d)",
			c.Collector.ConditionTarget, c.Collector.PhaseTarget, c.Collector.StudyTypeTarget)
	}

	switch c.Storage.Backend {
	case "filesystem":
		if c.Storage.Dir == "" {
			return fmt.Errorf("config: storage.dir is required for the filesystem backend")
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			return fmt.Errorf("config: storage.minio.endpoint and storage.minio.bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("config: storage.backend %q is invalid; expected filesystem|minio", c.Storage.Backend)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address when kafka is enabled")
	}

	if c.Benchmark.MinCohortSize < 1 {
		return fmt.Errorf("config: benchmark.min_cohort_size must be ≥ 1, got %d", c.Benchmark.MinCohortSize)
	}
	if c.Benchmark.LowerThreshold < 0 || c.Benchmark.UpperThreshold > 100 || c.Benchmark.LowerThreshold >= c.Benchmark.UpperThreshold {
		return fmt.Errorf("config: benchmark thresholds must satisfy 0 ≤ lower < upper ≤ 100 (lower %v, upper %v)",
			c.Benchmark.LowerThreshold, c.Benchmark.UpperThreshold)
	}

	if c.Analysis.BatchConcurrency < 1 {
		return fmt.Errorf("config: analysis.batch_concurrency must be ≥ 1, got %d", c.Analysis.BatchConcurrency)
	}
	if c.Analysis.ItemTimeout <= 0 || c.Analysis.BatchTimeout <= 0 {
		return fmt.Errorf("config: analysis.item_timeout and analysis.batch_timeout must be > 0 (item %v, batch %v)",
			c.Analysis.ItemTimeout, c.Analysis.BatchTimeout)
	}

	if c.Worker.RebuildInterval <= 0 {
		return fmt.Errorf("config: worker.rebuild_interval must be > 0, got %v", c.Worker.RebuildInterval)
	}
	if c.Worker.HealthPort < 0 || c.Worker.HealthPort > 65535 {
		return fmt.Errorf("config: worker.health_port %d is out of range [0, 65535]", c.Worker.HealthPort)
	}

	return nil
}
