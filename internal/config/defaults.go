package config

import "time"

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "protointel"
	DefaultMetricsPath      = "/metrics"

	DefaultRegistryBaseURL = "https://clinicaltrials.gov/api/v2"
	DefaultRegistryRate    = 5.0
	DefaultRegistryBurst   = 5

	DefaultPageSize        = 100
	DefaultMaxProtocols    = 15000
	DefaultMaxEmptyPages   = 5
	DefaultConditionTarget = 5000
	DefaultPhaseTarget     = 8000
	DefaultStudyTypeTarget = 10000
	DefaultConcurrency     = 5
	DefaultPagesPerSlice   = 2
	DefaultPersistWorkers  = 4

	DefaultStorageBackend = "filesystem"
	DefaultStorageDir     = "./data/corpus"

	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker = "localhost:9092"

	DefaultDatasetKey     = "dataset.json"
	DefaultMinCohortSize  = 10
	DefaultUpperThreshold = 95.0
	DefaultLowerThreshold = 5.0

	DefaultBatchConcurrency = 4
	DefaultItemTimeout      = 10 * time.Second
	DefaultBatchTimeout     = 2 * time.Minute

	DefaultRebuildInterval = 24 * time.Hour
	DefaultHealthPort      = 8081
)

// DefaultConditions drives the condition sweep when none are configured.
var DefaultConditions = []string{
	"breast cancer", "lung cancer", "prostate cancer", "colorectal cancer", "lymphoma",
	"leukemia", "multiple myeloma", "melanoma", "pancreatic cancer", "ovarian cancer",
	"heart failure", "hypertension", "atrial fibrillation", "coronary artery disease", "stroke",
	"type 2 diabetes", "type 1 diabetes", "obesity", "alzheimer disease", "parkinson disease",
	"multiple sclerosis", "epilepsy", "migraine", "depression", "schizophrenia",
	"bipolar disorder", "anxiety", "asthma", "copd", "pneumonia",
	"hiv", "hepatitis c", "covid-19", "influenza", "rheumatoid arthritis",
	"psoriasis", "atopic dermatitis", "crohn disease", "ulcerative colitis", "chronic kidney disease",
	"macular degeneration", "glaucoma", "sickle cell disease", "hemophilia", "lupus",
}

// DefaultPhases drives the phase sweep.
var DefaultPhases = []string{"EARLY_PHASE1", "PHASE1", "PHASE2", "PHASE3", "PHASE4"}

// DefaultStudyTypes drives the study-type sweep.
var DefaultStudyTypes = []string{"INTERVENTIONAL", "OBSERVATIONAL", "EXPANDED_ACCESS"}

// NewDefaultConfig returns a Config populated entirely from defaults.  It is
// valid as returned.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-value field in cfg with its default.  Values
// already set are left unchanged so explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 4 << 20
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── CORS ──────────────────────────────────────────────────────────────────
	if len(cfg.CORS.AllowOrigins) == 0 {
		cfg.CORS.AllowOrigins = []string{"https://localhost:3000"}
	}
	if len(cfg.CORS.AllowMethods) == 0 {
		cfg.CORS.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.CORS.AllowHeaders) == 0 {
		cfg.CORS.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	}
	if cfg.CORS.MaxAge == 0 {
		cfg.CORS.MaxAge = 12 * time.Hour
	}

	// ── Registry ──────────────────────────────────────────────────────────────
	if cfg.Registry.BaseURL == "" {
		cfg.Registry.BaseURL = DefaultRegistryBaseURL
	}
	if cfg.Registry.Timeout == 0 {
		cfg.Registry.Timeout = 30 * time.Second
	}
	if cfg.Registry.RateLimit == 0 {
		cfg.Registry.RateLimit = DefaultRegistryRate
	}
	if cfg.Registry.RateBurst == 0 {
		cfg.Registry.RateBurst = DefaultRegistryBurst
	}
	if cfg.Registry.MaxRetries == 0 {
		cfg.Registry.MaxRetries = 3
	}
	if cfg.Registry.RetryBase == 0 {
		cfg.Registry.RetryBase = 500 * time.Millisecond
	}
	if cfg.Registry.UserAgent == "" {
		cfg.Registry.UserAgent = "protocol-intelligence/1.0"
	}

	// ── Collector ─────────────────────────────────────────────────────────────
	if cfg.Collector.PageSize == 0 {
		cfg.Collector.PageSize = DefaultPageSize
	}
	if cfg.Collector.MaxProtocols == 0 {
		cfg.Collector.MaxProtocols = DefaultMaxProtocols
	}
	if cfg.Collector.MaxEmptyPages == 0 {
		cfg.Collector.MaxEmptyPages = DefaultMaxEmptyPages
	}
	if cfg.Collector.ConditionTarget == 0 {
		cfg.Collector.ConditionTarget = DefaultConditionTarget
	}
	if cfg.Collector.PhaseTarget == 0 {
		cfg.Collector.PhaseTarget = DefaultPhaseTarget
	}
	if cfg.Collector.StudyTypeTarget == 0 {
		cfg.Collector.StudyTypeTarget = DefaultStudyTypeTarget
	}
	if cfg.Collector.Concurrency == 0 {
		cfg.Collector.Concurrency = DefaultConcurrency
	}
	if cfg.Collector.PagesPerSlice == 0 {
		cfg.Collector.PagesPerSlice = DefaultPagesPerSlice
	}
	if cfg.Collector.PersistWorkers == 0 {
		cfg.Collector.PersistWorkers = DefaultPersistWorkers
	}
	if len(cfg.Collector.Conditions) == 0 {
		cfg.Collector.Conditions = append([]string(nil), DefaultConditions...)
	}
	if len(cfg.Collector.Phases) == 0 {
		cfg.Collector.Phases = append([]string(nil), DefaultPhases...)
	}
	if len(cfg.Collector.StudyTypes) == 0 {
		cfg.Collector.StudyTypes = append([]string(nil), DefaultStudyTypes...)
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = DefaultStorageDir
	}
	if cfg.Storage.MinIO.Bucket == "" {
		cfg.Storage.MinIO.Bucket = "protocol-corpus"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "protointel:"
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "protocol-intelligence"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "protocol-intelligence-api"
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = 100
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = time.Second
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}

	// ── Benchmark ─────────────────────────────────────────────────────────────
	if cfg.Benchmark.DatasetKey == "" {
		cfg.Benchmark.DatasetKey = DefaultDatasetKey
	}
	if cfg.Benchmark.MinCohortSize == 0 {
		cfg.Benchmark.MinCohortSize = DefaultMinCohortSize
	}
	if cfg.Benchmark.UpperThreshold == 0 {
		cfg.Benchmark.UpperThreshold = DefaultUpperThreshold
	}
	if cfg.Benchmark.LowerThreshold == 0 {
		cfg.Benchmark.LowerThreshold = DefaultLowerThreshold
	}

	// ── Analysis ──────────────────────────────────────────────────────────────
	if cfg.Analysis.BatchConcurrency == 0 {
		cfg.Analysis.BatchConcurrency = DefaultBatchConcurrency
	}
	if cfg.Analysis.ItemTimeout == 0 {
		cfg.Analysis.ItemTimeout = DefaultItemTimeout
	}
	if cfg.Analysis.BatchTimeout == 0 {
		cfg.Analysis.BatchTimeout = DefaultBatchTimeout
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.RebuildInterval == 0 {
		cfg.Worker.RebuildInterval = DefaultRebuildInterval
	}
	if cfg.Worker.HealthPort == 0 {
		cfg.Worker.HealthPort = DefaultHealthPort
	}
}
