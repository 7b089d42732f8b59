package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for every setting.
const envPrefix = "PROTOINTEL"

// envKeys lists the keys bound explicitly so AutomaticEnv can populate them
// during Unmarshal even when no config file mentions the key.
var envKeys = []string{
	"server.host", "server.port", "server.mode", "server.rate_limit", "server.rate_burst",
	"log.level", "log.format",
	"metrics.enabled", "metrics.namespace",
	"registry.base_url", "registry.rate_limit", "registry.rate_burst", "registry.cache_ttl",
	"collector.page_size", "collector.max_protocols", "collector.concurrency",
	"collector.max_empty_pages", "collector.pages_per_slice", "collector.persist_workers",
	"collector.skip_protocol_files", "collector.require_protocol_doc",
	"storage.backend", "storage.dir",
	"storage.minio.endpoint", "storage.minio.access_key", "storage.minio.secret_key",
	"storage.minio.bucket", "storage.minio.use_ssl",
	"redis.enabled", "redis.addr", "redis.password", "redis.db",
	"kafka.enabled", "kafka.brokers", "kafka.group_id",
	"benchmark.dataset_key", "benchmark.min_cohort_size",
	"analysis.batch_concurrency", "analysis.item_timeout", "analysis.batch_timeout",
	"worker.rebuild_interval", "worker.health_port",
}

// newViper builds a Viper instance with YAML file type, the PROTOINTEL_ env
// prefix and a "." → "_" key replacer, so "registry.base_url" resolves to
// PROTOINTEL_REGISTRY_BASE_URL.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the YAML file at configPath, merges PROTOINTEL_* overrides,
// applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from PROTOINTEL_* environment variables alone.
//
//	PROTOINTEL_<SECTION>_<FIELD>   e.g.  PROTOINTEL_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadOrDefault loads configPath when it is non-empty and falls back to the
// environment otherwise.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the re-parsed Config
// whenever the file changes on disk.  Only hot-reloadable settings (log level,
// thresholds) should be applied by the callback.  A change that fails to
// parse or validate is reported to onError, when non-nil, and onChange is
// skipped.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on error.  Use it only in main().
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
