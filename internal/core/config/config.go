package config

import (
	"time"

	"github.com/streamforge/resolver/internal/cache"
	"github.com/streamforge/resolver/internal/core/domain"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Logging  LoggingConfig         `yaml:"logging"`
	Cache    CacheConfig           `yaml:"cache"`
	Racer    RacerConfig           `yaml:"racer"`
	Resolver ResolverConfig        `yaml:"resolver"`
	Sources  []domain.SourceConfig `yaml:"sources"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// CacheConfig holds settings for the cache tiers, fastest first.
type CacheConfig struct {
	Memory cache.MemoryConfig `yaml:"memory"`
	Disk   cache.DiskConfig   `yaml:"disk"`
	Redis  cache.RedisConfig  `yaml:"redis"`
}

// RacerConfig controls the extraction race.
type RacerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	MaxChainLength  int           `yaml:"max_chain_length"`
	Headroom        float64       `yaml:"headroom"` // bandwidth profile buffer multiplier
	EndpointTimeout time.Duration `yaml:"endpoint_timeout"`
}

// ResolverConfig controls the facade.
type ResolverConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}
