package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Cache.Memory.MaxTTL == 0 {
		cfg.Cache.Memory.MaxTTL = 30 * time.Minute
	}
	if cfg.Cache.Memory.MaxItems == 0 {
		cfg.Cache.Memory.MaxItems = 500
	}
	if cfg.Cache.Memory.SweepFraction == 0 {
		cfg.Cache.Memory.SweepFraction = 0.8
	}
	if cfg.Cache.Memory.SweepInterval == 0 {
		cfg.Cache.Memory.SweepInterval = 1 * time.Minute
	}
	if cfg.Cache.Disk.MaxTTL == 0 {
		cfg.Cache.Disk.MaxTTL = 2 * time.Hour
	}
	if cfg.Cache.Redis.MaxTTL == 0 {
		cfg.Cache.Redis.MaxTTL = 6 * time.Hour
	}
	if cfg.Cache.Redis.OpTimeout == 0 {
		cfg.Cache.Redis.OpTimeout = 2 * time.Second
	}

	if cfg.Racer.Concurrency == 0 {
		cfg.Racer.Concurrency = 4
	}
	if cfg.Racer.MaxChainLength == 0 {
		cfg.Racer.MaxChainLength = 15
	}
	if cfg.Racer.Headroom == 0 {
		cfg.Racer.Headroom = 1.25
	}
	if cfg.Racer.EndpointTimeout == 0 {
		cfg.Racer.EndpointTimeout = 8 * time.Second
	}

	if cfg.Resolver.Timeout == 0 {
		cfg.Resolver.Timeout = 30 * time.Second
	}
	if cfg.Resolver.MaxRetries == 0 {
		cfg.Resolver.MaxRetries = 2
	}
	if cfg.Resolver.RetryBackoff == 0 {
		cfg.Resolver.RetryBackoff = 500 * time.Millisecond
	}

	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.CooldownDuration == 0 {
			src.CooldownDuration = 5 * time.Minute
		}
		if src.FailureThreshold == 0 {
			src.FailureThreshold = 3
		}
		if src.SuccessWeight == 0 {
			src.SuccessWeight = 1.0
		}
		for j := range src.Endpoints {
			if src.Endpoints[j].Timeout == 0 {
				src.Endpoints[j].Timeout = cfg.Racer.EndpointTimeout
			}
			if src.Endpoints[j].BandwidthProfile == 0 {
				src.Endpoints[j].BandwidthProfile = 3
			}
		}
	}
}

func validate(cfg *AppConfig) error {
	seen := make(map[string]bool, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if src.ID == "" {
			return fmt.Errorf("source with empty id")
		}
		if seen[src.ID] {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
		if len(src.Endpoints) == 0 {
			return fmt.Errorf("source %q has no endpoints", src.ID)
		}
	}
	if cfg.Cache.Redis.Enabled && cfg.Cache.Redis.URL == "" {
		return fmt.Errorf("redis tier enabled without url")
	}
	if cfg.Cache.Disk.Enabled && cfg.Cache.Disk.Path == "" {
		return fmt.Errorf("disk tier enabled without path")
	}
	return nil
}
