// Package cache implements the tiered cache hierarchy: an in-memory tier,
// an optional embedded disk tier and an optional remote Redis tier, probed
// fastest-first with promotion on hit and coalesced fetches on miss.
package cache

import (
	"context"
	"time"

	"github.com/streamforge/resolver/internal/core/domain"
)

// Tier is one layer of the hierarchy. Implementations must be safe for
// concurrent use. A Get that fails returns (nil, false, err); the hierarchy
// treats that as a miss for this tier only.
type Tier interface {
	// Name identifies the tier in stats and log output.
	Name() string

	// Remote reports whether the tier crosses the network; remote tiers
	// are skipped on metered connections.
	Remote() bool

	// MaxTTL is the tier's TTL ceiling. Entries older than this are
	// expired here regardless of their own TTL.
	MaxTTL() time.Duration

	// Get returns (entry, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) (*domain.CacheEntry, bool, error)

	// Set stores an entry under key.
	Set(ctx context.Context, key string, entry *domain.CacheEntry) error

	// Delete removes a key (best-effort).
	Delete(ctx context.Context, key string) error

	// Clear removes every entry owned by this tier.
	Clear(ctx context.Context) error
}

// MemoryConfig configures the fastest tier.
type MemoryConfig struct {
	MaxTTL        time.Duration `yaml:"max_ttl"`
	MaxItems      int           `yaml:"max_items"`
	SweepFraction float64       `yaml:"sweep_fraction"` // evict down to this share of max_items
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DiskConfig configures the embedded on-disk tier.
type DiskConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	MaxTTL  time.Duration `yaml:"max_ttl"`
}

// RedisConfig configures the remote tier.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	URL       string        `yaml:"url"`
	Password  string        `yaml:"password"`
	MaxTTL    time.Duration `yaml:"max_ttl"`
	OpTimeout time.Duration `yaml:"op_timeout"`
}

// usable reports whether the entry is live from this tier's point of view:
// well-formed, within its own TTL and within the tier's ceiling.
func usable(t Tier, e *domain.CacheEntry, now time.Time) bool {
	return e.Valid(now) && e.Age(now) < t.MaxTTL()
}
