package bandwidth

import (
	"log/slog"
	"sync"

	"github.com/streamforge/resolver/internal/core/domain"
)

// Watcher receives pushed network observations and exposes the current
// tier to the rest of the engine. Safe for concurrent use.
type Watcher struct {
	mu      sync.RWMutex
	current Observation
	tier    domain.BandwidthTier
}

// NewWatcher starts with an unknown network.
func NewWatcher() *Watcher {
	return &Watcher{
		current: Observation{Connection: ConnectionUnknown},
		tier:    domain.TierUnknown,
	}
}

// Observe records a new observation and recomputes the tier.
func (w *Watcher) Observe(obs Observation) {
	tier := Classify(obs)

	w.mu.Lock()
	changed := tier != w.tier
	w.current = obs
	w.tier = tier
	w.mu.Unlock()

	if changed {
		slog.Debug("Bandwidth tier changed", "tier", tier, "connection", obs.Connection)
	}
}

// Current returns the tier derived from the latest observation.
func (w *Watcher) Current() domain.BandwidthTier {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tier
}

// Metered reports whether the latest observation was a metered connection.
// The cache hierarchy uses this to skip remote tiers.
func (w *Watcher) Metered() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current.Metered
}
