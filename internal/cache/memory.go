package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamforge/resolver/internal/core/domain"
	"github.com/streamforge/resolver/internal/metrics"
)

// MemoryTier is the fastest tier: a plain map with a watermark sweep.
// Exceeding MaxItems triggers an asynchronous eviction of the oldest
// entries down to SweepFraction of the limit; a periodic janitor drops
// expired entries so idle caches do not pin memory.
type MemoryTier struct {
	cfg MemoryConfig

	mu    sync.RWMutex
	items map[string]*domain.CacheEntry

	sweeping  atomic.Bool
	evictions atomic.Uint64

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryTier creates the tier and starts its janitor.
func NewMemoryTier(cfg MemoryConfig) *MemoryTier {
	m := &MemoryTier{
		cfg:   cfg,
		items: make(map[string]*domain.CacheEntry),
		stop:  make(chan struct{}),
	}
	if cfg.SweepInterval > 0 {
		go m.janitor()
	}
	return m
}

func (m *MemoryTier) Name() string          { return "memory" }
func (m *MemoryTier) Remote() bool          { return false }
func (m *MemoryTier) MaxTTL() time.Duration { return m.cfg.MaxTTL }

func (m *MemoryTier) Get(ctx context.Context, key string) (*domain.CacheEntry, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return e, true, nil
}

func (m *MemoryTier) Set(ctx context.Context, key string, entry *domain.CacheEntry) error {
	m.mu.Lock()
	m.items[key] = entry
	over := m.cfg.MaxItems > 0 && len(m.items) > m.cfg.MaxItems
	m.mu.Unlock()

	if over && m.sweeping.CompareAndSwap(false, true) {
		go m.sweep()
	}
	return nil
}

func (m *MemoryTier) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryTier) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.items = make(map[string]*domain.CacheEntry)
	m.mu.Unlock()
	return nil
}

// Len returns the current item count.
func (m *MemoryTier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Evictions returns the total number of swept entries.
func (m *MemoryTier) Evictions() uint64 {
	return m.evictions.Load()
}

// Stop terminates the janitor goroutine.
func (m *MemoryTier) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// sweep evicts oldest-by-age entries down to the configured watermark.
// Not a strict LRU: age is storage age, not access recency.
func (m *MemoryTier) sweep() {
	defer m.sweeping.Store(false)

	target := int(float64(m.cfg.MaxItems) * m.cfg.SweepFraction)
	if target < 1 {
		target = 1
	}

	type aged struct {
		key      string
		storedAt time.Time
	}

	m.mu.RLock()
	all := make([]aged, 0, len(m.items))
	for k, e := range m.items {
		all = append(all, aged{key: k, storedAt: e.StoredAt})
	}
	m.mu.RUnlock()

	if len(all) <= target {
		return
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].storedAt.Before(all[j].storedAt)
	})

	evict := all[:len(all)-target]
	m.mu.Lock()
	for _, a := range evict {
		// Entries stored after the snapshot keep their newer value.
		if e, ok := m.items[a.key]; ok && e.StoredAt.Equal(a.storedAt) {
			delete(m.items, a.key)
			m.evictions.Add(1)
			metrics.CacheEvictionsTotal.Inc()
		}
	}
	m.mu.Unlock()

	slog.Debug("Memory tier sweep finished", "evicted", len(evict), "target", target)
}

// janitor periodically drops expired entries.
func (m *MemoryTier) janitor() {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, e := range m.items {
				if !usable(m, e, now) {
					delete(m.items, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
