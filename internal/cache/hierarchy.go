package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamforge/resolver/internal/core/domain"
	"github.com/streamforge/resolver/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// backgroundOpTimeout bounds promotions and slow-tier write-throughs that
// run after the caller has already been answered.
const backgroundOpTimeout = 5 * time.Second

// FetchFunc produces a descriptor when every tier misses.
type FetchFunc func(ctx context.Context) (*domain.StreamDescriptor, error)

// GetOptions tunes a single hierarchy lookup.
type GetOptions struct {
	// SkipRemote skips tiers that cross the network (metered connections).
	SkipRemote bool
	// Refresh skips every tier and forces a fetch. The result is still
	// written through.
	Refresh bool
}

// TierStats is the per-tier slice of Stats.
type TierStats struct {
	Name   string `json:"name"`
	Hits   uint64 `json:"hits"`
	Errors uint64 `json:"errors"`
	Items  int    `json:"items"` // -1 when the tier cannot count cheaply
}

// Stats is a read-only snapshot of hierarchy activity.
type Stats struct {
	Tiers     []TierStats `json:"tiers"`
	Misses    uint64      `json:"misses"`
	Fetches   uint64      `json:"fetches"`
	Coalesced uint64      `json:"coalesced"`
}

// pending is the in-flight deduplication token for one cache key. The
// fetch is cancelled when the last waiter gives up or the key is
// invalidated; otherwise every waiter observes the identical result.
type pending struct {
	done    chan struct{}
	desc    *domain.StreamDescriptor
	err     error
	waiters int // guarded by Hierarchy.pmu
	cancel  context.CancelFunc
}

// tierCounter is implemented by tiers that can report their item count.
type tierCounter interface {
	Len() int
}

// Hierarchy probes tiers fastest-first, promotes hits, coalesces
// concurrent fetches per key and writes results through in the background.
type Hierarchy struct {
	tiers []Tier

	pmu       sync.Mutex
	pending   map[string]*pending
	hits      []atomic.Uint64
	tierErrs  []atomic.Uint64
	misses    atomic.Uint64
	fetches   atomic.Uint64
	coalesced atomic.Uint64
}

// NewHierarchy builds a hierarchy over the given tiers, fastest first.
// At least one tier is required; the first is the synchronous-write tier.
func NewHierarchy(tiers ...Tier) *Hierarchy {
	return &Hierarchy{
		tiers:    tiers,
		pending:  make(map[string]*pending),
		hits:     make([]atomic.Uint64, len(tiers)),
		tierErrs: make([]atomic.Uint64, len(tiers)),
	}
}

// Get resolves key through the tiers, falling back to fetch on a full
// miss. Concurrent calls for the same key are coalesced onto one physical
// lookup; all of them observe the same settled result. A caller whose ctx
// expires detaches immediately; the shared fetch is only cancelled when no
// waiter remains.
func (h *Hierarchy) Get(ctx context.Context, key string, opts GetOptions, fetch FetchFunc) (*domain.StreamDescriptor, error) {
	h.pmu.Lock()
	if p, ok := h.pending[key]; ok {
		p.waiters++
		h.pmu.Unlock()
		h.coalesced.Add(1)
		return h.wait(ctx, key, p)
	}

	// Detach the shared fetch from the first caller's cancellation but
	// keep its deadline: the global resolution timeout still applies.
	base := context.WithoutCancel(ctx)
	var fctx context.Context
	var cancel context.CancelFunc
	if dl, ok := ctx.Deadline(); ok {
		fctx, cancel = context.WithDeadline(base, dl)
	} else {
		fctx, cancel = context.WithCancel(base)
	}

	p := &pending{done: make(chan struct{}), cancel: cancel, waiters: 1}
	h.pending[key] = p
	h.pmu.Unlock()

	go h.settle(fctx, key, opts, fetch, p)
	return h.wait(ctx, key, p)
}

func (h *Hierarchy) wait(ctx context.Context, key string, p *pending) (*domain.StreamDescriptor, error) {
	select {
	case <-p.done:
		return p.desc, p.err
	case <-ctx.Done():
		h.pmu.Lock()
		p.waiters--
		last := p.waiters == 0 && h.pending[key] == p
		h.pmu.Unlock()
		if last {
			p.cancel()
		}
		return nil, ctx.Err()
	}
}

func (h *Hierarchy) settle(fctx context.Context, key string, opts GetOptions, fetch FetchFunc, p *pending) {
	desc, err := h.lookup(fctx, key, opts, fetch)

	h.pmu.Lock()
	if h.pending[key] == p {
		delete(h.pending, key)
	}
	h.pmu.Unlock()

	p.desc, p.err = desc, err
	close(p.done)
	p.cancel()
}

func (h *Hierarchy) lookup(ctx context.Context, key string, opts GetOptions, fetch FetchFunc) (*domain.StreamDescriptor, error) {
	now := time.Now()

	if !opts.Refresh {
		for i, t := range h.tiers {
			if opts.SkipRemote && t.Remote() {
				continue
			}
			entry, ok, err := t.Get(ctx, key)
			if err != nil {
				// A failing tier is a miss for that tier only.
				h.tierErrs[i].Add(1)
				metrics.CacheTierErrorsTotal.WithLabelValues(t.Name(), "get").Inc()
				slog.Debug("Cache tier get failed", "tier", t.Name(), "key", key, "error", err)
				continue
			}
			if !ok || !usable(t, entry, now) {
				continue
			}

			h.hits[i].Add(1)
			metrics.CacheHitsTotal.WithLabelValues(t.Name()).Inc()
			if i > 0 {
				go h.promote(key, entry, i)
			}
			return entry.Payload, nil
		}
	}

	h.misses.Add(1)
	metrics.CacheMissesTotal.Inc()

	h.fetches.Add(1)
	desc, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		// Invalidated or cancelled mid-fetch: the late result must not
		// repopulate the cache.
		return nil, ctx.Err()
	}

	entry := domain.NewCacheEntry(desc, desc.ClampTTL(), h.tiers[0].Name())
	if err := h.tiers[0].Set(ctx, key, entry); err != nil {
		h.tierErrs[0].Add(1)
		metrics.CacheTierErrorsTotal.WithLabelValues(h.tiers[0].Name(), "set").Inc()
		slog.Debug("Cache fastest-tier set failed", "key", key, "error", err)
	}
	if len(h.tiers) > 1 {
		go h.writeBack(key, entry, opts)
	}
	return desc, nil
}

// promote backfills every tier faster than fromIdx so the next lookup hits
// earlier. StoredAt is preserved: promotion must not extend an entry's life.
func (h *Hierarchy) promote(key string, entry *domain.CacheEntry, fromIdx int) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < fromIdx; i++ {
		i := i
		g.Go(func() error {
			if err := h.tiers[i].Set(ctx, key, entry); err != nil {
				h.tierErrs[i].Add(1)
				metrics.CacheTierErrorsTotal.WithLabelValues(h.tiers[i].Name(), "set").Inc()
				slog.Debug("Cache promotion failed", "tier", h.tiers[i].Name(), "key", key, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// writeBack populates the slower tiers after the caller has its result.
func (h *Hierarchy) writeBack(key string, entry *domain.CacheEntry, opts GetOptions) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for i := 1; i < len(h.tiers); i++ {
		if opts.SkipRemote && h.tiers[i].Remote() {
			continue
		}
		i := i
		g.Go(func() error {
			if err := h.tiers[i].Set(ctx, key, entry); err != nil {
				h.tierErrs[i].Add(1)
				metrics.CacheTierErrorsTotal.WithLabelValues(h.tiers[i].Name(), "set").Inc()
				slog.Debug("Cache write-back failed", "tier", h.tiers[i].Name(), "key", key, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Delete removes key from every tier and cancels any coalesced in-flight
// fetch for it. Calling it again is a no-op.
func (h *Hierarchy) Delete(ctx context.Context, key string) {
	h.pmu.Lock()
	if p, ok := h.pending[key]; ok {
		delete(h.pending, key)
		p.cancel()
	}
	h.pmu.Unlock()

	for i, t := range h.tiers {
		if err := t.Delete(ctx, key); err != nil {
			h.tierErrs[i].Add(1)
			metrics.CacheTierErrorsTotal.WithLabelValues(t.Name(), "delete").Inc()
			slog.Debug("Cache tier delete failed", "tier", t.Name(), "key", key, "error", err)
		}
	}
}

// Clear empties every tier and cancels all in-flight fetches.
func (h *Hierarchy) Clear(ctx context.Context) {
	h.pmu.Lock()
	for key, p := range h.pending {
		delete(h.pending, key)
		p.cancel()
	}
	h.pmu.Unlock()

	for i, t := range h.tiers {
		if err := t.Clear(ctx); err != nil {
			h.tierErrs[i].Add(1)
			metrics.CacheTierErrorsTotal.WithLabelValues(t.Name(), "clear").Inc()
			slog.Debug("Cache tier clear failed", "tier", t.Name(), "error", err)
		}
	}
}

// Stats returns a read-only snapshot; never used for control flow.
func (h *Hierarchy) Stats() Stats {
	s := Stats{
		Misses:    h.misses.Load(),
		Fetches:   h.fetches.Load(),
		Coalesced: h.coalesced.Load(),
		Tiers:     make([]TierStats, len(h.tiers)),
	}
	for i, t := range h.tiers {
		items := -1
		if c, ok := t.(tierCounter); ok {
			items = c.Len()
		}
		s.Tiers[i] = TierStats{
			Name:   t.Name(),
			Hits:   h.hits[i].Load(),
			Errors: h.tierErrs[i].Load(),
			Items:  items,
		}
	}
	return s
}
