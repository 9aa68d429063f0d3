// Package resolver is the facade over the engine: cache probe, extraction
// race, cache population and error translation behind one entry point.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/streamforge/resolver/internal/bandwidth"
	"github.com/streamforge/resolver/internal/cache"
	"github.com/streamforge/resolver/internal/core/config"
	"github.com/streamforge/resolver/internal/core/domain"
	"github.com/streamforge/resolver/internal/health"
	"github.com/streamforge/resolver/internal/metrics"
	"github.com/streamforge/resolver/internal/racer"
	"github.com/streamforge/resolver/internal/registry"
)

// Options tunes a single resolution.
type Options struct {
	// ForcedSource bypasses selection and races only this source.
	ForcedSource string
	// Genre biases source ordering.
	Genre string
	// DataSaver prefers bandwidth-optimized sources and skips remote tiers.
	DataSaver bool
	// Refresh skips every cache tier and forces a fresh extraction.
	Refresh bool
	// Timeout overrides the configured global resolution timeout.
	Timeout time.Duration
}

// Engine orchestrates one resolution per call: probe the cache hierarchy,
// race the candidate chain on a miss, populate the cache, translate errors.
type Engine struct {
	cfg      config.ResolverConfig
	cache    *cache.Hierarchy
	selector *registry.Selector
	racer    *racer.Racer
	network  *bandwidth.Watcher
	health   *health.Monitor
}

// NewEngine wires the facade. All collaborators are owned by the caller
// (the composition root); the engine holds no global state.
func NewEngine(cfg config.ResolverConfig, c *cache.Hierarchy, sel *registry.Selector, r *racer.Racer, net *bandwidth.Watcher, m *health.Monitor) *Engine {
	return &Engine{cfg: cfg, cache: c, selector: sel, racer: r, network: net, health: m}
}

// Resolve turns a content id into a playable stream descriptor. The global
// timeout spans the cache probe and the race; only aggregate errors
// (timeout, cancellation, invalid input, all-sources-failed) reach callers.
func (e *Engine) Resolve(ctx context.Context, id domain.ContentID, opts Options) (*domain.StreamDescriptor, error) {
	start := time.Now()

	if err := id.Validate(); err != nil {
		metrics.ResolutionsTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	timeout := e.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqID := uuid.NewString()[:8]
	slog.Debug("Resolution started", "req", reqID, "content", id)

	backoff := retry.WithMaxRetries(uint64(e.cfg.MaxRetries), retry.NewExponential(e.cfg.RetryBackoff))

	var desc *domain.StreamDescriptor
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		d, aerr := e.attempt(ctx, reqID, id, opts)
		if aerr != nil {
			if domain.Retryable(aerr) && ctx.Err() == nil {
				return retry.RetryableError(aerr)
			}
			return aerr
		}
		desc = d
		return nil
	})
	if err != nil {
		terr := e.translate(ctx, err, id)
		metrics.ResolutionsTotal.WithLabelValues(string(domain.KindOf(terr))).Inc()
		slog.Debug("Resolution failed", "req", reqID, "content", id, "error", terr)
		return nil, terr
	}

	metrics.ResolutionsTotal.WithLabelValues("success").Inc()
	metrics.ResolveLatency.Observe(time.Since(start).Seconds())
	slog.Debug("Resolution finished", "req", reqID, "content", id,
		"source", desc.SourceID, "elapsed", time.Since(start))
	return desc, nil
}

// attempt is one pass of the cache-then-race state machine.
func (e *Engine) attempt(ctx context.Context, reqID string, id domain.ContentID, opts Options) (*domain.StreamDescriptor, error) {
	tier := e.network.Current()

	getOpts := cache.GetOptions{
		SkipRemote: opts.DataSaver || e.network.Metered(),
		Refresh:    opts.Refresh,
	}

	slog.Debug("Checking cache", "req", reqID, "content", id)
	return e.cache.Get(ctx, id.CacheKey(), getOpts, func(fctx context.Context) (*domain.StreamDescriptor, error) {
		chain, err := e.selector.BuildChain(registry.Criteria{
			Genre:          opts.Genre,
			DataSaver:      opts.DataSaver,
			Tier:           tier,
			ForcedSourceID: opts.ForcedSource,
		})
		if err != nil {
			return nil, err
		}

		slog.Debug("Racing sources", "req", reqID, "content", id,
			"chain", len(chain), "tier", tier)
		hints := domain.ExtractionHints{
			Genre:     opts.Genre,
			DataSaver: opts.DataSaver,
			Quality:   bandwidth.RecommendedQuality(tier),
		}
		return e.racer.Race(fctx, id, chain, tier, hints)
	})
}

// translate maps context errors onto the taxonomy so callers can tell a
// timeout from caller-initiated cancellation from exhaustion.
func (e *Engine) translate(ctx context.Context, err error, id domain.ContentID) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindTimeout, "", "resolution timed out for "+string(id))
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewError(domain.KindCancelled, "", "resolution cancelled for "+string(id))
	}
	return err
}

// Invalidate drops one cached resolution and cancels any coalesced
// in-flight request for it. Idempotent.
func (e *Engine) Invalidate(ctx context.Context, id domain.ContentID) {
	e.cache.Delete(ctx, id.CacheKey())
}

// InvalidateAll drops every cached resolution.
func (e *Engine) InvalidateAll(ctx context.Context) {
	e.cache.Clear(ctx)
}

// HealthSnapshot returns read-only per-source health diagnostics.
func (e *Engine) HealthSnapshot() []health.SourceHealth {
	return e.health.Snapshot()
}

// CacheStats returns read-only cache hierarchy statistics.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}
