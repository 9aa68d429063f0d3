// Package racer executes a candidate chain with bounded concurrency.
// The first schema-validated success wins and cancels every other attempt;
// an exhausted chain yields an aggregate error listing each failure.
package racer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/streamforge/resolver/internal/core/domain"
	"github.com/streamforge/resolver/internal/health"
	"github.com/streamforge/resolver/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// Racer runs extraction attempts across a chain of sources.
type Racer struct {
	health      *health.Monitor
	concurrency int64
	headroom    float64
}

// New creates a racer. concurrency bounds in-flight attempts; headroom is
// the buffer multiplier applied to the tier weight when deciding whether
// an endpoint's bandwidth profile is too heavy.
func New(m *health.Monitor, concurrency int, headroom float64) *Racer {
	if concurrency < 1 {
		concurrency = 1
	}
	if headroom <= 0 {
		headroom = 1.25
	}
	return &Racer{health: m, concurrency: int64(concurrency), headroom: headroom}
}

// Race tries the chain in order under the concurrency bound. Sources are
// dispatched in chain order; within a source, endpoints run strictly in
// order. The returned descriptor is always schema-validated.
func (r *Racer) Race(ctx context.Context, id domain.ContentID, chain []*domain.SourceConfig, tier domain.BandwidthTier, hints domain.ExtractionHints) (*domain.StreamDescriptor, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(r.concurrency)

	var (
		mu       sync.Mutex
		winner   *domain.StreamDescriptor
		failures []domain.SourceFailure
		wg       sync.WaitGroup
	)

	record := func(f domain.SourceFailure) {
		mu.Lock()
		failures = append(failures, f)
		mu.Unlock()
	}

	for _, src := range chain {
		// Acquire fails once the race is decided or the caller is gone.
		if err := sem.Acquire(raceCtx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(src *domain.SourceConfig) {
			defer wg.Done()
			defer sem.Release(1)

			desc := r.attemptSource(raceCtx, id, src, tier, hints, record)
			if desc == nil {
				return
			}

			mu.Lock()
			first := winner == nil
			if first {
				winner = desc
			}
			mu.Unlock()

			if first {
				// First validated success cancels every other attempt.
				cancel()
			}
		}(src)
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if winner != nil {
		return winner, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, &domain.AggregateError{ContentID: id, Failures: failures}
}

// attemptSource walks the source's endpoints in order and returns the
// first validated descriptor, or nil. Failures are reported to the health
// monitor and recorded as diagnostics unless the race was already decided;
// a late result never wins or touches the monitor.
func (r *Racer) attemptSource(raceCtx context.Context, id domain.ContentID, src *domain.SourceConfig, tier domain.BandwidthTier, hints domain.ExtractionHints, record func(domain.SourceFailure)) *domain.StreamDescriptor {
	maxProfile := float64(domain.TierWeight[tier]) * r.headroom
	attempted := false

	for _, ep := range src.Endpoints {
		if raceCtx.Err() != nil {
			return nil
		}

		if float64(ep.BandwidthProfile) > maxProfile {
			slog.Debug("Endpoint skipped for bandwidth",
				"source", src.ID, "profile", ep.BandwidthProfile, "tier", tier)
			continue
		}
		attempted = true

		epCtx, cancel := context.WithTimeout(raceCtx, ep.Timeout)
		desc, err := src.Extractor(epCtx, id, ep, tier, hints)
		cancel()

		if err == nil && desc != nil {
			if verr := desc.Validate(); verr != nil {
				err = verr
			}
		} else if err == nil {
			err = domain.NewError(domain.KindValidationFailed, src.ID, "extractor returned no descriptor")
		}

		if err != nil {
			if raceCtx.Err() != nil {
				// Cancelled mid-attempt: discard without reporting.
				return nil
			}
			cerr := domain.Classify(err, src.ID)
			metrics.ExtractionAttemptsTotal.WithLabelValues(src.ID, "failure").Inc()
			r.health.RecordFailure(src.ID, src.CooldownDuration, src.FailureThreshold)
			record(domain.SourceFailure{
				SourceID:  src.ID,
				Kind:      cerr.Kind,
				Message:   cerr.Message,
				Timestamp: time.Now(),
			})
			slog.Debug("Extraction attempt failed",
				"source", src.ID, "kind", cerr.Kind, "error", cerr.Message)

			if cerr.Kind == domain.KindContentUnavailable {
				// Source-confirmed absence: its other endpoints will not
				// have the content either.
				return nil
			}
			continue
		}

		if raceCtx.Err() != nil {
			// The race was decided while this attempt was finishing.
			return nil
		}

		metrics.ExtractionAttemptsTotal.WithLabelValues(src.ID, "success").Inc()
		r.health.RecordSuccess(src.ID)
		return desc
	}

	if !attempted {
		// Nothing to punish the source for; keep the diagnostic anyway.
		record(domain.SourceFailure{
			SourceID:  src.ID,
			Kind:      domain.KindSourceTimeout,
			Message:   "no endpoint fits current bandwidth tier",
			Timestamp: time.Now(),
		})
	}
	return nil
}
