// Package health implements the per-source circuit breaker. A source that
// fails repeatedly enters a time-bounded cooldown and is skipped by the
// selector until the cooldown elapses.
package health

import (
	"log/slog"
	"sync"
	"time"

	"github.com/streamforge/resolver/internal/metrics"
)

// DefaultFailureThreshold opens the circuit after this many failures when
// the source does not configure its own threshold.
const DefaultFailureThreshold = 3

// SourceHealth is a read-only snapshot of one source's counters.
type SourceHealth struct {
	SourceID        string    `json:"source_id"`
	SuccessCount    int       `json:"success_count"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	CooldownUntil   time.Time `json:"cooldown_until,omitempty"`
	Healthy         bool      `json:"healthy"`
}

// entry holds mutable per-source state behind its own lock so unrelated
// resolutions never contend on one global mutex.
type entry struct {
	mu              sync.Mutex
	threshold       int
	successCount    int
	failureCount    int
	lastFailureTime time.Time
	cooldownUntil   time.Time
}

// Monitor tracks success/failure counters per source id.
type Monitor struct {
	mu      sync.RWMutex
	sources map[string]*entry
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{sources: make(map[string]*entry)}
}

func (m *Monitor) get(id string, threshold int) *entry {
	m.mu.RLock()
	e, ok := m.sources[id]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.sources[id]; ok {
		return e
	}
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	e = &entry{threshold: threshold}
	m.sources[id] = e
	return e
}

// RecordSuccess walks the failure count back toward zero and clears the
// cooldown once it reaches zero.
func (m *Monitor) RecordSuccess(id string) {
	e := m.get(id, 0)

	e.mu.Lock()
	e.successCount++
	if e.failureCount > 0 {
		e.failureCount--
	}
	cleared := false
	if e.failureCount == 0 && !e.cooldownUntil.IsZero() {
		e.cooldownUntil = time.Time{}
		cleared = true
	}
	e.mu.Unlock()

	if cleared {
		slog.Debug("Source cooldown cleared", "source", id)
		m.updateCooldownGauge()
	}
}

// RecordFailure increments the failure count and, once the source's
// threshold is reached, opens the circuit for the given cooldown.
func (m *Monitor) RecordFailure(id string, cooldown time.Duration, threshold int) {
	e := m.get(id, threshold)
	now := time.Now()

	e.mu.Lock()
	e.failureCount++
	e.lastFailureTime = now
	opened := false
	if e.failureCount >= e.threshold && cooldown > 0 {
		e.cooldownUntil = now.Add(cooldown)
		opened = true
	}
	e.mu.Unlock()

	if opened {
		slog.Warn("Source entered cooldown", "source", id, "cooldown", cooldown)
		m.updateCooldownGauge()
	}
}

// IsHealthy is false only while the source's cooldown lies in the future.
// Historical failure counts alone never make a source unhealthy.
func (m *Monitor) IsHealthy(id string) bool {
	m.mu.RLock()
	e, ok := m.sources[id]
	m.mu.RUnlock()
	if !ok {
		return true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cooldownUntil.IsZero() || time.Now().After(e.cooldownUntil)
}

// Reset clears all counters and cooldowns. Used by the selector when every
// source is simultaneously unhealthy; one more failed attempt beats a
// total lockout.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.sources = make(map[string]*entry)
	m.mu.Unlock()

	slog.Warn("Health monitor reset: all sources were in cooldown")
	metrics.SourcesInCooldown.Set(0)
}

// Snapshot returns read-only diagnostics for every tracked source.
func (m *Monitor) Snapshot() []SourceHealth {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sources))
	entries := make([]*entry, 0, len(m.sources))
	for id, e := range m.sources {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	now := time.Now()
	out := make([]SourceHealth, len(entries))
	for i, e := range entries {
		e.mu.Lock()
		out[i] = SourceHealth{
			SourceID:        ids[i],
			SuccessCount:    e.successCount,
			FailureCount:    e.failureCount,
			LastFailureTime: e.lastFailureTime,
			CooldownUntil:   e.cooldownUntil,
			Healthy:         e.cooldownUntil.IsZero() || now.After(e.cooldownUntil),
		}
		e.mu.Unlock()
	}
	return out
}

func (m *Monitor) updateCooldownGauge() {
	count := 0
	for _, h := range m.Snapshot() {
		if !h.Healthy {
			count++
		}
	}
	metrics.SourcesInCooldown.Set(float64(count))
}
