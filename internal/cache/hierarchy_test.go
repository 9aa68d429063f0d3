package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streamforge/resolver/internal/core/domain"
)

// fakeTier is a map-backed tier with injectable failures.
type fakeTier struct {
	name   string
	remote bool
	maxTTL time.Duration

	mu     sync.Mutex
	items  map[string]*domain.CacheEntry
	getErr error
	gets   int
	sets   int
}

func newFakeTier(name string, remote bool, maxTTL time.Duration) *fakeTier {
	return &fakeTier{name: name, remote: remote, maxTTL: maxTTL, items: make(map[string]*domain.CacheEntry)}
}

func (f *fakeTier) Name() string          { return f.name }
func (f *fakeTier) Remote() bool          { return f.remote }
func (f *fakeTier) MaxTTL() time.Duration { return f.maxTTL }

func (f *fakeTier) Get(ctx context.Context, key string) (*domain.CacheEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	e, ok := f.items[key]
	return e, ok, nil
}

func (f *fakeTier) Set(ctx context.Context, key string, entry *domain.CacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.items[key] = entry
	return nil
}

func (f *fakeTier) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, key)
	return nil
}

func (f *fakeTier) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = make(map[string]*domain.CacheEntry)
	return nil
}

func (f *fakeTier) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[key]
	return ok
}

func fetcherReturning(desc *domain.StreamDescriptor, calls *atomic.Int32) FetchFunc {
	return func(ctx context.Context) (*domain.StreamDescriptor, error) {
		calls.Add(1)
		return desc, nil
	}
}

func TestHierarchy_MissThenFetchPopulatesFastestTier(t *testing.T) {
	fast := newFakeTier("memory", false, time.Minute)
	h := NewHierarchy(fast)

	var calls atomic.Int32
	desc := testDescriptor("alpha")
	desc.TTL = time.Hour

	got, err := h.Get(context.Background(), "k1", GetOptions{}, fetcherReturning(desc, &calls))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceID != "alpha" {
		t.Errorf("unexpected descriptor source %q", got.SourceID)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", calls.Load())
	}
	// The fastest tier is written before Get returns.
	if !fast.has("k1") {
		t.Errorf("expected fastest tier populated synchronously")
	}
}

func TestHierarchy_HitSkipsFetcher(t *testing.T) {
	fast := newFakeTier("memory", false, time.Minute)
	fast.items["k1"] = testEntry("alpha", time.Minute)
	h := NewHierarchy(fast)

	var calls atomic.Int32
	got, err := h.Get(context.Background(), "k1", GetOptions{}, fetcherReturning(testDescriptor("beta"), &calls))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceID != "alpha" {
		t.Errorf("expected cached descriptor, got %q", got.SourceID)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no fetch on hit, got %d", calls.Load())
	}
}

func TestHierarchy_ExpiredEntryIsMiss(t *testing.T) {
	// Entry with ttl=1s queried at age 1.5s must be treated as a miss.
	fast := newFakeTier("memory", false, time.Minute)
	stale := testEntry("alpha", time.Second)
	stale.StoredAt = time.Now().Add(-1500 * time.Millisecond)
	fast.items["k1"] = stale
	h := NewHierarchy(fast)

	var calls atomic.Int32
	fresh := testDescriptor("beta")
	got, err := h.Get(context.Background(), "k1", GetOptions{}, fetcherReturning(fresh, &calls))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceID != "beta" {
		t.Errorf("expected fresh descriptor, got %q", got.SourceID)
	}
	if calls.Load() != 1 {
		t.Errorf("expected fetcher invoked on stale entry, got %d calls", calls.Load())
	}
}

func TestHierarchy_TierTTLCeilingAppliesOverEntryTTL(t *testing.T) {
	// Entry TTL is long but the tier's ceiling is short: still a miss.
	fast := newFakeTier("memory", false, 50*time.Millisecond)
	old := testEntry("alpha", time.Hour)
	old.StoredAt = time.Now().Add(-time.Second)
	fast.items["k1"] = old
	h := NewHierarchy(fast)

	var calls atomic.Int32
	_, err := h.Get(context.Background(), "k1", GetOptions{}, fetcherReturning(testDescriptor("beta"), &calls))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected tier ceiling to force a miss")
	}
}

func TestHierarchy_CoalescesConcurrentGets(t *testing.T) {
	fast := newFakeTier("memory", false, time.Minute)
	h := NewHierarchy(fast)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (*domain.StreamDescriptor, error) {
		calls.Add(1)
		<-release
		return testDescriptor("alpha"), nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]*domain.StreamDescriptor, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.Get(context.Background(), "k1", GetOptions{}, fetch)
		}(i)
	}

	// Let every goroutine reach the pending map before the fetch settles.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 physical fetch, got %d", calls.Load())
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d got error: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Errorf("caller %d observed a different result", i)
		}
	}
}

func TestHierarchy_CoalescedFailureSharedByAllCallers(t *testing.T) {
	fast := newFakeTier("memory", false, time.Minute)
	h := NewHierarchy(fast)

	boom := errors.New("upstream exploded")
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (*domain.StreamDescriptor, error) {
		calls.Add(1)
		<-release
		return nil, boom
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.Get(context.Background(), "k1", GetOptions{}, fetch)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected 1 fetch, got %d", calls.Load())
	}
	for i, err := range errs {
		if !errors.Is(err, boom) {
			t.Errorf("caller %d: expected shared failure, got %v", i, err)
		}
	}
}

func TestHierarchy_SlowTierHitPromotesToFaster(t *testing.T) {
	fast := newFakeTier("memory", false, time.Minute)
	slow := newFakeTier("disk", false, time.Hour)
	slow.items["k1"] = testEntry("alpha", time.Minute)
	h := NewHierarchy(fast, slow)

	var calls atomic.Int32
	got, err := h.Get(context.Background(), "k1", GetOptions{}, fetcherReturning(testDescriptor("beta"), &calls))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceID != "alpha" {
		t.Errorf("expected slow-tier hit, got %q", got.SourceID)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no fetch on slow-tier hit")
	}

	// Promotion is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for !fast.has("k1") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !fast.has("k1") {
		t.Errorf("expected entry promoted to faster tier")
	}
}

func TestHierarchy_MissWritesBackToSlowTiers(t *testing.T) {
	fast := newFakeTier("memory", false, time.Minute)
	slow := newFakeTier("disk", false, time.Hour)
	h := NewHierarchy(fast, slow)

	var calls atomic.Int32
	_, err := h.Get(context.Background(), "k1", GetOptions{}, fetcherReturning(testDescriptor("alpha"), &calls))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !slow.has("k1") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !slow.has("k1") {
		t.Errorf("expected background write-through to slow tier")
	}
}

func TestHierarchy_FailingTierIsTierLocalMiss(t *testing.T) {
	broken := newFakeTier("memory", false, time.Minute)
	broken.getErr = errors.New("transport error")
	healthy := newFakeTier("disk", false, time.Hour)
	healthy.items["k1"] = testEntry("alpha", time.Minute)
	h := NewHierarchy(broken, healthy)

	var calls atomic.Int32
	got, err := h.Get(context.Background(), "k1", GetOptions{}, fetcherReturning(testDescriptor("beta"), &calls))
	if err != nil {
		t.Fatalf("tier failure must not abort resolution: %v", err)
	}
	if got.SourceID != "alpha" {
		t.Errorf("expected hit from healthy tier, got %q", got.SourceID)
	}
}

func TestHierarchy_SkipRemote(t *testing.T) {
	fast := newFakeTier("memory", false, time.Minute)
	remote := newFakeTier("redis", true, time.Hour)
	remote.items["k1"] = testEntry("alpha", time.Minute)
	h := NewHierarchy(fast, remote)

	var calls atomic.Int32
	got, err := h.Get(context.Background(), "k1", GetOptions{SkipRemote: true}, fetcherReturning(testDescriptor("beta"), &calls))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceID != "beta" {
		t.Errorf("expected remote tier to be skipped, got %q", got.SourceID)
	}
	remote.mu.Lock()
	gets := remote.gets
	remote.mu.Unlock()
	if gets != 0 {
		t.Errorf("expected no remote tier reads, got %d", gets)
	}
}

func TestHierarchy_RefreshSkipsAllTiers(t *testing.T) {
	fast := newFakeTier("memory", false, time.Minute)
	fast.items["k1"] = testEntry("alpha", time.Minute)
	h := NewHierarchy(fast)

	var calls atomic.Int32
	got, err := h.Get(context.Background(), "k1", GetOptions{Refresh: true}, fetcherReturning(testDescriptor("beta"), &calls))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceID != "beta" || calls.Load() != 1 {
		t.Errorf("expected forced fetch, got %q with %d calls", got.SourceID, calls.Load())
	}
}

func TestHierarchy_DeleteIsIdempotent(t *testing.T) {
	fast := newFakeTier("memory", false, time.Minute)
	fast.items["k1"] = testEntry("alpha", time.Minute)
	h := NewHierarchy(fast)
	ctx := context.Background()

	h.Delete(ctx, "k1")
	if fast.has("k1") {
		t.Fatalf("expected entry removed")
	}

	// Second call is a no-op.
	h.Delete(ctx, "k1")
	if fast.has("k1") {
		t.Errorf("unexpected state change on repeated delete")
	}
}

func TestHierarchy_DeleteCancelsInflightFetch(t *testing.T) {
	fast := newFakeTier("memory", false, time.Minute)
	h := NewHierarchy(fast)

	started := make(chan struct{})
	fetch := func(ctx context.Context) (*domain.StreamDescriptor, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.Get(context.Background(), "k1", GetOptions{}, fetch)
		done <- err
	}()

	<-started
	h.Delete(context.Background(), "k1")

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("inflight fetch was not cancelled by delete")
	}
	if fast.has("k1") {
		t.Errorf("cancelled fetch must not populate the cache")
	}
}

func TestHierarchy_CallerCancelDetachesWithoutKillingFetch(t *testing.T) {
	fast := newFakeTier("memory", false, time.Minute)
	h := NewHierarchy(fast)

	release := make(chan struct{})
	fetch := func(ctx context.Context) (*domain.StreamDescriptor, error) {
		select {
		case <-release:
			return testDescriptor("alpha"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// First caller will cancel; second caller sticks around.
	ctx1, cancel1 := context.WithCancel(context.Background())
	err1ch := make(chan error, 1)
	go func() {
		_, err := h.Get(ctx1, "k1", GetOptions{}, fetch)
		err1ch <- err
	}()
	time.Sleep(20 * time.Millisecond)

	res2ch := make(chan *domain.StreamDescriptor, 1)
	go func() {
		d, _ := h.Get(context.Background(), "k1", GetOptions{}, fetch)
		res2ch <- d
	}()
	time.Sleep(20 * time.Millisecond)

	cancel1()
	if err := <-err1ch; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected first caller cancelled, got %v", err)
	}

	close(release)
	select {
	case d := <-res2ch:
		if d == nil || d.SourceID != "alpha" {
			t.Errorf("expected surviving caller to get the result")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("surviving caller never settled")
	}
}

func TestHierarchy_Stats(t *testing.T) {
	fast := newFakeTier("memory", false, time.Minute)
	fast.items["hit"] = testEntry("alpha", time.Minute)
	h := NewHierarchy(fast)

	var calls atomic.Int32
	h.Get(context.Background(), "hit", GetOptions{}, fetcherReturning(testDescriptor("x"), &calls))
	h.Get(context.Background(), "miss", GetOptions{}, fetcherReturning(testDescriptor("x"), &calls))

	s := h.Stats()
	if len(s.Tiers) != 1 || s.Tiers[0].Name != "memory" {
		t.Fatalf("unexpected tier stats: %+v", s.Tiers)
	}
	if s.Tiers[0].Hits != 1 {
		t.Errorf("expected 1 hit, got %d", s.Tiers[0].Hits)
	}
	if s.Misses != 1 || s.Fetches != 1 {
		t.Errorf("expected 1 miss and 1 fetch, got %d/%d", s.Misses, s.Fetches)
	}
}
