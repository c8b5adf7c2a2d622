package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheFreshAndStaleZones(t *testing.T) {
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	cache := newTestCache(nil, &now)
	events := []RawEvent{{ID: "e1"}}

	cache.Set(context.Background(), "g1", events)

	hit, ok := cache.Get(context.Background(), "g1")
	require.True(t, ok)
	require.False(t, hit.Stale)
	require.Equal(t, events, hit.Events)

	now = now.Add(20 * time.Minute)
	hit, ok = cache.Get(context.Background(), "g1")
	require.True(t, ok)
	require.True(t, hit.Stale)

	now = now.Add(2 * time.Hour)
	_, ok = cache.Get(context.Background(), "g1")
	require.False(t, ok)
	require.Zero(t, cache.Len())
}

func TestCacheRemoteBackfillsMemory(t *testing.T) {
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	remote := newFakeRemote()
	remote.entries["g1"] = CacheEntry{GroupKey: "g1", Events: []RawEvent{{ID: "r1"}}, StoredAt: now.Add(-30 * time.Minute)}
	cache := newTestCache(remote, &now)

	hit, ok := cache.Get(context.Background(), "g1")
	require.True(t, ok)
	require.True(t, hit.Stale)
	require.Equal(t, "r1", hit.Events[0].ID)
	require.Equal(t, 1, cache.Len())

	_, ok = cache.Get(context.Background(), "g1")
	require.True(t, ok)
	require.Equal(t, 1, remote.gets)
}

func TestCacheRemoteWriteFailureDoesNotPropagate(t *testing.T) {
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	remote := newFakeRemote()
	remote.err = errors.New("connection refused")
	cache := newTestCache(remote, &now)

	cache.Set(context.Background(), "g1", []RawEvent{{ID: "e1"}})

	hit, ok := cache.Get(context.Background(), "g1")
	require.True(t, ok)
	require.Equal(t, "e1", hit.Events[0].ID)
	require.Equal(t, 1, cache.BreakerState().Failures)
}

func TestCacheBreakerSkipsRemoteUntilCooldown(t *testing.T) {
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	remote := newFakeRemote()
	remote.err = errors.New("timeout")
	cache := newTestCache(remote, &now)

	for i := 0; i < 3; i++ {
		_, ok := cache.Get(context.Background(), fmt.Sprintf("missing-%d", i))
		require.False(t, ok)
	}
	require.True(t, cache.BreakerState().Open)
	calls := remote.calls()

	cache.Set(context.Background(), "g1", nil)
	_, _ = cache.Get(context.Background(), "other")
	require.Equal(t, calls, remote.calls(), "open breaker must bypass the remote layer")

	now = now.Add(time.Minute)
	remote.setErr(nil)
	cache.Set(context.Background(), "g2", []RawEvent{{ID: "x"}})
	require.Equal(t, calls+1, remote.calls())
	state := cache.BreakerState()
	require.False(t, state.Open)
	require.Zero(t, state.Failures)
}

func TestCachePruneEvictsOldestQuarter(t *testing.T) {
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	cache := newTestCache(nil, &now)
	cache.cfg.MaxMemoryEntries = 6

	for i := 0; i < 8; i++ {
		now = now.Add(time.Second)
		cache.Set(context.Background(), fmt.Sprintf("g%d", i), nil)
	}
	require.Equal(t, 2, cache.Prune())
	require.Equal(t, 6, cache.Len())
	_, ok := cache.Get(context.Background(), "g0")
	require.False(t, ok)
	_, ok = cache.Get(context.Background(), "g1")
	require.False(t, ok)
	_, ok = cache.Get(context.Background(), "g2")
	require.True(t, ok)

	require.Zero(t, cache.Prune())
}

func newTestCache(remote RemoteStore, now *time.Time) *Cache {
	cfg := CacheConfig{
		FreshTTL:         15 * time.Minute,
		StaleTTL:         time.Hour,
		MaxMemoryEntries: 100,
		Breaker:          BreakerConfig{Threshold: 3, Cooldown: 30 * time.Second},
	}
	cache := NewCache(cfg, remote, newTestLogger())
	cache.now = func() time.Time { return *now }
	cache.breaker.now = cache.now
	return cache
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRemote struct {
	mu         sync.Mutex
	entries    map[string]CacheEntry
	signatures map[string]string
	err        error
	gets       int
	sets       int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{entries: make(map[string]CacheEntry), signatures: make(map[string]string)}
}

func (f *fakeRemote) GetEntry(_ context.Context, key string) (CacheEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return CacheEntry{}, false, f.err
	}
	entry, ok := f.entries[key]
	return entry, ok, nil
}

func (f *fakeRemote) SaveEntry(_ context.Context, entry CacheEntry, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.err != nil {
		return f.err
	}
	f.entries[entry.GroupKey] = entry
	return nil
}

func (f *fakeRemote) GetSignature(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sig, ok := f.signatures[key]
	return sig, ok, nil
}

func (f *fakeRemote) SaveSignature(_ context.Context, key, sig string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signatures[key] = sig
	return nil
}

func (f *fakeRemote) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets + f.sets
}

func (f *fakeRemote) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}
