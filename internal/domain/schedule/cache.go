package schedule

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// CacheConfig holds the freshness and sizing knobs of the cache tier.
type CacheConfig struct {
	FreshTTL         time.Duration
	StaleTTL         time.Duration
	MaxMemoryEntries int
	Breaker          BreakerConfig
}

// Lookup is a cache hit.
type Lookup struct {
	Events   []RawEvent
	StoredAt time.Time
	Stale    bool
}

// Cache fronts the upstream with an in-process map and an optional shared
// remote store guarded by a circuit breaker.
type Cache struct {
	cfg     CacheConfig
	mu      sync.Mutex
	memory  map[string]CacheEntry
	remote  RemoteStore
	breaker *Breaker
	logger  *slog.Logger
	now     func() time.Time
}

// NewCache builds the tier. A nil remote disables the shared layer.
func NewCache(cfg CacheConfig, remote RemoteStore, logger *slog.Logger) *Cache {
	if cfg.FreshTTL <= 0 {
		cfg.FreshTTL = 15 * time.Minute
	}
	if cfg.StaleTTL <= cfg.FreshTTL {
		cfg.StaleTTL = cfg.FreshTTL * 4
	}
	if cfg.MaxMemoryEntries <= 0 {
		cfg.MaxMemoryEntries = 500
	}
	return &Cache{
		cfg:     cfg,
		memory:  make(map[string]CacheEntry),
		remote:  remote,
		breaker: NewBreaker(cfg.Breaker),
		logger:  logger.With("component", "schedule.cache"),
		now:     time.Now,
	}
}

// Get returns the cached events for key, marking them stale when they are
// past the fresh threshold. Entries past the stale threshold are misses.
func (c *Cache) Get(ctx context.Context, key string) (Lookup, bool) {
	now := c.now()

	c.mu.Lock()
	entry, ok := c.memory[key]
	if ok && now.Sub(entry.StoredAt) >= c.cfg.StaleTTL {
		delete(c.memory, key)
		ok = false
	}
	c.mu.Unlock()
	if ok {
		return c.lookup(entry, now), true
	}

	if !c.remoteUsable() {
		return Lookup{}, false
	}
	entry, ok, err := c.remote.GetEntry(ctx, key)
	if err != nil {
		c.breaker.Failure()
		c.logger.Warn("remote cache read failed", "group", key, "error", &CacheError{Op: "get", Err: err})
		return Lookup{}, false
	}
	c.breaker.Success()
	if !ok || now.Sub(entry.StoredAt) >= c.cfg.StaleTTL {
		return Lookup{}, false
	}

	c.mu.Lock()
	if current, exists := c.memory[key]; !exists || current.StoredAt.Before(entry.StoredAt) {
		c.memory[key] = entry
	}
	c.mu.Unlock()
	return c.lookup(entry, now), true
}

// Set overwrites the entry for key. The memory write always happens; the
// remote write is best effort and never fails the caller.
func (c *Cache) Set(ctx context.Context, key string, events []RawEvent) {
	entry := CacheEntry{GroupKey: key, Events: events, StoredAt: c.now()}

	c.mu.Lock()
	c.memory[key] = entry
	c.mu.Unlock()

	if !c.remoteUsable() {
		return
	}
	if err := c.remote.SaveEntry(ctx, entry, c.cfg.StaleTTL); err != nil {
		c.breaker.Failure()
		c.logger.Warn("remote cache write failed", "group", key, "error", &CacheError{Op: "set", Err: err})
		return
	}
	c.breaker.Success()
}

// Prune evicts the oldest quarter of the memory entries once the map has
// grown past its bound. It returns the number of evicted entries.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.memory) <= c.cfg.MaxMemoryEntries {
		return 0
	}
	keys := make([]string, 0, len(c.memory))
	for key := range c.memory {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.memory[keys[i]].StoredAt.Before(c.memory[keys[j]].StoredAt)
	})
	evict := (len(keys) + 3) / 4
	for _, key := range keys[:evict] {
		delete(c.memory, key)
	}
	c.logger.Debug("memory cache pruned", "evicted", evict, "remaining", len(c.memory))
	return evict
}

// Len reports the number of memory entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.memory)
}

// RemoteEnabled reports whether a remote layer is configured.
func (c *Cache) RemoteEnabled() bool {
	return c.remote != nil
}

// BreakerState exposes the remote breaker for health reporting.
func (c *Cache) BreakerState() BreakerState {
	return c.breaker.State()
}

func (c *Cache) remoteUsable() bool {
	return c.remote != nil && c.breaker.Allow()
}

func (c *Cache) lookup(entry CacheEntry, now time.Time) Lookup {
	return Lookup{
		Events:   entry.Events,
		StoredAt: entry.StoredAt,
		Stale:    now.Sub(entry.StoredAt) >= c.cfg.FreshTTL,
	}
}
