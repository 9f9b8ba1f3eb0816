// Package cache memoises fetched profile snapshots in two tiers: an
// in-process map that lives as long as the page session, and a durable
// Store shared across sessions whose entries expire after a TTL.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fc-troll-detector/internal/metrics"
	"fc-troll-detector/internal/model"
)

const (
	// DefaultPrefix namespaces durable keys: <prefix><userID>.
	DefaultPrefix = "fc_troll_cache_"
	// DefaultTTL bounds the age of durable entries.
	DefaultTTL = 24 * time.Hour
)

// Store is the durable tier. Get reports found=false for absent keys;
// errors are reserved for backend failures.
type Store interface {
	Get(ctx context.Context, key string) (entry model.CacheEntry, found bool, err error)
	Put(ctx context.Context, key string, entry model.CacheEntry, ttl time.Duration) error
}

// Purger is implemented by stores that can drop entries in bulk.
type Purger interface {
	Purge(ctx context.Context, prefix string) (int64, error)
}

// Cache is safe for concurrent use.
type Cache struct {
	store  Store
	prefix string
	ttl    time.Duration
	now    func() time.Time

	mu  sync.RWMutex
	mem map[string]model.Snapshot
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix sets the durable key prefix.
func WithPrefix(p string) Option { return func(c *Cache) { c.prefix = p } }

// WithTTL sets the durable entry lifetime.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// New creates a cache with an empty memory tier over store. A nil store
// behaves like NullStore.
func New(store Store, opts ...Option) *Cache {
	if store == nil {
		store = NullStore{}
	}
	c := &Cache{
		store:  store,
		prefix: DefaultPrefix,
		ttl:    DefaultTTL,
		now:    time.Now,
		mem:    make(map[string]model.Snapshot),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key returns the durable key of userID.
func (c *Cache) Key(userID string) string { return c.prefix + userID }

// TTL returns the durable entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get consults memory, then the durable store. Durable entries older than
// the TTL are misses. Durable errors degrade to a miss.
func (c *Cache) Get(ctx context.Context, userID string) (model.Snapshot, bool) {
	c.mu.RLock()
	s, ok := c.mem[userID]
	c.mu.RUnlock()
	if ok {
		metrics.CacheLookups.WithLabelValues("memory", "hit").Inc()
		return s, true
	}

	entry, found, err := c.store.Get(ctx, c.Key(userID))
	if err != nil {
		slog.Debug("cache: durable read failed", "user", userID, "error", err)
		metrics.CacheLookups.WithLabelValues("durable", "error").Inc()
		return model.Snapshot{}, false
	}
	if !found || !entry.Fresh(c.now(), c.ttl) {
		metrics.CacheLookups.WithLabelValues("durable", "miss").Inc()
		return model.Snapshot{}, false
	}
	metrics.CacheLookups.WithLabelValues("durable", "hit").Inc()

	c.mu.Lock()
	c.mem[userID] = entry.Snapshot
	c.mu.Unlock()
	return entry.Snapshot, true
}

// Put stores s in both tiers. A durable write failure is logged and
// otherwise ignored: the memory tier still serves this session.
func (c *Cache) Put(ctx context.Context, userID string, s model.Snapshot) {
	c.mu.Lock()
	c.mem[userID] = s
	c.mu.Unlock()

	entry := model.CacheEntry{Snapshot: s, FetchedAtMs: c.now().UnixMilli()}
	if err := c.store.Put(ctx, c.Key(userID), entry, c.ttl); err != nil {
		slog.Warn("cache: durable write failed", "user", userID, "error", err)
	}
}

// Len returns the number of snapshots in the memory tier.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mem)
}

// NullStore never finds anything and discards writes.
type NullStore struct{}

func (NullStore) Get(context.Context, string) (model.CacheEntry, bool, error) {
	return model.CacheEntry{}, false, nil
}

func (NullStore) Put(context.Context, string, model.CacheEntry, time.Duration) error { return nil }
