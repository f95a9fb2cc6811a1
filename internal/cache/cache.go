// Package cache implements the memoizing load collaborator that sits
// between the dashboard service and the matrix acquirer. Results are keyed
// by acquisition parameters, expire after a TTL, and can be invalidated by
// the caller. Concurrent loads for the same key are deduplicated with
// singleflight so a refresh storm costs one upstream fetch.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"twpulse/internal/market"
)

// Loader produces a fresh price matrix for a cache miss.
type Loader func(ctx context.Context) (*market.PriceMatrix, error)

type entry struct {
	matrix   *market.PriceMatrix
	loadedAt time.Time
}

// MatrixCache memoizes acquired price matrices by key.
//
// The cached master copy is never handed out directly: GetOrLoad returns a
// clone, so callers can feed the pipeline without synchronizing against
// other sessions.
type MatrixCache struct {
	ttl    time.Duration
	clock  func() time.Time
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group

	hits   prometheus.Counter
	misses prometheus.Counter
}

// Option configures a MatrixCache.
type Option func(*MatrixCache)

// WithClock overrides the time source. Tests only.
func WithClock(clock func() time.Time) Option {
	return func(c *MatrixCache) { c.clock = clock }
}

// WithCounters wires hit/miss counters into the cache.
func WithCounters(hits, misses prometheus.Counter) Option {
	return func(c *MatrixCache) {
		c.hits = hits
		c.misses = misses
	}
}

// New creates a MatrixCache. A non-positive TTL means entries never expire
// and refresh only through Invalidate.
func New(ttl time.Duration, logger *slog.Logger, opts ...Option) *MatrixCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &MatrixCache{
		ttl:     ttl,
		clock:   time.Now,
		logger:  logger.With(slog.String("component", "matrix_cache")),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrLoad returns a clone of the cached matrix for key, loading it when
// absent or expired.
func (c *MatrixCache) GetOrLoad(ctx context.Context, key string, load Loader) (*market.PriceMatrix, error) {
	if m, ok := c.lookup(key); ok {
		if c.hits != nil {
			c.hits.Inc()
		}
		return m.Clone(), nil
	}

	if c.misses != nil {
		c.misses.Inc()
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// Re-check under singleflight: a concurrent caller may have
		// populated the entry while this one queued.
		if m, ok := c.lookup(key); ok {
			return m, nil
		}

		c.logger.InfoContext(ctx, "loading matrix", "key", key)
		m, err := load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = entry{matrix: m, loadedAt: c.clock()}
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.DebugContext(ctx, "load shared between concurrent callers", "key", key)
	}
	return v.(*market.PriceMatrix).Clone(), nil
}

// Invalidate drops one key.
func (c *MatrixCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateAll drops every cached entry.
func (c *MatrixCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of live entries, expired ones included.
func (c *MatrixCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MatrixCache) lookup(key string) (*market.PriceMatrix, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.clock().Sub(e.loadedAt) > c.ttl {
		return nil, false
	}
	return e.matrix, true
}
