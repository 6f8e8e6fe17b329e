package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BuildFunc produces a fresh catalog snapshot.
type BuildFunc func(ctx context.Context) (*Catalog, error)

// Cache serves catalog snapshots with TTL invalidation. The read path is a
// single atomic pointer load; the mutex guards only the rebuild trigger, so
// readers never block behind a rebuild. While a rebuild is in flight, stale
// snapshots keep serving and at most one build runs.
type Cache struct {
	ttl   time.Duration
	build BuildFunc

	snapshot atomic.Pointer[cacheEntry]

	mu       sync.Mutex
	inflight chan struct{} // non-nil while a build is running
	forced   bool          // next Get must rebuild regardless of TTL

	hits        atomic.Int64
	staleServes atomic.Int64
	rebuilds    atomic.Int64
	buildErrors atomic.Int64
}

type cacheEntry struct {
	catalog *Catalog
	builtAt time.Time
}

// CacheStats reports cache behavior counters.
type CacheStats struct {
	Hits        int64         `json:"hits"`
	StaleServes int64         `json:"stale_serves"`
	Rebuilds    int64         `json:"rebuilds"`
	BuildErrors int64         `json:"build_errors"`
	Age         time.Duration `json:"age"`
	HasSnapshot bool          `json:"has_snapshot"`
}

// NewCache creates a catalog cache with the given TTL and build function.
func NewCache(ttl time.Duration, build BuildFunc) (*Cache, error) {
	if ttl <= 0 {
		return nil, eris.Errorf("catalog: cache ttl must be positive, got %v", ttl)
	}
	if build == nil {
		return nil, eris.New("catalog: nil build function")
	}
	return &Cache{ttl: ttl, build: build}, nil
}

// Get returns a servable catalog, rebuilding if none exists, the TTL has
// elapsed, or Invalidate was called. Exactly one caller performs any given
// rebuild. Callers holding a stale-but-valid snapshot are served that
// snapshot rather than blocking; only first-ever builds make callers wait.
// A failed rebuild over a stale snapshot serves the stale catalog and
// retries on the next Get.
func (c *Cache) Get(ctx context.Context) (*Catalog, error) {
	for {
		e := c.snapshot.Load()

		c.mu.Lock()
		if e != nil && !c.forced && time.Since(e.builtAt) < c.ttl {
			c.mu.Unlock()
			c.hits.Add(1)
			return e.catalog, nil
		}

		if c.inflight != nil {
			ch := c.inflight
			c.mu.Unlock()
			if e != nil {
				c.staleServes.Add(1)
				return e.catalog, nil
			}
			// Nothing servable yet; wait for the first build.
			select {
			case <-ch:
				continue
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "catalog: wait for initial build")
			}
		}

		// This caller becomes the rebuilder.
		ch := make(chan struct{})
		c.inflight = ch
		c.mu.Unlock()

		built, err := c.build(ctx)

		c.mu.Lock()
		c.inflight = nil
		if err == nil {
			c.forced = false
			c.snapshot.Store(&cacheEntry{catalog: built, builtAt: time.Now()})
			c.rebuilds.Add(1)
		} else {
			c.buildErrors.Add(1)
		}
		c.mu.Unlock()
		close(ch)

		if err != nil {
			if e != nil {
				zap.L().Warn("catalog: rebuild failed, serving stale snapshot", zap.Error(err))
				c.staleServes.Add(1)
				return e.catalog, nil
			}
			return nil, eris.Wrap(err, "catalog: initial build")
		}
		return built, nil
	}
}

// Invalidate forces the next Get to rebuild regardless of TTL.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.forced = true
	c.mu.Unlock()
}

// Stats returns the cache behavior counters.
func (c *Cache) Stats() CacheStats {
	s := CacheStats{
		Hits:        c.hits.Load(),
		StaleServes: c.staleServes.Load(),
		Rebuilds:    c.rebuilds.Load(),
		BuildErrors: c.buildErrors.Load(),
	}
	if e := c.snapshot.Load(); e != nil {
		s.HasSnapshot = true
		s.Age = time.Since(e.builtAt)
	}
	return s
}
