// Package cache holds the last computed aggregation result behind a
// configurable freshness window, so repeated requests short-circuit instead
// of hammering the upstream catalog.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/singleflight"

	"github.com/clipfeed/clipfeed/pkg/domain"
)

// Aggregator produces a fresh pair of video sets.
type Aggregator interface {
	Aggregate(ctx context.Context) (general, recommended []domain.Video, err error)
}

// Persister stores results across process restarts, the externalized cache
// deployment variant. Both methods are best-effort from the cache's point of
// view.
type Persister interface {
	Save(ctx context.Context, res *Result) error
	Load(ctx context.Context) (*Result, error)
}

// Result is the cached aggregation output.
type Result struct {
	General     []domain.Video
	Recommended []domain.Video
	FetchedAt   time.Time
}

// ResultCache serves the last successful aggregation while it is fresh and
// refreshes it otherwise. Stale concurrent callers are coalesced into a
// single in-flight refresh; a failed refresh leaves the previous result
// untouched.
type ResultCache struct {
	aggregator Aggregator
	window     time.Duration
	now        func() time.Time

	mu        sync.RWMutex
	current   *Result
	persister Persister

	group singleflight.Group
}

// NewResultCache creates a cache with the given freshness window.
func NewResultCache(aggregator Aggregator, window time.Duration) *ResultCache {
	if window == 0 {
		window = time.Hour
	}
	return &ResultCache{
		aggregator: aggregator,
		window:     window,
		now:        time.Now,
	}
}

// WithPersistence attaches an external store. A previously persisted result
// is loaded on the first lookup and every successful refresh is written back.
func (c *ResultCache) WithPersistence(p Persister) *ResultCache {
	c.persister = p
	return c
}

// GetOrRefresh returns the cached result when it is fresh, non-empty and the
// caller did not force a refresh; otherwise it runs the aggregator and swaps
// the cache atomically on success. On total aggregation failure the cache is
// left unchanged and the error is surfaced.
func (c *ResultCache) GetOrRefresh(ctx context.Context, force bool) (*Result, error) {
	if !force {
		if cached := c.fresh(); cached != nil {
			lgr.Printf("[DEBUG] serving cached result from %s", cached.FetchedAt.Format(time.RFC3339))
			return cached, nil
		}
		c.loadPersisted(ctx)
		if cached := c.fresh(); cached != nil {
			return cached, nil
		}
	}

	// all concurrent stale callers share one aggregation run
	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		// a caller that queued behind a finished refresh takes its result
		if !force {
			if cached := c.fresh(); cached != nil {
				return cached, nil
			}
		}
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// Last returns the current cached result regardless of freshness, nil when no
// successful run happened yet.
func (c *ResultCache) Last() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// fresh returns the cached result only when it exists, both sets are
// non-empty and the freshness window has not elapsed.
func (c *ResultCache) fresh() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return nil
	}
	if len(c.current.General) == 0 || len(c.current.Recommended) == 0 {
		return nil
	}
	if c.now().Sub(c.current.FetchedAt) >= c.window {
		return nil
	}
	return c.current
}

// refresh runs the aggregator and swaps the cached result in one assignment.
func (c *ResultCache) refresh(ctx context.Context) (*Result, error) {
	lgr.Printf("[INFO] refreshing aggregation result")
	general, recommended, err := c.aggregator.Aggregate(ctx)
	if err != nil {
		lgr.Printf("[ERROR] aggregation failed, keeping previous result: %v", err)
		return nil, err
	}

	result := &Result{General: general, Recommended: recommended, FetchedAt: c.now()}
	c.mu.Lock()
	c.current = result
	c.mu.Unlock()

	if c.persister != nil {
		if err := c.persister.Save(ctx, result); err != nil {
			lgr.Printf("[WARN] failed to persist result: %v", err)
		}
	}
	return result, nil
}

// loadPersisted seeds the in-memory cache from the external store once, only
// when nothing was cached in-process yet.
func (c *ResultCache) loadPersisted(ctx context.Context) {
	if c.persister == nil {
		return
	}
	c.mu.RLock()
	loaded := c.current != nil
	c.mu.RUnlock()
	if loaded {
		return
	}

	res, err := c.persister.Load(ctx)
	if err != nil {
		lgr.Printf("[WARN] failed to load persisted result: %v", err)
		return
	}
	if res == nil {
		return
	}

	c.mu.Lock()
	if c.current == nil {
		c.current = res
		lgr.Printf("[INFO] seeded result cache from store, fetched at %s", res.FetchedAt.Format(time.RFC3339))
	}
	c.mu.Unlock()
}
