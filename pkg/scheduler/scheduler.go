// Package scheduler keeps the result cache warm by forcing periodic
// refreshes, so interactive requests rarely pay for a full aggregation run.
// Request semantics do not depend on it; the cache refreshes on demand
// regardless.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/clipfeed/clipfeed/pkg/cache"
)

// Refresher refreshes the aggregated result.
type Refresher interface {
	GetOrRefresh(ctx context.Context, force bool) (*cache.Result, error)
}

// Scheduler runs the background warm refresh loop.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

// New creates a scheduler refreshing at the given interval.
func New(refresher Refresher, interval time.Duration) *Scheduler {
	if interval == 0 {
		interval = time.Hour
	}
	return &Scheduler{refresher: refresher, interval: interval}
}

// Start begins the refresh loop. The first refresh runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.refreshWorker(ctx)

	lgr.Printf("[INFO] scheduler started with refresh interval %v", s.interval)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// refreshWorker periodically forces a cache refresh
func (s *Scheduler) refreshWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// run immediately on start
	s.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

// refresh runs one forced refresh, logging failures without retrying; the
// next tick or an interactive request picks it up.
func (s *Scheduler) refresh(ctx context.Context) {
	res, err := s.refresher.GetOrRefresh(ctx, true)
	if err != nil {
		lgr.Printf("[ERROR] background refresh failed: %v", err)
		return
	}
	lgr.Printf("[INFO] background refresh done, %d general and %d recommended videos",
		len(res.General), len(res.Recommended))
}
