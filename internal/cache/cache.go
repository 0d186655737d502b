// Package cache holds the most recent inventory report and makes sure that
// concurrent readers of an empty cache trigger a single scan between them.
package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/breeze-rmm/inventory-agent/internal/inventory"
	"github.com/breeze-rmm/inventory-agent/internal/logging"
)

var log = logging.L("cache")

const flightKey = "report"

// Loader produces a fresh report. It is called at most once at a time.
type Loader func(ctx context.Context) (*inventory.Report, error)

// Stats are cumulative counters for the life of the cache.
type Stats struct {
	Hits   int64
	Misses int64
	Loads  int64
	Sets   int64
}

// ReportCache holds at most one report. Reports are immutable, so the
// pointer is handed out directly.
type ReportCache struct {
	mu     sync.RWMutex
	report *inventory.Report
	load   Loader
	flight singleflight.Group

	hits, misses, loads, sets atomic.Int64
}

func New(load Loader) *ReportCache {
	return &ReportCache{load: load}
}

// Peek returns the cached report without loading.
func (c *ReportCache) Peek() (*inventory.Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.report, c.report != nil
}

// Get returns the cached report, loading one if the cache is empty.
// Concurrent callers on an empty cache share one load. A caller whose ctx
// ends stops waiting but does not cancel the shared load.
func (c *ReportCache) Get(ctx context.Context) (*inventory.Report, error) {
	if r, ok := c.Peek(); ok {
		c.hits.Add(1)
		return r, nil
	}
	c.misses.Add(1)

	ch := c.flight.DoChan(flightKey, func() (any, error) {
		if r, ok := c.Peek(); ok {
			return r, nil
		}
		c.loads.Add(1)
		r, err := c.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		// The loader may have stored r itself, and a newer report may
		// have landed since; never replace one.
		return c.setIfEmpty(r), nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*inventory.Report), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Set replaces the cached report. nil is ignored; use Clear.
func (c *ReportCache) Set(r *inventory.Report) {
	if r == nil {
		return
	}
	c.mu.Lock()
	c.report = r
	c.mu.Unlock()
	c.sets.Add(1)
}

func (c *ReportCache) setIfEmpty(r *inventory.Report) *inventory.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.report == nil && r != nil {
		c.report = r
		c.sets.Add(1)
	}
	return r
}

// Clear drops the cached report; the next Get loads a new one.
func (c *ReportCache) Clear() {
	c.mu.Lock()
	c.report = nil
	c.mu.Unlock()
}

// FindByName matches pattern case-insensitively against software names.
// It never fails: a load error is logged and yields no matches.
func (c *ReportCache) FindByName(ctx context.Context, pattern string) []inventory.SoftwareEntry {
	r, err := c.Get(ctx)
	if err != nil {
		log.Warn("software lookup without report", "pattern", pattern, logging.KeyError, err)
		return []inventory.SoftwareEntry{}
	}
	return r.Find(pattern)
}

// Names lists every software name in the current report.
func (c *ReportCache) Names(ctx context.Context) []string {
	r, err := c.Get(ctx)
	if err != nil {
		log.Warn("software names without report", logging.KeyError, err)
		return []string{}
	}
	return r.Names()
}

func (c *ReportCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Loads:  c.loads.Load(),
		Sets:   c.sets.Load(),
	}
}
