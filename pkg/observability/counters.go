package observability

import (
	"context"
	"sync"
	"time"
)

// Counters implements every hook interface by counting events in memory.
type Counters struct {
	mu   sync.Mutex
	snap Snapshot
}

// Snapshot is a point-in-time copy of [Counters].
type Snapshot struct {
	Builds        int64            `json:"builds"`
	BuildErrors   int64            `json:"build_errors"`
	BuildTime     time.Duration    `json:"build_time_ns"`
	Writes        int64            `json:"writes"`
	WriteErrors   int64            `json:"write_errors"`
	CacheHits     int64            `json:"cache_hits"`
	CacheMisses   int64            `json:"cache_misses"`
	CacheBytes    int64            `json:"cache_bytes_written"`
	Requests      int64            `json:"requests"`
	RequestErrors int64            `json:"request_errors"`
	Routes        map[string]int64 `json:"routes"`
}

// NewCounters creates zeroed counters.
func NewCounters() *Counters {
	return &Counters{snap: Snapshot{Routes: map[string]int64{}}}
}

// Snapshot returns a copy of the current counts.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snap
	s.Routes = make(map[string]int64, len(c.snap.Routes))
	for k, v := range c.snap.Routes {
		s.Routes[k] = v
	}
	return s
}

func (c *Counters) OnBuildStart(context.Context, string, string) {}

func (c *Counters) OnBuildComplete(_ context.Context, _ string, _, _ int, d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Builds++
	c.snap.BuildTime += d
	if err != nil {
		c.snap.BuildErrors++
	}
}

func (c *Counters) OnWriteComplete(_ context.Context, _ string, _ time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Writes++
	if err != nil {
		c.snap.WriteErrors++
	}
}

func (c *Counters) OnCacheHit(context.Context, string) {
	c.mu.Lock()
	c.snap.CacheHits++
	c.mu.Unlock()
}

func (c *Counters) OnCacheMiss(context.Context, string) {
	c.mu.Lock()
	c.snap.CacheMisses++
	c.mu.Unlock()
}

func (c *Counters) OnCacheSet(_ context.Context, _ string, size int) {
	c.mu.Lock()
	c.snap.CacheBytes += int64(size)
	c.mu.Unlock()
}

func (c *Counters) OnRequest(_ context.Context, method, route string, status int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Requests++
	c.snap.Routes[method+" "+route]++
	if status >= 500 {
		c.snap.RequestErrors++
	}
}

var (
	_ PipelineHooks = (*Counters)(nil)
	_ CacheHooks    = (*Counters)(nil)
	_ ServerHooks   = (*Counters)(nil)
)
