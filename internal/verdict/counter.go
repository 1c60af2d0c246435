package verdict

import (
	"context"
	"sync"
	"time"
)

// Usage is the outcome of one counter hit.
type Usage struct {
	Allowed bool
	Count   int // requests inside the window after this hit
	ResetAt time.Time
}

// Counter is a sliding-window log keyed by (rule, key). Hit must check and
// record atomically; denied hits are not recorded.
type Counter interface {
	Hit(ctx context.Context, rule Rule, key string, now time.Time) (Usage, error)
}

// MemoryCounter keeps the log in process memory. It suits single-instance
// deployments and tests; use RedisCounter when several replicas share limits.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*slidingLog
}

type slidingLog struct {
	window time.Duration
	hits   []time.Time
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{entries: make(map[string]*slidingLog)}
}

func (c *MemoryCounter) Hit(ctx context.Context, rule Rule, key string, now time.Time) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}

	bucket := rule.Name + ":" + key

	c.mu.Lock()
	defer c.mu.Unlock()

	lg, ok := c.entries[bucket]
	if !ok {
		lg = &slidingLog{window: rule.Window}
		c.entries[bucket] = lg
	}
	lg.window = rule.Window
	lg.trim(now)

	if len(lg.hits) >= rule.Max {
		return Usage{Allowed: false, Count: len(lg.hits), ResetAt: lg.hits[0].Add(lg.window)}, nil
	}
	lg.hits = append(lg.hits, now)
	return Usage{Allowed: true, Count: len(lg.hits), ResetAt: lg.hits[0].Add(lg.window)}, nil
}

// Sweep drops logs with no hit inside their window and returns how many
// were removed.
func (c *MemoryCounter) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, lg := range c.entries {
		lg.trim(now)
		if len(lg.hits) == 0 {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len is the number of live buckets.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// trim removes hits at or before now-window. Hits are appended in call
// order, which is time order for a single process clock.
func (l *slidingLog) trim(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.hits) && !l.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.hits = append(l.hits[:0], l.hits[i:]...)
	}
}
