// Package dedupe provides idempotency tracking for ingress events.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen event IDs so duplicate deliveries across transports
// collapse into a single application.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen set. Used when an event was
	// marked seen but could not be handed off (e.g. queue backpressure),
	// so a redelivery can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// cache implements Deduper with a bounded map plus a FIFO eviction ring.
// With maxSize <= 0 the cache is unbounded.
type cache struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // insertion order, oldest first; unused when unbounded
	maxSize int
	size    atomic.Int64
}

const defaultMaxSize = 50000

// New creates a deduper with the given options.
func New(opts ...Option) Deduper {
	c := &cache{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(c)
	}
	c.seen = make(map[string]struct{})
	if c.maxSize > 0 {
		c.order = make([]string, 0, c.maxSize)
	}
	return c
}

func (c *cache) SeenAndRecord(_ context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return true
	}

	if c.maxSize > 0 && len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	c.seen[id] = struct{}{}
	if c.maxSize > 0 {
		c.order = append(c.order, id)
	}
	c.size.Add(1)
	return false
}

func (c *cache) Unrecord(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; !ok {
		return
	}
	delete(c.seen, id)
	c.size.Add(-1)
	// The stale entry in the order ring is skipped at eviction time.
}

// evictOldest removes the oldest still-live entry. Must hold c.mu.
func (c *cache) evictOldest() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.seen[oldest]; ok {
			delete(c.seen, oldest)
			c.size.Add(-1)
			return
		}
	}
}

func (c *cache) Size() int64 {
	return c.size.Load()
}
