package dedupe

// Option applies a configuration option to the cache.
type Option func(*cache)

// WithMaxSize bounds the number of IDs kept in memory. Oldest entries are
// evicted first. maxSize <= 0 disables the bound.
func WithMaxSize(maxSize int) Option {
	return func(c *cache) {
		c.maxSize = maxSize
	}
}
