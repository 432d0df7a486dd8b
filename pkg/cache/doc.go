// Package cache provides a small generic LRU map.
//
// It backs the probe cache in package media: admission policies look at
// every queued file on every cycle, and the cache keeps that cost bounded
// for large batches without holding an entry per file forever.
//
//	c := cache.NewLRU[string, int](128)
//	c.Set("a", 1)
//	v, ok := c.Get("a")
package cache
