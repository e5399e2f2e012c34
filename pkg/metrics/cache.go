package metrics

import "sync/atomic"

// CacheMetric tracks hit/miss counts for a named cache.
// All methods are thread-safe using atomic operations.
type CacheMetric struct {
	name   string
	hits   int64
	misses int64
}

// newCacheMetric creates a new cache metric with the given name.
func newCacheMetric(name string) *CacheMetric {
	return &CacheMetric{name: name}
}

// Hit records a cache hit.
func (m *CacheMetric) Hit() {
	if !enabled {
		return
	}
	atomic.AddInt64(&m.hits, 1)
}

// Miss records a cache miss.
func (m *CacheMetric) Miss() {
	if !enabled {
		return
	}
	atomic.AddInt64(&m.misses, 1)
}

// Name returns the metric name.
func (m *CacheMetric) Name() string {
	return m.name
}

// Hits returns the number of recorded hits.
func (m *CacheMetric) Hits() int64 {
	return atomic.LoadInt64(&m.hits)
}

// Misses returns the number of recorded misses.
func (m *CacheMetric) Misses() int64 {
	return atomic.LoadInt64(&m.misses)
}

// HitRate returns hits/(hits+misses), or 0 if nothing was recorded.
func (m *CacheMetric) HitRate() float64 {
	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Stats returns all cache statistics at once.
func (m *CacheMetric) Stats() CacheStats {
	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	return CacheStats{
		Name:    m.name,
		Hits:    hits,
		Misses:  misses,
		HitRate: rate,
	}
}

// Reset clears all recorded counts.
func (m *CacheMetric) Reset() {
	atomic.StoreInt64(&m.hits, 0)
	atomic.StoreInt64(&m.misses, 0)
}

// CacheStats holds a snapshot of cache statistics.
type CacheStats struct {
	Name    string  `json:"name"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Global cache metrics.
var (
	ChildCache = newCacheMetric("child_cache")
)

// AllCacheMetrics returns all registered cache metrics.
func AllCacheMetrics() []*CacheMetric {
	return []*CacheMetric{
		ChildCache,
	}
}

// AllCacheStats returns stats for all cache metrics with recorded data.
func AllCacheStats() []CacheStats {
	metrics := AllCacheMetrics()
	stats := make([]CacheStats, 0, len(metrics))
	for _, m := range metrics {
		if m.Hits() > 0 || m.Misses() > 0 {
			stats = append(stats, m.Stats())
		}
	}
	return stats
}
