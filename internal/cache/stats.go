package cache

import "time"

// latencyWindow is the number of recent accesses kept for latency statistics.
const latencyWindow = 100

// Stats is a point in time view of a cache.
type Stats struct {
	Namespace   string        `json:"namespace"`
	Variant     string        `json:"variant,omitempty"`
	Entries     int           `json:"entries"`
	Capacity    int           `json:"capacity"`
	SizeBytes   int           `json:"size_bytes"`
	Hits        uint64        `json:"hits"`
	Misses      uint64        `json:"misses"`
	Evictions   uint64        `json:"evictions"`
	Expirations uint64        `json:"expirations"`
	HitRate     float64       `json:"hit_rate"`
	MissRate    float64       `json:"miss_rate"`
	AvgLatency  time.Duration `json:"avg_latency"`
	MinLatency  time.Duration `json:"min_latency"`
	MaxLatency  time.Duration `json:"max_latency"`
}

type counters struct {
	hits, misses, evictions, expirations uint64

	latencies []time.Duration // ring buffer
	next      int
}

func newCounters() counters {
	return counters{latencies: make([]time.Duration, 0, latencyWindow)}
}

func (c *counters) record(d time.Duration) {
	if len(c.latencies) < latencyWindow {
		c.latencies = append(c.latencies, d)
		return
	}
	c.latencies[c.next] = d
	c.next = (c.next + 1) % latencyWindow
}

func (c *Cache) observe(d time.Duration) {
	c.mu.Lock()
	c.stats.record(d)
	c.mu.Unlock()
}

// Stats returns current statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Namespace:   c.cfg.Namespace,
		Variant:     c.cfg.Variant,
		Entries:     c.order.Len(),
		Capacity:    c.cfg.Capacity,
		Hits:        c.stats.hits,
		Misses:      c.stats.misses,
		Evictions:   c.stats.evictions,
		Expirations: c.stats.expirations,
	}
	for el := c.order.Front(); el != nil; el = el.Next() {
		s.SizeBytes += el.Value.(*Entry).Size
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
		s.MissRate = float64(s.Misses) / float64(total)
	}
	if n := len(c.stats.latencies); n > 0 {
		var sum time.Duration
		s.MinLatency = c.stats.latencies[0]
		for _, d := range c.stats.latencies {
			sum += d
			s.MinLatency = min(s.MinLatency, d)
			s.MaxLatency = max(s.MaxLatency, d)
		}
		s.AvgLatency = sum / time.Duration(n)
	}
	return s
}
