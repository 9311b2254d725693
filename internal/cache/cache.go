// Package cache provides the in-memory tagged TTL+LRU cache used for Jaspel data.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/yakey01/dokterku-sub007/internal/metrics"
)

const (
	// DefaultTTL applies when neither the entry nor the cache configures one.
	DefaultTTL = 5 * time.Minute
	// DefaultCapacity applies when Config.Capacity is not set.
	DefaultCapacity = 100
	// fallbackSize is the size estimate for values that cannot be JSON encoded.
	fallbackSize = 1024
)

// Options tune a single Set.
type Options struct {
	TTL  time.Duration
	Tags []string
}

// Entry is a cached value with its bookkeeping.
type Entry struct {
	Key          string
	Value        any
	StoredAt     time.Time
	TTL          time.Duration
	Tags         []string
	AccessCount  int
	LastAccessed time.Time
	Size         int
}

// Expired reports whether the entry is stale at now.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.StoredAt) > e.TTL
}

// Config configures a Cache.
type Config struct {
	Namespace string
	Variant   string
	TTL       time.Duration
	Capacity  int
	// Now overrides the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
}

// Cache is a capacity bounded, access ordered cache with per entry TTL and tag invalidation.
// It is safe for concurrent use.
type Cache struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently accessed
	tags    map[string]map[string]struct{}
	stats   counters
}

// New creates a Cache.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		cfg:     cfg,
		log:     slog.Default().With("component", "cache", "namespace", cfg.Namespace, "variant", cfg.Variant),
		entries: make(map[string]*list.Element),
		order:   list.New(),
		tags:    make(map[string]map[string]struct{}),
		stats:   newCounters(),
	}
}

// Get returns the value for key if present and fresh. Expired entries are removed.
func (c *Cache) Get(key string) (any, bool) {
	start := time.Now()
	defer func() { c.observe(time.Since(start)) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.miss()
		return nil, false
	}
	e := el.Value.(*Entry)
	now := c.cfg.Now()
	if e.Expired(now) {
		c.removeElement(el)
		c.stats.expirations++
		c.miss()
		return nil, false
	}

	e.AccessCount++
	e.LastAccessed = now
	c.order.MoveToFront(el)
	c.stats.hits++
	metrics.CacheHits.WithLabelValues(c.cfg.Namespace, c.cfg.Variant).Inc()
	return e.Value, true
}

// Peek returns the entry for key without touching access order or statistics.
func (c *Cache) Peek(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	e := *el.Value.(*Entry)
	e.Tags = append([]string(nil), e.Tags...)
	return e, true
}

// Set stores value under key. A new key stored at capacity evicts the least recently
// accessed entry first.
func (c *Cache) Set(key string, value any, opts Options) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}
	size := estimateSize(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Now()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*Entry)
		c.untag(e)
		e.Value = value
		e.StoredAt = now
		e.TTL = ttl
		e.Tags = dedupTags(opts.Tags)
		e.LastAccessed = now
		e.Size = size
		c.tag(e)
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.cfg.Capacity {
		c.evictOldest()
	}

	e := &Entry{
		Key:          key,
		Value:        value,
		StoredAt:     now,
		TTL:          ttl,
		Tags:         dedupTags(opts.Tags),
		LastAccessed: now,
		Size:         size,
	}
	c.entries[key] = c.order.PushFront(e)
	c.tag(e)
	c.gauge()
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	c.gauge()
	return true
}

// InvalidateByTag removes every entry carrying tag and returns how many were removed.
func (c *Cache) InvalidateByTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.tags[tag]
	n := 0
	for key := range keys {
		if el, ok := c.entries[key]; ok {
			c.removeElement(el)
			n++
		}
	}
	delete(c.tags, tag)
	if n > 0 {
		c.log.Debug("Invalidated entries by tag", "tag", tag, "count", n)
		c.gauge()
	}
	return n
}

// CleanupExpired removes every stale entry and returns how many were removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Now()
	n := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*Entry).Expired(now) {
			c.removeElement(el)
			c.stats.expirations++
			n++
		}
		el = prev
	}
	if n > 0 {
		c.gauge()
	}
	return n
}

// Clear removes all entries. Statistics are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.tags = make(map[string]map[string]struct{})
	c.gauge()
}

// Len returns the number of entries, stale ones included until they are swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns keys from most to least recently accessed.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*Entry).Key)
	}
	return keys
}

// Run sweeps expired entries every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.CleanupExpired(); n > 0 {
				c.log.Debug("Swept expired entries", "count", n)
			}
		}
	}
}

func (c *Cache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.removeElement(el)
	c.stats.evictions++
	metrics.CacheEvictions.WithLabelValues(c.cfg.Namespace, c.cfg.Variant).Inc()
}

func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*Entry)
	c.untag(e)
	c.order.Remove(el)
	delete(c.entries, e.Key)
}

func (c *Cache) tag(e *Entry) {
	for _, t := range e.Tags {
		keys, ok := c.tags[t]
		if !ok {
			keys = make(map[string]struct{})
			c.tags[t] = keys
		}
		keys[e.Key] = struct{}{}
	}
}

func (c *Cache) untag(e *Entry) {
	for _, t := range e.Tags {
		if keys, ok := c.tags[t]; ok {
			delete(keys, e.Key)
			if len(keys) == 0 {
				delete(c.tags, t)
			}
		}
	}
}

func (c *Cache) miss() {
	c.stats.misses++
	metrics.CacheMisses.WithLabelValues(c.cfg.Namespace, c.cfg.Variant).Inc()
}

func (c *Cache) gauge() {
	metrics.CacheEntries.WithLabelValues(c.cfg.Namespace, c.cfg.Variant).Set(float64(c.order.Len()))
}

func estimateSize(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return fallbackSize
	}
	return len(b)
}

func dedupTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
