package cache

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/yakey01/dokterku-sub007/internal/core/config"
	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

type subKey struct {
	namespace string
	variant   domain.Variant
}

// Manager owns one independently tuned Cache per (namespace, variant).
type Manager struct {
	cfg config.CacheConfig
	now func() time.Time
	log *slog.Logger

	mu     sync.RWMutex
	caches map[subKey]*Cache
}

// NewManager creates sub-caches for every configured namespace and known variant.
// now may be nil.
func NewManager(cfg config.CacheConfig, now func() time.Time) *Manager {
	if len(cfg.Namespaces) == 0 {
		cfg.Namespaces = config.DefaultNamespaces()
	}
	m := &Manager{
		cfg:    cfg,
		now:    now,
		log:    slog.Default().With("component", "cache-manager"),
		caches: make(map[subKey]*Cache),
	}
	for ns := range cfg.Namespaces {
		for _, v := range domain.Variants {
			m.caches[subKey{ns, v}] = m.newCache(ns, v)
		}
	}
	return m
}

func (m *Manager) newCache(ns string, v domain.Variant) *Cache {
	tuning := m.cfg.Namespaces[ns]
	return New(Config{
		Namespace: ns,
		Variant:   string(v),
		TTL:       tuning.TTL,
		Capacity:  tuning.Capacity,
		Now:       m.now,
	})
}

// Cache returns the sub-cache for namespace and variant, creating it with default
// tuning when the namespace was not configured.
func (m *Manager) Cache(namespace string, v domain.Variant) *Cache {
	k := subKey{namespace, v}

	m.mu.RLock()
	c, ok := m.caches[k]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.caches[k]; ok {
		return c
	}
	c = m.newCache(namespace, v)
	m.caches[k] = c
	return c
}

// InvalidateVariantPeriod drops every entry of variant v for period.
func (m *Manager) InvalidateVariantPeriod(v domain.Variant, period string) int {
	n := 0
	for _, c := range m.snapshot(func(k subKey) bool { return k.variant == v }) {
		n += c.InvalidateByTag(PeriodTag(period))
	}
	m.log.Debug("Invalidated variant period", "variant", v, "period", period, "count", n)
	return n
}

// InvalidateVariant drops every entry of variant v.
func (m *Manager) InvalidateVariant(v domain.Variant) int {
	n := 0
	for _, c := range m.snapshot(func(k subKey) bool { return k.variant == v }) {
		n += c.InvalidateByTag(VariantTag(v))
	}
	m.log.Debug("Invalidated variant", "variant", v, "count", n)
	return n
}

// InvalidateUser drops every entry of userID across all sub-caches.
func (m *Manager) InvalidateUser(userID string) int {
	n := 0
	for _, c := range m.snapshot(nil) {
		n += c.InvalidateByTag(UserTag(userID))
	}
	return n
}

// Clear empties every sub-cache.
func (m *Manager) Clear() {
	for _, c := range m.snapshot(nil) {
		c.Clear()
	}
	m.log.Info("Cleared all caches")
}

// CleanupExpired sweeps every sub-cache and returns the number of removed entries.
func (m *Manager) CleanupExpired() int {
	n := 0
	for _, c := range m.snapshot(nil) {
		n += c.CleanupExpired()
	}
	return n
}

// Stats returns statistics of every sub-cache ordered by namespace then variant.
func (m *Manager) Stats() []Stats {
	caches := m.snapshot(nil)
	out := make([]Stats, 0, len(caches))
	for _, c := range caches {
		out = append(out, c.Stats())
	}
	slices.SortFunc(out, func(a, b Stats) int {
		if a.Namespace != b.Namespace {
			if a.Namespace < b.Namespace {
				return -1
			}
			return 1
		}
		if a.Variant < b.Variant {
			return -1
		}
		if a.Variant > b.Variant {
			return 1
		}
		return 0
	})
	return out
}

// Run sweeps expired entries on the configured interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanupExpired(); n > 0 {
				m.log.Debug("Swept expired entries", "count", n)
			}
		}
	}
}

func (m *Manager) snapshot(keep func(subKey) bool) []*Cache {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Cache, 0, len(m.caches))
	for k, c := range m.caches {
		if keep == nil || keep(k) {
			out = append(out, c)
		}
	}
	return out
}
