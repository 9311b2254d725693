package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakey01/dokterku-sub007/internal/core/config"
	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

func storeAll(m *Manager, ns string, v domain.Variant, period, user string) {
	m.Cache(ns, v).Set(Key(v, period, user), period, Options{Tags: Tags(ns, v, period, user)})
}

func TestManager_TunesNamespacesIndependently(t *testing.T) {
	m := NewManager(config.CacheConfig{Namespaces: config.DefaultNamespaces()}, nil)

	data := m.Cache(config.NamespaceData, domain.VariantDokter).Stats()
	summary := m.Cache(config.NamespaceSummary, domain.VariantDokter).Stats()
	assert.Equal(t, 100, data.Capacity)
	assert.Equal(t, 50, summary.Capacity)

	assert.NotSame(t,
		m.Cache(config.NamespaceData, domain.VariantDokter),
		m.Cache(config.NamespaceData, domain.VariantParamedis))
	assert.Len(t, m.Stats(), 8)
}

func TestManager_InvalidateVariant(t *testing.T) {
	m := NewManager(config.CacheConfig{}, nil)

	storeAll(m, config.NamespaceData, domain.VariantDokter, "2025-01", "")
	storeAll(m, config.NamespaceSummary, domain.VariantDokter, "2025-01", "")
	storeAll(m, config.NamespaceData, domain.VariantParamedis, "2025-01", "")

	assert.Equal(t, 2, m.InvalidateVariant(domain.VariantDokter))

	_, ok := m.Cache(config.NamespaceData, domain.VariantDokter).Get(Key(domain.VariantDokter, "2025-01", ""))
	assert.False(t, ok)
	_, ok = m.Cache(config.NamespaceData, domain.VariantParamedis).Get(Key(domain.VariantParamedis, "2025-01", ""))
	assert.True(t, ok, "other variant must be untouched")
}

func TestManager_InvalidateVariantPeriodAndUser(t *testing.T) {
	m := NewManager(config.CacheConfig{}, nil)

	storeAll(m, config.NamespaceData, domain.VariantDokter, "2025-01", "7")
	storeAll(m, config.NamespaceData, domain.VariantDokter, "2025-02", "7")
	storeAll(m, config.NamespaceData, domain.VariantParamedis, "2025-01", "9")

	assert.Equal(t, 1, m.InvalidateVariantPeriod(domain.VariantDokter, "2025-01"))
	assert.Equal(t, 1, m.InvalidateUser("7"))
	assert.Equal(t, 1, m.Cache(config.NamespaceData, domain.VariantParamedis).Len())
}

func TestManager_ClearAndCleanup(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(config.CacheConfig{Namespaces: config.DefaultNamespaces()}, clock.Now)

	storeAll(m, config.NamespaceDashboard, domain.VariantDokter, "2025-01", "")   // 2m ttl
	storeAll(m, config.NamespaceAchievement, domain.VariantDokter, "2025-01", "") // 30m ttl

	clock.Advance(3 * time.Minute)
	assert.Equal(t, 1, m.CleanupExpired())

	m.Clear()
	for _, s := range m.Stats() {
		require.Equal(t, 0, s.Entries, "%s/%s", s.Namespace, s.Variant)
	}
}

func TestManager_UnknownNamespaceIsCreatedLazily(t *testing.T) {
	m := NewManager(config.CacheConfig{}, nil)
	c := m.Cache("custom", domain.VariantDokter)
	require.NotNil(t, c)
	assert.Same(t, c, m.Cache("custom", domain.VariantDokter))
	assert.Equal(t, DefaultCapacity, c.Stats().Capacity)
}
