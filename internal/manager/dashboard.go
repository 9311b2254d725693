package manager

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/yakey01/dokterku-sub007/internal/cache"
	"github.com/yakey01/dokterku-sub007/internal/core/config"
	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

const (
	dashboardRecent = 5
	maxAchievements = 20
)

// Dashboard is the condensed view of a variant shown on dashboard screens.
type Dashboard struct {
	Variant      domain.Variant          `json:"variant"`
	Period       string                  `json:"period"`
	Summary      domain.Summary          `json:"summary"`
	Recent       []domain.UnifiedItem    `json:"recent"`
	QualityScore int                     `json:"quality_score"`
	LastUpdated  time.Time               `json:"last_updated,omitzero"`
	Error        *domain.ClassifiedError `json:"error,omitempty"`
	Achievements []domain.Achievement    `json:"achievements,omitempty"`
	BuiltAt      time.Time               `json:"built_at"`
}

func (d Dashboard) clone() Dashboard {
	d.Recent = slices.Clone(d.Recent)
	d.Achievements = slices.Clone(d.Achievements)
	if d.Error != nil {
		d.Error = d.Error.Clone()
	}
	return d
}

// dashboardEntry is a built view and the state generation it reflects.
type dashboardEntry struct {
	gen  uint64
	view Dashboard
}

func (m *Manager) subCache(namespace string) *cache.Cache {
	if m.caches == nil {
		return nil
	}
	return m.caches.Cache(namespace, m.cfg.Variant)
}

// Dashboard returns the dashboard view. A built view is kept in the dashboard cache
// and reused until the snapshot or the achievements change.
func (m *Manager) Dashboard() Dashboard {
	m.mu.RLock()
	gen, period := m.dashGen, m.snap.Period
	m.mu.RUnlock()

	key := cache.Key(m.cfg.Variant, period, m.cfg.UserID)
	c := m.subCache(config.NamespaceDashboard)
	if c != nil {
		if v, ok := c.Get(key); ok {
			if e, ok := v.(dashboardEntry); ok && e.gen == gen {
				return e.view.clone()
			}
		}
	}

	achievements := m.Achievements()

	m.mu.RLock()
	gen = m.dashGen
	view := Dashboard{
		Variant:      m.cfg.Variant,
		Period:       m.snap.Period,
		Summary:      m.snap.Summary,
		QualityScore: m.snap.Meta.QualityScore,
		LastUpdated:  m.snap.LastUpdated,
		Achievements: achievements,
		BuiltAt:      m.now(),
	}
	if m.snap.Error != nil {
		view.Error = m.snap.Error.Clone()
	}
	recent := slices.Clone(m.snap.Items)
	m.mu.RUnlock()

	slices.SortStableFunc(recent, ByDateDesc)
	view.Recent = recent[:min(len(recent), dashboardRecent)]

	if c != nil {
		c.Set(cache.Key(m.cfg.Variant, view.Period, m.cfg.UserID), dashboardEntry{gen: gen, view: view},
			cache.Options{Tags: cache.Tags(config.NamespaceDashboard, m.cfg.Variant, view.Period, m.cfg.UserID)})
	}
	return view.clone()
}

// RecordAchievement stores an unlocked achievement for the current period.
func (m *Manager) RecordAchievement(title, message string) domain.Achievement {
	a := domain.Achievement{
		ID:         uuid.NewString(),
		Title:      title,
		Message:    message,
		UnlockedAt: m.now(),
	}

	if c := m.subCache(config.NamespaceAchievement); c != nil {
		period := m.period()
		key := cache.Key(m.cfg.Variant, period, m.cfg.UserID)

		m.achMu.Lock()
		var list []domain.Achievement
		if v, ok := c.Get(key); ok {
			list, _ = v.([]domain.Achievement)
		}
		list = append(slices.Clone(list), a)
		if len(list) > maxAchievements {
			list = list[len(list)-maxAchievements:]
		}
		c.Set(key, list, cache.Options{Tags: cache.Tags(config.NamespaceAchievement, m.cfg.Variant, period, m.cfg.UserID)})
		m.achMu.Unlock()
	}

	m.mu.Lock()
	m.dashGen++
	m.mu.Unlock()
	m.log.Info("Achievement unlocked", "title", title)
	return a
}

// Achievements returns the achievements unlocked in the current period, newest first.
func (m *Manager) Achievements() []domain.Achievement {
	c := m.subCache(config.NamespaceAchievement)
	if c == nil {
		return nil
	}
	v, ok := c.Get(cache.Key(m.cfg.Variant, m.period(), m.cfg.UserID))
	if !ok {
		return nil
	}
	list, _ := v.([]domain.Achievement)
	out := slices.Clone(list)
	slices.Reverse(out)
	return out
}
