package manager

import (
	"slices"
	"strings"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

// Predicate selects items for FilteredData.
type Predicate func(domain.UnifiedItem) bool

// Comparator orders items for SortedData. It returns a negative number when a sorts first.
type Comparator func(a, b domain.UnifiedItem) int

// ByDateDesc orders newest items first, then by ID.
func ByDateDesc(a, b domain.UnifiedItem) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// ByAmountDesc orders the largest amounts first.
func ByAmountDesc(a, b domain.UnifiedItem) int {
	return b.Amount.Cmp(a.Amount)
}

// WithStatus selects items in any of statuses.
func WithStatus(statuses ...domain.Status) Predicate {
	return func(it domain.UnifiedItem) bool {
		return slices.Contains(statuses, it.Status)
	}
}

// viewKey identifies the inputs a derived view was computed from.
type viewKey struct {
	data   uint64
	filter uint64
	sort   uint64
}

// memo caches one derived view.
type memo struct {
	valid bool
	key   viewKey
	items []domain.UnifiedItem
}

func (c *memo) get(key viewKey) ([]domain.UnifiedItem, bool) {
	if !c.valid || c.key != key {
		return nil, false
	}
	return c.items, true
}

func (c *memo) put(key viewKey, items []domain.UnifiedItem) {
	*c = memo{valid: true, key: key, items: items}
}

type views struct {
	filter        Predicate
	filterVersion uint64
	sort          Comparator
	sortVersion   uint64

	filtered memo
	sorted   memo

	computes int // derived view recomputations, for tests
}

func (v *views) init() {
	v.sort = ByDateDesc
}

// SetFilter replaces the predicate used by FilteredData. nil selects every item.
func (m *Manager) SetFilter(p Predicate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views.filter = p
	m.views.filterVersion++
}

// SetSort replaces the comparator used by SortedData. nil restores ByDateDesc.
func (m *Manager) SetSort(c Comparator) {
	if c == nil {
		c = ByDateDesc
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views.sort = c
	m.views.sortVersion++
}

// FilteredData returns the items selected by the current filter. The result is
// recomputed only when the data or the filter changed.
func (m *Manager) FilteredData() []domain.UnifiedItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.filteredLocked())
}

// SortedData returns the filtered items ordered by the current comparator.
func (m *Manager) SortedData() []domain.UnifiedItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := &m.views
	key := viewKey{data: m.version, filter: v.filterVersion, sort: v.sortVersion}
	if items, ok := v.sorted.get(key); ok {
		return slices.Clone(items)
	}
	items := slices.Clone(m.filteredLocked())
	slices.SortStableFunc(items, v.sort)
	v.sorted.put(key, items)
	v.computes++
	return slices.Clone(items)
}

func (m *Manager) filteredLocked() []domain.UnifiedItem {
	v := &m.views
	key := viewKey{data: m.version, filter: v.filterVersion}
	if items, ok := v.filtered.get(key); ok {
		return items
	}
	var items []domain.UnifiedItem
	if v.filter == nil {
		items = slices.Clone(m.snap.Items)
	} else {
		items = make([]domain.UnifiedItem, 0, len(m.snap.Items))
		for _, it := range m.snap.Items {
			if v.filter(it) {
				items = append(items, it)
			}
		}
	}
	v.filtered.put(key, items)
	v.computes++
	return items
}
