package health

import (
	"sync"
	"time"

	"github.com/yakey01/dokterku-sub007/internal/infra/transport"
	"github.com/yakey01/dokterku-sub007/internal/manager"
)

// minQualityScore is the validity score below which a variant counts as degraded.
const minQualityScore = 50

// checkInterval limits how often a report is rebuilt.
const checkInterval = 10 * time.Second

// Source is the per-variant state a Monitor inspects.
type Source interface {
	Snapshot() manager.Snapshot
	GetMetrics() manager.Metrics
}

// Monitor aggregates health status from the variant managers.
type Monitor struct {
	sources map[string]Source
	now     func() time.Time

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport map[string]VariantHealth
}

// NewMonitor creates a new health monitor over sources keyed by variant.
func NewMonitor(sources map[string]Source) *Monitor {
	return &Monitor{
		sources: sources,
		now:     time.Now,
	}
}

// CheckHealth evaluates every variant. Results are reused for checkInterval.
func (m *Monitor) CheckHealth() map[string]VariantHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && m.now().Sub(m.lastCheck) < checkInterval {
		return m.lastReport
	}

	report := make(map[string]VariantHealth, len(m.sources))
	for name, src := range m.sources {
		report[name] = evaluate(name, src)
	}

	m.lastCheck = m.now()
	m.lastReport = report
	return report
}

func evaluate(name string, src Source) VariantHealth {
	snap := src.Snapshot()
	metrics := src.GetMetrics()

	h := VariantHealth{
		Variant:      name,
		Status:       StatusHealthy,
		Items:        len(snap.Items),
		QualityScore: snap.Meta.QualityScore,
		LastUpdated:  snap.LastUpdated,
	}
	for _, ep := range metrics.Endpoints {
		if ep.Status == transport.StatusDown {
			h.EndpointsDown++
		}
	}

	switch {
	case snap.Error != nil && snap.LastUpdated.IsZero():
		// never fetched successfully
		h.Status = StatusCritical
	case snap.Error != nil:
		h.Status = StatusDegraded
	case !snap.LastUpdated.IsZero() && h.QualityScore < minQualityScore:
		h.Status = StatusDegraded
	}
	if snap.Error != nil {
		h.ErrorCategory = snap.Error.Category
		h.ErrorMessage = snap.Error.UserMessage
	}
	return h
}
