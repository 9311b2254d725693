package manager

import (
	"time"

	"github.com/yakey01/dokterku-sub007/internal/cache"
	"github.com/yakey01/dokterku-sub007/internal/infra/transport"
	"github.com/yakey01/dokterku-sub007/internal/recovery"
)

// Metrics is a point-in-time view of the data layer serving one variant.
type Metrics struct {
	Variant      string                    `json:"variant"`
	Items        int                       `json:"items"`
	QualityScore int                       `json:"quality_score"`
	LastUpdated  time.Time                 `json:"last_updated,omitzero"`
	LastLatency  time.Duration             `json:"last_latency"`
	HasError     bool                      `json:"has_error"`
	Caches       []cache.Stats             `json:"caches"`
	Errors       recovery.Stats            `json:"errors"`
	Endpoints    []transport.EndpointStats `json:"endpoints,omitempty"`
}

// GetMetrics collects cache statistics for the variant, error statistics and
// endpoint performance.
func (m *Manager) GetMetrics() Metrics {
	m.mu.RLock()
	out := Metrics{
		Variant:      string(m.cfg.Variant),
		Items:        len(m.snap.Items),
		QualityScore: m.snap.Meta.QualityScore,
		LastUpdated:  m.snap.LastUpdated,
		LastLatency:  m.snap.Meta.Latency,
		HasError:     m.snap.Error != nil,
	}
	m.mu.RUnlock()

	if m.caches != nil {
		for _, s := range m.caches.Stats() {
			if s.Variant == out.Variant {
				out.Caches = append(out.Caches, s)
			}
		}
	}
	out.Errors = m.tracker.Stats()
	if m.monitor != nil {
		out.Endpoints = m.monitor.Stats()
	}
	return out
}
