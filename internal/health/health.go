// Package health reports the state of the Jaspel data layer over HTTP.
package health

import (
	"time"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

// SystemStatus represents the overall health state of the service or a variant.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// VariantHealth contains health details of one variant's data.
type VariantHealth struct {
	Variant       string               `json:"variant"`
	Status        SystemStatus         `json:"status"`
	Items         int                  `json:"items"`
	QualityScore  int                  `json:"quality_score"`
	LastUpdated   time.Time            `json:"last_updated,omitzero"`
	ErrorCategory domain.ErrorCategory `json:"error_category,omitempty"`
	ErrorMessage  string               `json:"error_message,omitempty"`
	EndpointsDown int                  `json:"endpoints_down"`
}

// Report contains the full health report.
type Report struct {
	SystemStatus SystemStatus             `json:"system_status"`
	Variants     map[string]VariantHealth `json:"variants"`
}

// Aggregate derives the system status: critical when every variant has a current
// error, otherwise degraded when any variant is not healthy.
func Aggregate(variants map[string]VariantHealth) SystemStatus {
	if len(variants) == 0 {
		return StatusHealthy
	}
	status := StatusHealthy
	failing := 0
	for _, v := range variants {
		if v.ErrorCategory != "" {
			failing++
		}
		if v.Status != StatusHealthy {
			status = StatusDegraded
		}
	}
	if failing == len(variants) {
		return StatusCritical
	}
	return status
}
