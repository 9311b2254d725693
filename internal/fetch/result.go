package fetch

import (
	"slices"
	"time"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
	"github.com/yakey01/dokterku-sub007/internal/normalize"
)

// Options tune a single Fetch.
type Options struct {
	// ForceRefresh bypasses the cache and supersedes any in-flight request for the key.
	ForceRefresh bool
	UserID       string
}

// Result is the unified outcome of a successful fetch.
type Result struct {
	Variant      domain.Variant       `json:"variant"`
	Period       string               `json:"period"`
	UserID       string               `json:"user_id,omitempty"`
	Items        []domain.UnifiedItem `json:"items"`
	Summary      domain.Summary       `json:"summary"`
	Shape        normalize.Shape      `json:"shape"`
	QualityScore int                  `json:"quality_score"`
	Quality      normalize.Quality    `json:"quality"`
	Warnings     []string             `json:"warnings,omitempty"`
	Endpoint     string               `json:"endpoint"`
	Attempts     int                  `json:"attempts"`
	FetchedAt    time.Time            `json:"fetched_at"`
	Latency      time.Duration        `json:"latency"`
	FromCache    bool                 `json:"from_cache"`
}

// SummaryResult carries the totals of a period without its items.
type SummaryResult struct {
	Variant   domain.Variant `json:"variant"`
	Period    string         `json:"period"`
	UserID    string         `json:"user_id,omitempty"`
	Summary   domain.Summary `json:"summary"`
	FromCache bool           `json:"from_cache"`
}

// Clone returns a copy whose slices can be modified freely.
func (r *Result) Clone() *Result {
	c := *r
	c.Items = slices.Clone(r.Items)
	c.Warnings = slices.Clone(r.Warnings)
	return &c
}
