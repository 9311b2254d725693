package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the canonical validation bucket of a Jaspel item.
type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the canonical buckets.
func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusPending, StatusRejected:
		return true
	}
	return false
}

// UnifiedItem is one compensation entry after normalization.
type UnifiedItem struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Status      Status          `json:"status"`
	Note        string          `json:"note,omitempty"`
	Description string          `json:"description,omitempty"`
	Validator   string          `json:"validator,omitempty"`
	ValidatedAt *time.Time      `json:"validated_at,omitempty"`
	Source      string          `json:"source,omitempty"` // shape the item was decoded from
}

// DateString renders the item date as YYYY-MM-DD.
func (i UnifiedItem) DateString() string {
	return i.Date.Format(time.DateOnly)
}
