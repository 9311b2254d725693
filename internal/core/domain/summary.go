package domain

import "github.com/shopspring/decimal"

// Summary aggregates items by status bucket.
type Summary struct {
	Total    decimal.Decimal `json:"total"`
	Approved decimal.Decimal `json:"approved"`
	Pending  decimal.Decimal `json:"pending"`
	Rejected decimal.Decimal `json:"rejected"`

	Count         int `json:"count"`
	ApprovedCount int `json:"approved_count"`
	PendingCount  int `json:"pending_count"`
	RejectedCount int `json:"rejected_count"`
}

// Summarize computes the summary of a set of items.
// Amounts are summed with decimal arithmetic so the buckets always add up to Total.
func Summarize(items []UnifiedItem) Summary {
	s := Summary{
		Total:    decimal.Zero,
		Approved: decimal.Zero,
		Pending:  decimal.Zero,
		Rejected: decimal.Zero,
	}
	for _, it := range items {
		s.Total = s.Total.Add(it.Amount)
		s.Count++
		switch it.Status {
		case StatusApproved:
			s.Approved = s.Approved.Add(it.Amount)
			s.ApprovedCount++
		case StatusRejected:
			s.Rejected = s.Rejected.Add(it.Amount)
			s.RejectedCount++
		default:
			s.Pending = s.Pending.Add(it.Amount)
			s.PendingCount++
		}
	}
	return s
}

// Reconciles reports whether the status buckets add up to Total within tolerance.
func (s Summary) Reconciles(tolerance decimal.Decimal) bool {
	diff := s.Approved.Add(s.Pending).Add(s.Rejected).Sub(s.Total).Abs()
	return diff.LessThanOrEqual(tolerance) &&
		s.ApprovedCount+s.PendingCount+s.RejectedCount == s.Count
}
