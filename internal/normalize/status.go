package normalize

import (
	"strings"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

// statusBuckets maps raw backend status strings to canonical buckets.
var statusBuckets = map[string]domain.Status{
	"approved":      domain.StatusApproved,
	"disetujui":     domain.StatusApproved,
	"validated":     domain.StatusApproved,
	"divalidasi":    domain.StatusApproved,
	"tervalidasi":   domain.StatusApproved,
	"verified":      domain.StatusApproved,
	"terverifikasi": domain.StatusApproved,
	"paid":          domain.StatusApproved,
	"dibayar":       domain.StatusApproved,
	"completed":     domain.StatusApproved,
	"selesai":       domain.StatusApproved,
	"done":          domain.StatusApproved,

	"pending":     domain.StatusPending,
	"menunggu":    domain.StatusPending,
	"waiting":     domain.StatusPending,
	"submitted":   domain.StatusPending,
	"diajukan":    domain.StatusPending,
	"draft":       domain.StatusPending,
	"review":      domain.StatusPending,
	"in_review":   domain.StatusPending,
	"proses":      domain.StatusPending,
	"diproses":    domain.StatusPending,
	"in_progress": domain.StatusPending,

	"rejected":   domain.StatusRejected,
	"ditolak":    domain.StatusRejected,
	"declined":   domain.StatusRejected,
	"denied":     domain.StatusRejected,
	"cancelled":  domain.StatusRejected,
	"canceled":   domain.StatusRejected,
	"dibatalkan": domain.StatusRejected,
	"invalid":    domain.StatusRejected,
}

// MapStatus maps a raw status into a canonical bucket.
// Unrecognized values map to pending and report false.
func MapStatus(raw string) (domain.Status, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	if s, ok := statusBuckets[key]; ok {
		return s, true
	}
	return domain.StatusPending, false
}
