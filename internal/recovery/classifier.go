// Package recovery classifies failures into a user facing taxonomy and tracks recent
// errors for retry and diagnostics.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

// Input describes one failure to classify. Any field may be zero.
type Input struct {
	Err     error
	Status  int
	Message string
	Context map[string]any

	// Transport marks Err as a requester failure that produced no response.
	Transport bool
}

// rule is the classification outcome of one category.
type rule struct {
	severity    domain.Severity
	retryable   bool
	maxRetries  int
	message     string
	suggestions []string
}

var rules = map[domain.ErrorCategory]rule{
	domain.CategoryNetwork: {
		severity: domain.SeverityMedium, retryable: true, maxRetries: 3,
		message: "Koneksi ke server bermasalah. Periksa koneksi internet Anda.",
		suggestions: []string{
			"Periksa koneksi internet Anda",
			"Coba lagi dalam beberapa saat",
			"Muat ulang halaman",
		},
	},
	domain.CategoryAuthentication: {
		severity: domain.SeverityHigh,
		message:  "Sesi Anda telah berakhir. Silakan login kembali.",
		suggestions: []string{
			"Login kembali ke aplikasi",
			"Hapus cache browser jika masalah berlanjut",
		},
	},
	domain.CategoryPermission: {
		severity: domain.SeverityHigh,
		message:  "Anda tidak memiliki akses ke data ini.",
		suggestions: []string{
			"Pastikan Anda login dengan akun yang benar",
			"Hubungi administrator untuk meminta akses",
		},
	},
	domain.CategoryValidation: {
		severity: domain.SeverityLow,
		message:  "Data yang diterima tidak valid.",
		suggestions: []string{
			"Periksa kembali periode yang dipilih",
			"Hubungi admin jika data tetap tidak muncul",
		},
	},
	domain.CategorySystem: {
		severity: domain.SeverityCritical, retryable: true, maxRetries: 2,
		message: "Server sedang mengalami gangguan. Silakan coba lagi nanti.",
		suggestions: []string{
			"Tunggu beberapa menit lalu coba lagi",
			"Laporkan ke tim IT jika gangguan berlanjut",
		},
	},
	domain.CategoryUnknown: {
		severity: domain.SeverityMedium, retryable: true, maxRetries: 1,
		message: "Terjadi kesalahan yang tidak terduga.",
		suggestions: []string{
			"Coba lagi",
			"Muat ulang halaman",
		},
	},
}

// statusCategories maps HTTP status codes with a fixed category.
var statusCategories = map[int]domain.ErrorCategory{
	http.StatusUnauthorized:        domain.CategoryAuthentication,
	http.StatusForbidden:           domain.CategoryPermission,
	http.StatusUnprocessableEntity: domain.CategoryValidation,
	http.StatusInternalServerError: domain.CategorySystem,
	http.StatusBadGateway:          domain.CategorySystem,
	http.StatusServiceUnavailable:  domain.CategorySystem,
	http.StatusRequestTimeout:      domain.CategoryNetwork,
	http.StatusGatewayTimeout:      domain.CategoryNetwork,
}

// messagePatterns is consulted in order when no status is known, or when a 2xx
// response carried a failure in its body.
var messagePatterns = []struct {
	category domain.ErrorCategory
	patterns []string
}{
	{domain.CategoryAuthentication, []string{
		"unauthenticated", "unauthorized", "token expired", "invalid token", "token tidak valid",
		"sesi berakhir", "session expired", "401",
	}},
	{domain.CategoryPermission, []string{
		"forbidden", "permission", "not allowed", "akses ditolak", "tidak memiliki akses", "403",
	}},
	{domain.CategoryNetwork, []string{
		"timeout", "timed out", "deadline exceeded", "connection refused", "connection reset",
		"no such host", "network", "eof", "koneksi",
	}},
	{domain.CategorySystem, []string{
		"internal server error", "bad gateway", "service unavailable", "server error",
		"500", "502", "503",
	}},
	{domain.CategoryValidation, []string{
		"validation", "validasi", "unprocessable", "invalid", "malformed", "unrecognized",
		"unknown shape", "422",
	}},
}

// Classifier turns raw failures into classified errors.
type Classifier struct {
	now   func() time.Time
	newID func() string
}

// NewClassifier creates a Classifier using the wall clock and random UUIDs.
func NewClassifier() *Classifier {
	return &Classifier{now: time.Now, newID: uuid.NewString}
}

// Classify maps a failure into the taxonomy. It never returns nil.
func (c *Classifier) Classify(in Input) *domain.ClassifiedError {
	category := categorize(in)
	r := rules[category]

	ce := &domain.ClassifiedError{
		ID:          c.newID(),
		RawMessage:  rawMessage(in),
		UserMessage: r.message,
		Category:    category,
		Severity:    r.severity,
		Retryable:   r.retryable,
		MaxRetries:  r.maxRetries,
		HTTPStatus:  in.Status,
		Suggestions: append([]string(nil), r.suggestions...),
		Timestamp:   c.now(),
		Context:     make(map[string]any, len(in.Context)+1),
	}
	for k, v := range in.Context {
		ce.Context[k] = v
	}
	if in.Status > 0 {
		ce.Context["status"] = in.Status
	}
	return ce.WithCause(in.Err)
}

func categorize(in Input) domain.ErrorCategory {
	if cat, ok := statusCategories[in.Status]; ok {
		return cat
	}
	if in.Transport || isTransport(in.Err) {
		return domain.CategoryNetwork
	}
	if in.Status != 0 && !successStatus(in.Status) {
		return domain.CategoryUnknown
	}

	text := strings.ToLower(in.Message)
	if in.Err != nil {
		text += " " + strings.ToLower(in.Err.Error())
	}
	if strings.TrimSpace(text) != "" {
		for _, p := range messagePatterns {
			for _, pat := range p.patterns {
				if strings.Contains(text, pat) {
					return p.category
				}
			}
		}
	}

	if in.Status == 0 {
		// no response at all
		return domain.CategoryNetwork
	}
	return domain.CategoryUnknown
}

func successStatus(status int) bool {
	return status >= 200 && status < 300
}

func isTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func rawMessage(in Input) string {
	switch {
	case in.Message != "":
		return in.Message
	case in.Err != nil:
		return in.Err.Error()
	case in.Status > 0:
		return fmt.Sprintf("http status %d", in.Status)
	default:
		return "unknown failure"
	}
}

// UserMessage returns the canonical user message of a category.
func UserMessage(category domain.ErrorCategory) string {
	return rules[category].message
}
