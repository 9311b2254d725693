package domain

import (
	"fmt"
	"time"
)

// ErrorCategory is the failure taxonomy used for recovery guidance.
type ErrorCategory string

const (
	CategoryNetwork        ErrorCategory = "network"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryPermission     ErrorCategory = "permission"
	CategoryValidation     ErrorCategory = "validation"
	CategorySystem         ErrorCategory = "system"
	CategoryUnknown        ErrorCategory = "unknown"
)

// Severity ranks how disruptive a failure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ClassifiedError is a normalized failure record with retry eligibility and user guidance.
type ClassifiedError struct {
	ID          string         `json:"id"`
	RawMessage  string         `json:"raw_message"`
	UserMessage string         `json:"user_message"`
	Category    ErrorCategory  `json:"category"`
	Severity    Severity       `json:"severity"`
	Retryable   bool           `json:"retryable"`
	RetryCount  int            `json:"retry_count"`
	MaxRetries  int            `json:"max_retries"`
	HTTPStatus  int            `json:"http_status,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Context     map[string]any `json:"context,omitempty"`

	cause error
}

func (e *ClassifiedError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s error (http %d): %s", e.Category, e.HTTPStatus, e.RawMessage)
	}
	return fmt.Sprintf("%s error: %s", e.Category, e.RawMessage)
}

func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// WithCause attaches the underlying error.
func (e *ClassifiedError) WithCause(err error) *ClassifiedError {
	e.cause = err
	return e
}

// CanRetry reports whether another retry attempt is allowed.
func (e *ClassifiedError) CanRetry() bool {
	return e.Retryable && e.RetryCount < e.MaxRetries
}

// Clone returns a copy that does not share the context map.
func (e *ClassifiedError) Clone() *ClassifiedError {
	c := *e
	if e.Context != nil {
		c.Context = make(map[string]any, len(e.Context))
		for k, v := range e.Context {
			c.Context[k] = v
		}
	}
	c.Suggestions = append([]string(nil), e.Suggestions...)
	return &c
}
