package recovery

import (
	"errors"
	"math"
	"time"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

// RetryStrategy defines how retries should be handled.
type RetryStrategy interface {
	// GetDelay returns the delay for the given attempt (0-indexed).
	GetDelay(attempt int) time.Duration

	// ShouldRetry checks if we should retry based on the error and attempt count.
	ShouldRetry(err error, attempt int) bool
}

// ExponentialBackoff doubles the delay on every attempt up to MaxDelay.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int // 0 = unlimited
}

// DefaultBackoff returns the reconnect backoff: 1s, 2s, 4s ... capped at 30s.
func DefaultBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// GetDelay calculates delay: InitialDelay * 2^attempt
func (s *ExponentialBackoff) GetDelay(attempt int) time.Duration {
	delay := float64(s.InitialDelay) * math.Pow(2, float64(attempt))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry checks the attempt budget and whether err is retryable.
func (s *ExponentialBackoff) ShouldRetry(err error, attempt int) bool {
	if s.MaxAttempts > 0 && attempt >= s.MaxAttempts {
		return false
	}
	return IsRetryable(err)
}

// IsRetryable reports whether err may be retried. Errors that were not classified are
// treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *domain.ClassifiedError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return true
}
