package recovery

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Delay(t *testing.T) {
	strategy := DefaultBackoff()

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, strategy.GetDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestBackoff_ShouldRetry(t *testing.T) {
	strategy := &ExponentialBackoff{InitialDelay: time.Second, MaxDelay: time.Minute, MaxAttempts: 2}
	c := NewClassifier()

	assert.True(t, strategy.ShouldRetry(errors.New("flaky"), 0))
	assert.False(t, strategy.ShouldRetry(errors.New("flaky"), 2))
	assert.True(t, strategy.ShouldRetry(c.Classify(Input{Status: 503}), 1))
	assert.False(t, strategy.ShouldRetry(c.Classify(Input{Status: 401}), 0))
	assert.False(t, strategy.ShouldRetry(nil, 0))

	unlimited := DefaultBackoff()
	assert.True(t, unlimited.ShouldRetry(errors.New("flaky"), 1000))
}
