package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

func TestTracker_BoundedHistory(t *testing.T) {
	tr := NewTracker(nil, 3)
	var ids []string
	for i := range 5 {
		e := tr.Classify(Input{Status: 500, Message: fmt.Sprintf("boom %d", i)})
		ids = append(ids, e.ID)
	}

	recent := tr.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "boom 4", recent[0].RawMessage)
	assert.Equal(t, "boom 2", recent[2].RawMessage)

	_, ok := tr.Get(ids[0])
	assert.False(t, ok, "oldest error should have been dropped")

	s := tr.Stats()
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.Current)
	assert.Equal(t, 5, s.ByCategory[domain.CategorySystem])
	assert.Equal(t, 5, s.BySeverity[domain.SeverityCritical])
	assert.Equal(t, 3, s.Retryable)
}

func TestTracker_DismissAndClear(t *testing.T) {
	tr := NewTracker(nil, 0)
	a := tr.Classify(Input{Status: 401})
	tr.Classify(Input{Status: 403})

	assert.True(t, tr.Dismiss(a.ID))
	assert.False(t, tr.Dismiss(a.ID))
	assert.Len(t, tr.Recent(), 1)

	tr.Clear()
	assert.Empty(t, tr.Recent())
	_, ok := tr.Latest()
	assert.False(t, ok)
	assert.Equal(t, 2, tr.Stats().Total)
}

func TestTracker_RecentCount(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewClassifier()
	tr := NewTracker(c, 10)
	tr.now = func() time.Time { return now }

	for _, age := range []time.Duration{10 * time.Minute, 2 * time.Minute, 30 * time.Second} {
		c.now = func() time.Time { return now.Add(-age) }
		tr.Classify(Input{Status: 0})
	}

	assert.Equal(t, 2, tr.RecentCount(5*time.Minute))
	assert.Equal(t, 3, tr.RecentCount(time.Hour))
}

func TestTracker_RetryRejections(t *testing.T) {
	tr := NewTracker(nil, 10)
	called := false
	fn := func(context.Context) error { called = true; return nil }

	assert.ErrorIs(t, tr.Retry(context.Background(), "missing", fn), ErrNotFound)

	auth := tr.Classify(Input{Status: 401})
	assert.ErrorIs(t, tr.Retry(context.Background(), auth.ID, fn), ErrNotRetryable)
	assert.False(t, called)
}

func TestTracker_RetrySuccessDismisses(t *testing.T) {
	tr := NewTracker(nil, 10)
	e := tr.Classify(Input{Status: 503})

	err := tr.Retry(context.Background(), e.ID, func(context.Context) error { return nil })
	require.NoError(t, err)
	_, ok := tr.Get(e.ID)
	assert.False(t, ok)
}

func TestTracker_RetryRenewedFailureInheritsCount(t *testing.T) {
	tr := NewTracker(nil, 10)
	orig := tr.Classify(Input{Status: 500})
	failing := func(context.Context) error { return errors.New("internal server error again") }

	err := tr.Retry(context.Background(), orig.ID, failing)
	var renewed *domain.ClassifiedError
	require.ErrorAs(t, err, &renewed)
	assert.NotEqual(t, orig.ID, renewed.ID)
	assert.Equal(t, orig.ID, renewed.Context["original_error_id"])
	assert.Equal(t, 1, renewed.RetryCount)
	assert.Equal(t, domain.CategorySystem, renewed.Category)

	stored, ok := tr.Get(orig.ID)
	require.True(t, ok)
	assert.Equal(t, 1, stored.RetryCount)

	// second retry consumes the budget of two
	require.Error(t, tr.Retry(context.Background(), orig.ID, failing))
	assert.ErrorIs(t, tr.Retry(context.Background(), orig.ID, failing), ErrRetriesExhausted)

	latest, ok := tr.Latest()
	require.True(t, ok)
	assert.Equal(t, 2, latest.RetryCount)
}

func TestTracker_RetryKeepsClassifiedFailure(t *testing.T) {
	tr := NewTracker(nil, 10)
	orig := tr.Classify(Input{Status: 0})
	classified := NewClassifier().Classify(Input{Status: 401})

	err := tr.Retry(context.Background(), orig.ID, func(context.Context) error { return classified })
	var renewed *domain.ClassifiedError
	require.ErrorAs(t, err, &renewed)
	assert.Equal(t, domain.CategoryAuthentication, renewed.Category)
	assert.NotEqual(t, classified.ID, renewed.ID)
	assert.Equal(t, 1, renewed.RetryCount)
}

func TestTracker_RetryAnnotatesFailureRecordedByFn(t *testing.T) {
	tr := NewTracker(nil, 10)
	orig := tr.Classify(Input{Status: 503})

	var inner *domain.ClassifiedError
	err := tr.Retry(context.Background(), orig.ID, func(context.Context) error {
		inner = tr.Classify(Input{Status: 502})
		return inner
	})
	var renewed *domain.ClassifiedError
	require.ErrorAs(t, err, &renewed)
	assert.Equal(t, inner.ID, renewed.ID)
	assert.Equal(t, orig.ID, renewed.Context["original_error_id"])
	assert.Equal(t, 1, renewed.RetryCount)

	assert.Len(t, tr.Recent(), 2)
	assert.Equal(t, 2, tr.Stats().Total)
	stored, ok := tr.Get(inner.ID)
	require.True(t, ok)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, 0, inner.RetryCount, "caller copies are not mutated")
}

func TestTracker_RetryCanceledIsNotRecorded(t *testing.T) {
	tr := NewTracker(nil, 10)
	orig := tr.Classify(Input{Status: 500})

	err := tr.Retry(context.Background(), orig.ID, func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, tr.Recent(), 1)
}
