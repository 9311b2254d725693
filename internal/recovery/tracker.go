package recovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
	"github.com/yakey01/dokterku-sub007/internal/metrics"
)

// DefaultHistorySize is the number of recent errors kept by a Tracker.
const DefaultHistorySize = 10

var (
	ErrNotFound         = errors.New("error not found in history")
	ErrNotRetryable     = errors.New("error is not retryable")
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Stats summarizes errors seen by a Tracker.
type Stats struct {
	Total      int                          `json:"total"`
	Current    int                          `json:"current"`
	Retryable  int                          `json:"retryable"`
	ByCategory map[domain.ErrorCategory]int `json:"by_category"`
	BySeverity map[domain.Severity]int      `json:"by_severity"`
}

// Tracker keeps a bounded history of classified errors, newest last.
type Tracker struct {
	classifier *Classifier
	size       int
	now        func() time.Time
	log        *slog.Logger

	mu         sync.Mutex
	history    []*domain.ClassifiedError
	total      int
	byCategory map[domain.ErrorCategory]int
	bySeverity map[domain.Severity]int
}

// NewTracker creates a Tracker keeping at most size errors.
func NewTracker(classifier *Classifier, size int) *Tracker {
	if classifier == nil {
		classifier = NewClassifier()
	}
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &Tracker{
		classifier: classifier,
		size:       size,
		now:        time.Now,
		log:        slog.Default().With("component", "error-tracker"),
		byCategory: make(map[domain.ErrorCategory]int),
		bySeverity: make(map[domain.Severity]int),
	}
}

// Classifier returns the classifier used for renewed failures.
func (t *Tracker) Classifier() *Classifier {
	return t.classifier
}

// Record appends e, dropping the oldest entry when full.
func (t *Tracker) Record(e *domain.ClassifiedError) {
	if e == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.history) >= t.size {
		t.history = t.history[1:]
	}
	t.history = append(t.history, e)
	t.total++
	t.byCategory[e.Category]++
	t.bySeverity[e.Severity]++

	metrics.ClassifiedErrorsTotal.WithLabelValues(string(e.Category), string(e.Severity)).Inc()
	t.log.Warn("Recorded error",
		"id", e.ID,
		"category", e.Category,
		"severity", e.Severity,
		"retryable", e.Retryable,
		"message", e.RawMessage,
	)
}

// Classify classifies in and records the result.
func (t *Tracker) Classify(in Input) *domain.ClassifiedError {
	e := t.classifier.Classify(in)
	t.Record(e)
	return e
}

// Recent returns copies of the history, newest first.
func (t *Tracker) Recent() []*domain.ClassifiedError {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*domain.ClassifiedError, 0, len(t.history))
	for i := len(t.history) - 1; i >= 0; i-- {
		out = append(out, t.history[i].Clone())
	}
	return out
}

// Latest returns a copy of the newest error.
func (t *Tracker) Latest() (*domain.ClassifiedError, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.history) == 0 {
		return nil, false
	}
	return t.history[len(t.history)-1].Clone(), true
}

// Get returns a copy of the error with id.
func (t *Tracker) Get(id string) (*domain.ClassifiedError, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i := t.indexOf(id); i >= 0 {
		return t.history[i].Clone(), true
	}
	return nil, false
}

// Dismiss removes the error with id and reports whether it was present.
func (t *Tracker) Dismiss(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remove(id)
}

// Clear empties the history. Lifetime totals are kept.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.history = nil
	t.mu.Unlock()
}

// Stats returns lifetime totals and the current history size.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{
		Total:      t.total,
		Current:    len(t.history),
		ByCategory: make(map[domain.ErrorCategory]int, len(t.byCategory)),
		BySeverity: make(map[domain.Severity]int, len(t.bySeverity)),
	}
	for k, v := range t.byCategory {
		s.ByCategory[k] = v
	}
	for k, v := range t.bySeverity {
		s.BySeverity[k] = v
	}
	for _, e := range t.history {
		if e.CanRetry() {
			s.Retryable++
		}
	}
	return s
}

// RecentCount returns how many kept errors happened within window.
func (t *Tracker) RecentCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-window)
	n := 0
	for _, e := range t.history {
		if !e.Timestamp.Before(cutoff) {
			n++
		}
	}
	return n
}

// Retry re-runs fn on behalf of the error with id. The error must be retryable with
// retries left. On success the error is dismissed. A renewed failure is recorded as a
// new error referencing the original through the original_error_id context key and
// carrying the incremented retry count; a copy of it is returned. When fn already
// recorded the renewed failure in this tracker, that entry is annotated instead of
// being recorded twice.
func (t *Tracker) Retry(ctx context.Context, id string, fn func(context.Context) error) error {
	t.mu.Lock()
	i := t.indexOf(id)
	if i < 0 {
		t.mu.Unlock()
		return ErrNotFound
	}
	orig := t.history[i]
	if !orig.Retryable {
		t.mu.Unlock()
		return ErrNotRetryable
	}
	if orig.RetryCount >= orig.MaxRetries {
		t.mu.Unlock()
		return ErrRetriesExhausted
	}
	// entries may be shared with callers, so they are replaced rather than mutated
	updated := orig.Clone()
	updated.RetryCount++
	t.history[i] = updated
	count := updated.RetryCount
	t.mu.Unlock()

	err := fn(ctx)
	if err == nil {
		t.Dismiss(id)
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var renewed *domain.ClassifiedError
	if errors.As(err, &renewed) {
		renewed = renewed.Clone()
	} else {
		renewed = t.classifier.Classify(Input{Err: err})
	}
	if renewed.Context == nil {
		renewed.Context = make(map[string]any)
	}
	renewed.Context["original_error_id"] = id
	renewed.RetryCount = count

	t.mu.Lock()
	if j := t.indexOf(renewed.ID); j >= 0 && renewed.ID != id && fresh(t.history[j]) {
		t.history[j] = renewed
		t.mu.Unlock()
		return renewed.Clone()
	}
	t.mu.Unlock()

	if renewed.ID == "" || renewed.ID == id || t.has(renewed.ID) {
		renewed.ID = t.classifier.newID()
	}
	t.Record(renewed)
	return renewed.Clone()
}

// fresh reports whether e was recorded straight from a failure, not by a retry.
func fresh(e *domain.ClassifiedError) bool {
	_, renewed := e.Context["original_error_id"]
	return e.RetryCount == 0 && !renewed
}

func (t *Tracker) has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.indexOf(id) >= 0
}

func (t *Tracker) indexOf(id string) int {
	for i, e := range t.history {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (t *Tracker) remove(id string) bool {
	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	t.history = append(t.history[:i], t.history[i+1:]...)
	return true
}
