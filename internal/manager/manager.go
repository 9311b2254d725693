// Package manager exposes one variant's Jaspel data as a snapshot with refresh,
// local mutation, derived views and retry.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/yakey01/dokterku-sub007/internal/cache"
	"github.com/yakey01/dokterku-sub007/internal/core/domain"
	"github.com/yakey01/dokterku-sub007/internal/fetch"
	"github.com/yakey01/dokterku-sub007/internal/infra/transport"
	"github.com/yakey01/dokterku-sub007/internal/live"
	"github.com/yakey01/dokterku-sub007/internal/recovery"
)

// PeriodLayout formats a billing period.
const PeriodLayout = "2006-01"

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrDuplicateItem = errors.New("item already exists")
	ErrInvalidItem   = errors.New("invalid item")
)

// Fetcher loads unified data for a variant and period.
type Fetcher interface {
	Fetch(ctx context.Context, variant domain.Variant, period string, opts fetch.Options) (*fetch.Result, error)
}

// Config scopes a Manager.
type Config struct {
	Variant domain.Variant
	Period  string // empty follows the current month
	UserID  string

	RetryBase   time.Duration // first RetryFetch delay with no recent errors
	RetryMax    time.Duration
	MaxRetries  uint64
	ErrorWindow time.Duration // window of recent errors that stretch the retry delay
}

// Deps are the shared components a Manager reads from.
type Deps struct {
	Fetcher  Fetcher
	Caches   *cache.Manager
	Tracker  *recovery.Tracker
	Monitor  *transport.Monitor
	Notifier *live.Notifier
	Now      func() time.Time
}

// Meta describes where the current snapshot came from.
type Meta struct {
	Shape        string        `json:"shape,omitempty"`
	QualityScore int           `json:"quality_score"`
	Warnings     []string      `json:"warnings,omitempty"`
	Endpoint     string        `json:"endpoint,omitempty"`
	Attempts     int           `json:"attempts,omitempty"`
	FromCache    bool          `json:"from_cache"`
	Latency      time.Duration `json:"latency"`
	Modified     bool          `json:"modified"` // changed locally since the last fetch
}

// Snapshot is the data exposed to consumers.
type Snapshot struct {
	Variant     domain.Variant          `json:"variant"`
	Period      string                  `json:"period"`
	Items       []domain.UnifiedItem    `json:"items"`
	Summary     domain.Summary          `json:"summary"`
	Error       *domain.ClassifiedError `json:"error,omitempty"`
	Loading     domain.LoadingState     `json:"loading"`
	LastUpdated time.Time               `json:"last_updated,omitzero"`
	Meta        Meta                    `json:"meta"`
}

// Manager owns the current snapshot of one variant.
type Manager struct {
	cfg      Config
	fetcher  Fetcher
	caches   *cache.Manager
	tracker  *recovery.Tracker
	monitor  *transport.Monitor
	notifier *live.Notifier
	now      func() time.Time
	log      *slog.Logger

	mu      sync.RWMutex
	snap    Snapshot
	loads   uint64 // started loads
	applied uint64 // newest load whose outcome is visible
	version uint64 // bumps on every data change
	dashGen uint64 // bumps on every visible change, including errors and achievements

	achMu sync.Mutex

	views views
}

// New creates a Manager with an empty snapshot.
func New(cfg Config, deps Deps) *Manager {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ErrorWindow <= 0 {
		cfg.ErrorWindow = 5 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Tracker == nil {
		deps.Tracker = recovery.NewTracker(nil, 0)
	}
	if deps.Notifier == nil {
		deps.Notifier = live.NewNotifier(0, 0)
	}

	m := &Manager{
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		caches:   deps.Caches,
		tracker:  deps.Tracker,
		monitor:  deps.Monitor,
		notifier: deps.Notifier,
		now:      deps.Now,
		log:      slog.Default().With("component", "manager", "variant", cfg.Variant),
	}
	m.snap = Snapshot{Variant: cfg.Variant, Period: m.period()}
	m.views.init()
	return m
}

// Variant returns the managed variant.
func (m *Manager) Variant() domain.Variant { return m.cfg.Variant }

func (m *Manager) period() string {
	if m.cfg.Period != "" {
		return m.cfg.Period
	}
	return m.now().Format(PeriodLayout)
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snap
	s.Items = slices.Clone(m.snap.Items)
	s.Meta.Warnings = slices.Clone(m.snap.Meta.Warnings)
	if m.snap.Error != nil {
		s.Error = m.snap.Error.Clone()
	}
	return s
}

// Refresh loads data, serving from cache when possible.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.load(ctx, false)
}

// ForceRefresh bypasses the cache and supersedes any fetch in flight for the same key.
func (m *Manager) ForceRefresh(ctx context.Context) error {
	return m.load(ctx, true)
}

// load fetches and publishes the outcome. A failure keeps the previous items visible
// and only sets Error.
func (m *Manager) load(ctx context.Context, force bool) error {
	period := m.period()

	m.mu.Lock()
	m.loads++
	seq := m.loads
	m.snap.Loading = domain.LoadingState{
		Key:       cache.Key(m.cfg.Variant, period, m.cfg.UserID),
		Active:    true,
		Message:   "Memuat data Jaspel...",
		Stage:     "fetch",
		StartedAt: m.now(),
	}
	m.mu.Unlock()

	res, err := m.fetcher.Fetch(ctx, m.cfg.Variant, period, fetch.Options{ForceRefresh: force, UserID: m.cfg.UserID})
	if errors.Is(err, context.Canceled) {
		m.mu.Lock()
		if seq == m.loads {
			m.snap.Loading = domain.LoadingState{}
		}
		m.mu.Unlock()
		return err
	}

	var cerr *domain.ClassifiedError
	if err != nil && !errors.As(err, &cerr) {
		cerr = m.tracker.Classify(recovery.Input{Err: err})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq == m.loads {
		m.snap.Loading = domain.LoadingState{}
	}
	if seq < m.applied {
		// a newer load already published its outcome
		return err
	}
	m.applied = seq
	m.dashGen++

	if err != nil {
		m.snap.Error = cerr.Clone()
		m.log.Warn("Refresh failed, keeping last snapshot",
			"period", period,
			"category", cerr.Category,
			"items", len(m.snap.Items),
		)
		return cerr
	}

	m.snap.Period = res.Period
	m.snap.Items = res.Items
	m.snap.Summary = res.Summary
	m.snap.Error = nil
	m.snap.LastUpdated = res.FetchedAt
	m.snap.Meta = Meta{
		Shape:        string(res.Shape),
		QualityScore: res.QualityScore,
		Warnings:     res.Warnings,
		Endpoint:     res.Endpoint,
		Attempts:     res.Attempts,
		FromCache:    res.FromCache,
		Latency:      res.Latency,
	}
	m.version++
	return nil
}

// RetryFetch force-refreshes with exponential backoff. The first delay grows with the
// number of errors tracked within ErrorWindow. Once the snapshot carries an error, each
// attempt is charged against that error's own retry budget through the tracker, and the
// renewed failure replaces it in the snapshot. Non-retryable or exhausted errors stop
// immediately.
func (m *Manager) RetryFetch(ctx context.Context) error {
	base := m.retryBase()
	b := retry.NewExponential(base)
	b = retry.WithCappedDuration(m.cfg.RetryMax, b)
	b = retry.WithMaxRetries(m.cfg.MaxRetries, b)

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := m.retryOnce(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, recovery.ErrNotRetryable) || errors.Is(err, recovery.ErrRetriesExhausted) {
			return err
		}
		if recovery.IsRetryable(err) && ctx.Err() == nil {
			m.log.Debug("Retrying fetch", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("retry fetch after %d attempts: %w", attempt, err)
	}
	return nil
}

func (m *Manager) retryOnce(ctx context.Context) error {
	m.mu.RLock()
	var cur *domain.ClassifiedError
	if m.snap.Error != nil {
		cur = m.snap.Error.Clone()
	}
	m.mu.RUnlock()

	if cur == nil {
		return m.ForceRefresh(ctx)
	}
	if _, ok := m.tracker.Get(cur.ID); !ok {
		m.tracker.Record(cur)
	}

	var loaded string
	err := m.tracker.Retry(ctx, cur.ID, func(ctx context.Context) error {
		err := m.ForceRefresh(ctx)
		var ce *domain.ClassifiedError
		if errors.As(err, &ce) {
			loaded = ce.ID
		}
		return err
	})
	if errors.Is(err, recovery.ErrNotRetryable) || errors.Is(err, recovery.ErrRetriesExhausted) {
		return fmt.Errorf("%w: %w", err, cur)
	}

	var renewed *domain.ClassifiedError
	if loaded != "" && errors.As(err, &renewed) {
		m.mu.Lock()
		if m.snap.Error != nil && m.snap.Error.ID == loaded {
			m.snap.Error = renewed.Clone()
			m.dashGen++
		}
		m.mu.Unlock()
	}
	return err
}

func (m *Manager) retryBase() time.Duration {
	recent := m.tracker.RecentCount(m.cfg.ErrorWindow)
	d := m.cfg.RetryBase * time.Duration(1+recent)
	if d > m.cfg.RetryMax {
		d = m.cfg.RetryMax
	}
	return d
}

// DismissError clears the current error and removes it from the tracker.
func (m *Manager) DismissError() {
	m.mu.Lock()
	e := m.snap.Error
	m.snap.Error = nil
	m.dashGen++
	m.mu.Unlock()

	if e != nil {
		m.tracker.Dismiss(e.ID)
	}
}

// UpdateItem applies fn to the item with id and recomputes the summary.
func (m *Manager) UpdateItem(id string, fn func(*domain.UnifiedItem)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("update %q: %w", id, ErrItemNotFound)
	}
	items := slices.Clone(m.snap.Items)
	fn(&items[i])
	items[i].ID = id
	if err := validateItem(items[i]); err != nil {
		return fmt.Errorf("update %q: %w", id, err)
	}
	m.replaceItems(items)
	return nil
}

// RemoveItem deletes the item with id and recomputes the summary.
func (m *Manager) RemoveItem(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("remove %q: %w", id, ErrItemNotFound)
	}
	m.replaceItems(slices.Delete(slices.Clone(m.snap.Items), i, i+1))
	return nil
}

// AddItem appends item and recomputes the summary.
func (m *Manager) AddItem(item domain.UnifiedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateItem(item); err != nil {
		return fmt.Errorf("add %q: %w", item.ID, err)
	}
	if m.indexOf(item.ID) >= 0 {
		return fmt.Errorf("add %q: %w", item.ID, ErrDuplicateItem)
	}
	m.replaceItems(append(slices.Clone(m.snap.Items), item))
	return nil
}

// validateItem enforces the invariants normalization guarantees for fetched items.
func validateItem(it domain.UnifiedItem) error {
	switch {
	case it.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidItem)
	case it.Amount.IsNegative():
		return fmt.Errorf("%w: negative amount %s", ErrInvalidItem, it.Amount)
	case !it.Status.Valid():
		return fmt.Errorf("%w: status %q", ErrInvalidItem, it.Status)
	}
	return nil
}

func (m *Manager) indexOf(id string) int {
	return slices.IndexFunc(m.snap.Items, func(it domain.UnifiedItem) bool { return it.ID == id })
}

func (m *Manager) replaceItems(items []domain.UnifiedItem) {
	m.snap.Items = items
	m.snap.Summary = domain.Summarize(items)
	m.snap.Meta.Modified = true
	m.version++
	m.dashGen++
}

// ClearCache drops every cached entry of the managed variant.
func (m *Manager) ClearCache() int {
	if m.caches == nil {
		return 0
	}
	n := m.caches.InvalidateVariant(m.cfg.Variant)
	m.log.Info("Cleared cache", "entries", n)
	return n
}

// SubscribeToNotifications registers handler and returns its unsubscribe function.
func (m *Manager) SubscribeToNotifications(handler func(domain.Notification)) func() {
	return m.notifier.Subscribe(handler)
}

// Notifications returns the active notifications, newest first.
func (m *Manager) Notifications() []domain.Notification {
	return m.notifier.Active()
}
