package live

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/yakey01/dokterku-sub007/internal/core/config"
	"github.com/yakey01/dokterku-sub007/internal/metrics"
)

// RefreshFunc performs one refresh.
type RefreshFunc func(ctx context.Context) error

// LowPowerDetector reports whether the host wants less frequent background work.
type LowPowerDetector func() bool

// Refresher runs a refresh periodically. The interval grows by Multiplier after every
// consecutive failure up to MaxInterval, resets on success, and is stretched by
// LowPowerFactor while the detector reports low power. At most one refresh runs at a time.
type Refresher struct {
	cfg      config.RefreshConfig
	variant  string
	fn       RefreshFunc
	lowPower LowPowerDetector
	log      *slog.Logger

	mu       sync.Mutex
	failures int
	running  bool
	lastErr  error
	lastRun  time.Time
}

// NewRefresher creates a Refresher. lowPower may be nil.
func NewRefresher(cfg config.RefreshConfig, variant string, fn RefreshFunc, lowPower LowPowerDetector) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxInterval < cfg.Interval {
		cfg.MaxInterval = cfg.Interval
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.LowPowerFactor < 1 {
		cfg.LowPowerFactor = 1
	}
	if lowPower == nil {
		static := cfg.LowPower
		lowPower = func() bool { return static }
	}
	return &Refresher{
		cfg:      cfg,
		variant:  variant,
		fn:       fn,
		lowPower: lowPower,
		log:      slog.Default().With("component", "refresher", "variant", variant),
	}
}

// NextInterval computes the delay before the next refresh.
//
// Algorithm:
//   - base interval × multiplier^consecutive failures, capped at MaxInterval
//   - × LowPowerFactor while low power is reported
func (r *Refresher) NextInterval() time.Duration {
	r.mu.Lock()
	failures := r.failures
	r.mu.Unlock()

	interval := float64(r.cfg.Interval) * math.Pow(r.cfg.Multiplier, float64(failures))
	if interval > float64(r.cfg.MaxInterval) {
		interval = float64(r.cfg.MaxInterval)
	}
	if r.lowPower() {
		interval *= r.cfg.LowPowerFactor
	}

	d := time.Duration(interval)
	metrics.RefreshIntervalSeconds.WithLabelValues(r.variant).Set(d.Seconds())
	return d
}

// Tick runs one refresh unless another is in flight. It reports whether it ran.
func (r *Refresher) Tick(ctx context.Context) (bool, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		metrics.RefreshRunsTotal.WithLabelValues(r.variant, "skipped").Inc()
		return false, nil
	}
	r.running = true
	r.mu.Unlock()

	err := r.fn(ctx)

	r.mu.Lock()
	r.running = false
	r.lastErr = err
	r.lastRun = time.Now()
	if err != nil {
		r.failures++
	} else {
		r.failures = 0
	}
	failures := r.failures
	r.mu.Unlock()

	if err != nil {
		metrics.RefreshRunsTotal.WithLabelValues(r.variant, "failure").Inc()
		r.log.Warn("Auto-refresh failed", "error", err, "consecutive_failures", failures)
	} else {
		metrics.RefreshRunsTotal.WithLabelValues(r.variant, "success").Inc()
	}
	return true, err
}

// Failures returns the number of consecutive failures.
func (r *Refresher) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}

// Run refreshes on the computed interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	timer := time.NewTimer(r.NextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			_, _ = r.Tick(ctx)
			timer.Reset(r.NextInterval())
		}
	}
}

// LastRun returns when the last refresh finished and its error.
func (r *Refresher) LastRun() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun, r.lastErr
}
