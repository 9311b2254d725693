// Package live keeps Jaspel data current through push events and periodic refresh.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
	"github.com/yakey01/dokterku-sub007/internal/infra/push"
	"github.com/yakey01/dokterku-sub007/internal/metrics"
	"github.com/yakey01/dokterku-sub007/internal/recovery"
)

// State is the coordinator lifecycle state.
type State string

const (
	StateIdle       State = "idle"       // not started or stopped
	StateWaiting    State = "waiting"    // subscribed, waiting for events
	StateInFlight   State = "inFlight"   // re-fetch running
	StateBackingOff State = "backingOff" // reconnect timer pending
	StateFailed     State = "failed"     // reconnect attempts exhausted
)

// ErrAlreadyStarted is returned by Start on a running coordinator.
var ErrAlreadyStarted = errors.New("coordinator already started")

// Refetch forces a fresh fetch of the coordinator's data.
type Refetch func(ctx context.Context) error

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Variant domain.Variant
	UserID  string
	Backoff *recovery.ExponentialBackoff // reconnect delays; MaxAttempts 0 retries forever

	// OnAchievement, when set, receives every unlocked achievement.
	OnAchievement func(title, message string)
}

// Coordinator subscribes to the variant's push channel, re-fetches on data changes and
// raises notifications. Lost connections are re-established with exponential backoff.
type Coordinator struct {
	cfg        CoordinatorConfig
	channel    string
	subscriber push.Subscriber
	refetch    Refetch
	notifier   *Notifier
	log        *slog.Logger

	mu       sync.Mutex
	state    State
	attempts int
	cancel   context.CancelFunc
	done     chan struct{}
	sub      push.Subscription
}

// NewCoordinator creates an idle Coordinator.
func NewCoordinator(cfg CoordinatorConfig, subscriber push.Subscriber, refetch Refetch, notifier *Notifier) *Coordinator {
	if cfg.Backoff == nil {
		cfg.Backoff = recovery.DefaultBackoff()
	}
	if notifier == nil {
		notifier = NewNotifier(0, 0)
	}
	return &Coordinator{
		cfg:        cfg,
		channel:    push.Channel(string(cfg.Variant), cfg.UserID),
		subscriber: subscriber,
		refetch:    refetch,
		notifier:   notifier,
		log:        slog.Default().With("component", "live", "variant", cfg.Variant),
		state:      StateIdle,
	}
}

// Channel returns the subscribed channel name.
func (c *Coordinator) Channel() string { return c.channel }

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the consecutive failed connection attempts.
func (c *Coordinator) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Start begins the subscription loop in the background.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.attempts = 0
	go c.loop(ctx, c.done)
	return nil
}

// Stop unsubscribes, cancels any pending reconnect and waits for the loop to exit.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel, done, sub := c.cancel, c.done, c.sub
	c.cancel, c.sub = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if sub != nil {
		_ = sub.Unsubscribe()
	}
	<-done

	c.setState(StateIdle)
	c.log.Info("Live updates stopped", "channel", c.channel)
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.log.Debug("Live state changed", "from", prev, "to", s)
	}
}

func (c *Coordinator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}

		sub, err := c.subscriber.Subscribe(ctx, c.channel)
		if err == nil {
			c.mu.Lock()
			c.sub = sub
			c.mu.Unlock()

			err = c.consume(ctx, sub)

			c.mu.Lock()
			c.sub = nil
			c.mu.Unlock()
			_ = sub.Unsubscribe()
		}
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		if !c.cfg.Backoff.ShouldRetry(errRetryable, attempt-1) {
			c.setState(StateFailed)
			c.log.Error("Live updates gave up", "channel", c.channel, "attempts", attempt, "error", err)
			return
		}

		delay := c.cfg.Backoff.GetDelay(attempt - 1)
		c.setState(StateBackingOff)
		metrics.LiveReconnectsTotal.WithLabelValues(string(c.cfg.Variant)).Inc()
		c.log.Warn("Live connection lost, reconnecting",
			"channel", c.channel,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// errRetryable marks connection failures for the backoff attempt budget.
var errRetryable = errors.New("push connection lost")

// consume handles messages until the subscription ends and returns why it ended.
func (c *Coordinator) consume(ctx context.Context, sub push.Subscription) error {
	msgs := sub.Messages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errRetryable
			}
			switch msg.Kind {
			case push.KindConnected:
				c.mu.Lock()
				c.attempts = 0
				c.mu.Unlock()
				c.setState(StateWaiting)
				c.log.Info("Live updates connected", "channel", c.channel)
			case push.KindDisconnected:
				if msg.Err != nil {
					return msg.Err
				}
				return errRetryable
			case push.KindEvent:
				c.handle(ctx, msg)
			}
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, msg push.Message) {
	metrics.LiveEventsTotal.WithLabelValues(string(c.cfg.Variant), msg.Event).Inc()

	switch msg.Event {
	case push.EventJaspelUpdated, push.EventJaspelValidated:
		c.setState(StateInFlight)
		if err := c.refetch(ctx); err != nil {
			c.log.Warn("Re-fetch after live update failed", "event", msg.Event, "error", err)
		} else {
			title, message := dataChangedText(msg.Event)
			c.notifier.Notify(domain.NotificationDataChanged, c.cfg.Variant, title, message)
		}
		if ctx.Err() == nil {
			c.setState(StateWaiting)
		}

	case push.EventAchievementUnlocked:
		title, message := achievementText(msg.Data)
		if c.cfg.OnAchievement != nil {
			c.cfg.OnAchievement(title, message)
		}
		c.notifier.Notify(domain.NotificationAchievement, c.cfg.Variant, title, message)

	default:
		c.log.Debug("Ignoring live event", "event", msg.Event)
	}
}

func dataChangedText(event string) (string, string) {
	if event == push.EventJaspelValidated {
		return "Jaspel divalidasi", "Data Jaspel Anda telah divalidasi."
	}
	return "Jaspel diperbarui", "Data Jaspel Anda telah diperbarui."
}

func achievementText(data json.RawMessage) (string, string) {
	var payload struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &payload)
	if payload.Title == "" {
		payload.Title = "Pencapaian baru!"
	}
	if payload.Message == "" {
		payload.Message = "Anda membuka pencapaian baru."
	}
	return payload.Title, payload.Message
}
