package live

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
	"github.com/yakey01/dokterku-sub007/internal/infra/push"
	"github.com/yakey01/dokterku-sub007/internal/recovery"
)

const waitFor = 2 * time.Second

func fastBackoff(maxAttempts int) *recovery.ExponentialBackoff {
	return &recovery.ExponentialBackoff{
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		MaxAttempts:  maxAttempts,
	}
}

func newTestCoordinator(t *testing.T, sub push.Subscriber, refetch Refetch) (*Coordinator, *Notifier) {
	t.Helper()
	n := NewNotifier(5, time.Minute)
	c := NewCoordinator(CoordinatorConfig{
		Variant: domain.VariantDokter,
		UserID:  "42",
		Backoff: fastBackoff(0),
	}, sub, refetch, n)
	t.Cleanup(c.Stop)
	return c, n
}

func TestCoordinator_DataEventRefetchesAndNotifies(t *testing.T) {
	hub := push.NewMemoryHub()
	var refetches atomic.Int32
	c, n := newTestCoordinator(t, hub, func(context.Context) error {
		refetches.Add(1)
		return nil
	})

	assert.Equal(t, StateIdle, c.State())
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)
	require.Eventually(t, func() bool { return c.State() == StateWaiting }, waitFor, time.Millisecond)
	assert.Equal(t, "jaspel.dokter.42", c.Channel())

	require.NoError(t, hub.Publish(context.Background(), c.Channel(), push.EventJaspelUpdated, nil))
	require.Eventually(t, func() bool { return refetches.Load() == 1 }, waitFor, time.Millisecond)
	require.Eventually(t, func() bool { return len(n.Active()) == 1 }, waitFor, time.Millisecond)

	note := n.Active()[0]
	assert.Equal(t, domain.NotificationDataChanged, note.Kind)
	assert.Equal(t, domain.VariantDokter, note.Variant)
	require.Eventually(t, func() bool { return c.State() == StateWaiting }, waitFor, time.Millisecond)
}

func TestCoordinator_AchievementNotifiesOnly(t *testing.T) {
	hub := push.NewMemoryHub()
	var refetches atomic.Int32
	c, n := newTestCoordinator(t, hub, func(context.Context) error {
		refetches.Add(1)
		return nil
	})
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return c.State() == StateWaiting }, waitFor, time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), c.Channel(), push.EventAchievementUnlocked,
		map[string]string{"title": "Jaga 10 hari berturut-turut"}))
	require.Eventually(t, func() bool { return len(n.Active()) == 1 }, waitFor, time.Millisecond)

	note := n.Active()[0]
	assert.Equal(t, domain.NotificationAchievement, note.Kind)
	assert.Equal(t, "Jaga 10 hari berturut-turut", note.Title)
	assert.Equal(t, int32(0), refetches.Load())
}

func TestCoordinator_FailedRefetchRaisesNoNotification(t *testing.T) {
	hub := push.NewMemoryHub()
	var refetches atomic.Int32
	c, n := newTestCoordinator(t, hub, func(context.Context) error {
		refetches.Add(1)
		return errors.New("backend down")
	})
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return c.State() == StateWaiting }, waitFor, time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), c.Channel(), push.EventJaspelValidated, nil))
	require.Eventually(t, func() bool { return refetches.Load() == 1 }, waitFor, time.Millisecond)
	require.Eventually(t, func() bool { return c.State() == StateWaiting }, waitFor, time.Millisecond)
	assert.Empty(t, n.Active())
}

func TestCoordinator_ReconnectsAfterDrop(t *testing.T) {
	hub := push.NewMemoryHub()
	c, _ := newTestCoordinator(t, hub, func(context.Context) error { return nil })
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return hub.Subscribers(c.Channel()) == 1 }, waitFor, time.Millisecond)

	hub.Drop(c.Channel(), errors.New("connection reset"))

	// a fresh subscription resets the attempt counter
	require.Eventually(t, func() bool {
		return hub.Subscribers(c.Channel()) == 1 && c.State() == StateWaiting && c.Attempts() == 0
	}, waitFor, time.Millisecond)
}

// failingSubscriber always refuses to subscribe.
type failingSubscriber struct {
	calls atomic.Int32
}

func (f *failingSubscriber) Subscribe(context.Context, string) (push.Subscription, error) {
	f.calls.Add(1)
	return nil, errors.New("dial tcp: connection refused")
}

func TestCoordinator_GivesUpAfterMaxAttempts(t *testing.T) {
	sub := &failingSubscriber{}
	c := NewCoordinator(CoordinatorConfig{
		Variant: domain.VariantParamedis,
		UserID:  "1",
		Backoff: fastBackoff(2),
	}, sub, func(context.Context) error { return nil }, nil)
	t.Cleanup(c.Stop)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return c.State() == StateFailed }, waitFor, time.Millisecond)
	assert.Equal(t, int32(3), sub.calls.Load())
	assert.Equal(t, 3, c.Attempts())
}

func TestCoordinator_StopUnsubscribes(t *testing.T) {
	hub := push.NewMemoryHub()
	var refetches atomic.Int32
	c, _ := newTestCoordinator(t, hub, func(context.Context) error {
		refetches.Add(1)
		return nil
	})
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return hub.Subscribers(c.Channel()) == 1 }, waitFor, time.Millisecond)

	c.Stop()
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, hub.Subscribers(c.Channel()))

	require.NoError(t, hub.Publish(context.Background(), c.Channel(), push.EventJaspelUpdated, nil))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), refetches.Load())

	// a stopped coordinator can be started again
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return c.State() == StateWaiting }, waitFor, time.Millisecond)
}

func TestCoordinator_AchievementReachesHook(t *testing.T) {
	hub := push.NewMemoryHub()
	got := make(chan [2]string, 1)
	c := NewCoordinator(CoordinatorConfig{
		Variant: domain.VariantDokter,
		UserID:  "42",
		Backoff: fastBackoff(0),
		OnAchievement: func(title, message string) {
			got <- [2]string{title, message}
		},
	}, hub, func(context.Context) error { return nil }, nil)
	t.Cleanup(c.Stop)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return c.State() == StateWaiting }, waitFor, time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), c.Channel(), push.EventAchievementUnlocked,
		map[string]string{"title": "Jaga 10 kali"}))

	select {
	case pair := <-got:
		assert.Equal(t, "Jaga 10 kali", pair[0])
		assert.Equal(t, "Anda membuka pencapaian baru.", pair[1])
	case <-time.After(waitFor):
		t.Fatal("achievement hook was not called")
	}
}
