package live

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

func TestNotifier_KeepsLastFive(t *testing.T) {
	n := NewNotifier(0, 0)
	for _, title := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		n.Notify(domain.NotificationInfo, domain.VariantDokter, title, "")
	}

	active := n.Active()
	require.Len(t, active, 5)
	assert.Equal(t, "g", active[0].Title)
	assert.Equal(t, "c", active[4].Title)
}

func TestNotifier_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n := NewNotifier(5, 10*time.Second)
	n.now = func() time.Time { return now }

	first := n.Notify(domain.NotificationDataChanged, domain.VariantDokter, "first", "")
	assert.Equal(t, now.Add(10*time.Second), first.ExpiresAt)

	now = now.Add(6 * time.Second)
	n.Notify(domain.NotificationAchievement, domain.VariantDokter, "second", "")

	now = now.Add(5 * time.Second) // first is 11s old
	active := n.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "second", active[0].Title)

	now = now.Add(5 * time.Second)
	assert.Empty(t, n.Active())
}

func TestNotifier_SubscribeAndDismiss(t *testing.T) {
	n := NewNotifier(5, time.Minute)

	var mu sync.Mutex
	var got []string
	unsubscribe := n.Subscribe(func(note domain.Notification) {
		mu.Lock()
		got = append(got, note.Title)
		mu.Unlock()
	})

	a := n.Notify(domain.NotificationInfo, domain.VariantParamedis, "one", "")
	unsubscribe()
	unsubscribe()
	n.Notify(domain.NotificationInfo, domain.VariantParamedis, "two", "")

	mu.Lock()
	assert.Equal(t, []string{"one"}, got)
	mu.Unlock()

	assert.True(t, n.Dismiss(a.ID))
	assert.False(t, n.Dismiss(a.ID))
	require.Len(t, n.Active(), 1)
	assert.NotEmpty(t, n.Active()[0].ID)
}
