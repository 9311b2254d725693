package live

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

// Notification defaults.
const (
	DefaultNotificationKeep = 5
	DefaultNotificationTTL  = 10 * time.Second
)

// Notifier keeps the most recent notifications and fans them out to handlers.
type Notifier struct {
	keep int
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	items    []domain.Notification // oldest first
	handlers map[int]func(domain.Notification)
	nextID   int
}

// NewNotifier creates a Notifier keeping at most keep notifications for ttl each.
func NewNotifier(keep int, ttl time.Duration) *Notifier {
	if keep <= 0 {
		keep = DefaultNotificationKeep
	}
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Notifier{
		keep:     keep,
		ttl:      ttl,
		now:      time.Now,
		handlers: make(map[int]func(domain.Notification)),
	}
}

// Notify records a notification and delivers it to every handler.
func (n *Notifier) Notify(kind domain.NotificationKind, variant domain.Variant, title, message string) domain.Notification {
	now := n.now()
	note := domain.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		Variant:   variant,
		CreatedAt: now,
		ExpiresAt: now.Add(n.ttl),
	}

	n.mu.Lock()
	n.items = append(n.items, note)
	if len(n.items) > n.keep {
		n.items = n.items[len(n.items)-n.keep:]
	}
	handlers := make([]func(domain.Notification), 0, len(n.handlers))
	for _, h := range n.handlers {
		handlers = append(handlers, h)
	}
	n.mu.Unlock()

	for _, h := range handlers {
		h(note)
	}
	return note
}

// Active returns unexpired notifications, newest first. Expired ones are dropped.
func (n *Notifier) Active() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	kept := n.items[:0]
	for _, it := range n.items {
		if !it.Expired(now) {
			kept = append(kept, it)
		}
	}
	n.items = kept

	out := make([]domain.Notification, 0, len(kept))
	for i := len(kept) - 1; i >= 0; i-- {
		out = append(out, kept[i])
	}
	return out
}

// Dismiss removes the notification with id.
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, it := range n.items {
		if it.ID == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return true
		}
	}
	return false
}

// Subscribe registers handler and returns a function that removes it.
func (n *Notifier) Subscribe(handler func(domain.Notification)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.handlers[id] = handler
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.handlers, id)
			n.mu.Unlock()
		})
	}
}
