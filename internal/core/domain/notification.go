package domain

import "time"

// NotificationKind classifies transient user notifications.
type NotificationKind string

const (
	NotificationDataChanged NotificationKind = "data_changed"
	NotificationAchievement NotificationKind = "achievement"
	NotificationInfo        NotificationKind = "info"
)

// Notification is a short-lived message raised by live updates.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Variant   Variant          `json:"variant"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Expired reports whether the notification is past its expiry at now.
func (n Notification) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// Achievement is an unlock announced over live updates.
type Achievement struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	UnlockedAt time.Time `json:"unlocked_at"`
}
