// Package push defines the real-time event transport consumed by live updates.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event names carried on Jaspel channels.
const (
	EventJaspelUpdated       = "jaspel.updated"
	EventJaspelValidated     = "jaspel.validated"
	EventAchievementUnlocked = "achievement.unlocked"
)

// MessageKind separates data events from connection state changes.
type MessageKind string

const (
	KindEvent        MessageKind = "event"
	KindConnected    MessageKind = "connected"
	KindDisconnected MessageKind = "disconnected"
)

// Message is one item delivered on a subscription.
type Message struct {
	Kind    MessageKind
	Channel string
	Event   string
	Data    json.RawMessage
	Err     error // set on KindDisconnected when the transport failed
	At      time.Time
}

// Subscription delivers messages until Unsubscribe is called or the transport drops.
// After a KindDisconnected message the Messages channel is closed.
type Subscription interface {
	Messages() <-chan Message
	Unsubscribe() error
}

// Subscriber opens subscriptions on named channels.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Publisher emits events on named channels.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, data any) error
}

// Channel returns the channel name of a variant and user: jaspel.<variant>.<user>.
func Channel(variant, userID string) string {
	return fmt.Sprintf("jaspel.%s.%s", variant, userID)
}

// envelope is the wire form of an event.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode serializes an event for the wire.
func Encode(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal event data: %w", err)
		}
		raw = b
	}
	return json.Marshal(envelope{Event: event, Data: raw})
}

// Decode parses a wire payload received on channel.
func Decode(channel string, payload []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Message{}, fmt.Errorf("decode event on %s: %w", channel, err)
	}
	if env.Event == "" {
		return Message{}, fmt.Errorf("decode event on %s: missing event name", channel)
	}
	return Message{
		Kind:    KindEvent,
		Channel: channel,
		Event:   env.Event,
		Data:    env.Data,
		At:      time.Now(),
	}, nil
}
