package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const subscriptionBuffer = 64

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("push hub closed")

// MemoryHub is an in-process Subscriber and Publisher. It backs live updates when no
// external transport is configured and lets tests drive connection drops.
type MemoryHub struct {
	log *slog.Logger

	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	closed bool
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		log:  slog.Default().With("component", "push-hub"),
		subs: make(map[string]map[*memorySubscription]struct{}),
	}
}

// Subscribe registers a subscription on channel. The first message is KindConnected.
func (h *MemoryHub) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}

	s := &memorySubscription{hub: h, channel: channel, ch: make(chan Message, subscriptionBuffer)}
	s.ch <- Message{Kind: KindConnected, Channel: channel, At: time.Now()}
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*memorySubscription]struct{})
	}
	h.subs[channel][s] = struct{}{}
	return s, nil
}

// Publish fans an event out to every subscription on channel. Full subscriptions drop it.
func (h *MemoryHub) Publish(_ context.Context, channel, event string, data any) error {
	payload, err := Encode(event, data)
	if err != nil {
		return err
	}
	msg, err := Decode(channel, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[channel] {
		select {
		case s.ch <- msg:
		default:
			h.log.Warn("Subscription buffer full, event dropped", "channel", channel, "event", event)
		}
	}
	return nil
}

// Drop simulates a transport failure on channel: every subscription receives
// KindDisconnected with err and is closed.
func (h *MemoryHub) Drop(channel string, err error) {
	h.mu.Lock()
	subs := h.subs[channel]
	delete(h.subs, channel)
	h.mu.Unlock()

	for s := range subs {
		s.disconnect(err)
	}
}

// Subscribers returns the number of open subscriptions on channel.
func (h *MemoryHub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Close drops every subscription and rejects new ones.
func (h *MemoryHub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*memorySubscription]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, subs := range all {
		for s := range subs {
			s.disconnect(ErrHubClosed)
		}
	}
}

type memorySubscription struct {
	hub     *MemoryHub
	channel string
	ch      chan Message
	once    sync.Once
}

func (s *memorySubscription) Messages() <-chan Message {
	return s.ch
}

func (s *memorySubscription) Unsubscribe() error {
	s.hub.mu.Lock()
	if subs := s.hub.subs[s.channel]; subs != nil {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.hub.subs, s.channel)
		}
	}
	s.hub.mu.Unlock()

	s.once.Do(func() { close(s.ch) })
	return nil
}

func (s *memorySubscription) disconnect(err error) {
	s.once.Do(func() {
		select {
		case s.ch <- Message{Kind: KindDisconnected, Channel: s.channel, Err: err, At: time.Now()}:
		default:
		}
		close(s.ch)
	})
}
