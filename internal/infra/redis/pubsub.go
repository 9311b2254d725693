package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yakey01/dokterku-sub007/internal/infra/push"
)

const subscriptionBuffer = 64

var (
	_ push.Subscriber = (*Client)(nil)
	_ push.Publisher  = (*Client)(nil)
)

// Publish emits an event on channel.
func (c *Client) Publish(ctx context.Context, channel, event string, data any) error {
	payload, err := push.Encode(event, data)
	if err != nil {
		return err
	}
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a pub/sub subscription on channel. The subscription is confirmed
// before returning; the first message is push.KindConnected. When ctx ends or the
// connection is lost the subscription emits push.KindDisconnected and closes.
func (c *Client) Subscribe(ctx context.Context, channel string) (push.Subscription, error) {
	ps := c.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	s := &subscription{
		ps:      ps,
		channel: channel,
		ch:      make(chan push.Message, subscriptionBuffer),
		done:    make(chan struct{}),
		log:     slog.Default().With("component", "redis-pubsub", "channel", channel),
	}
	s.ch <- push.Message{Kind: push.KindConnected, Channel: channel, At: time.Now()}
	go s.forward(ctx)
	return s, nil
}

type subscription struct {
	ps      *redis.PubSub
	channel string
	ch      chan push.Message
	done    chan struct{}
	once    sync.Once
	log     *slog.Logger
}

func (s *subscription) Messages() <-chan push.Message {
	return s.ch
}

func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *subscription) forward(ctx context.Context) {
	defer close(s.ch)

	in := s.ps.Channel(redis.WithChannelHealthCheckInterval(30 * time.Second))
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.disconnect(ctx.Err())
			return
		case m, ok := <-in:
			if !ok {
				select {
				case <-s.done:
				default:
					s.disconnect(fmt.Errorf("redis subscription on %s closed", s.channel))
				}
				return
			}
			msg, err := push.Decode(m.Channel, []byte(m.Payload))
			if err != nil {
				s.log.Warn("Dropping undecodable event", "error", err)
				continue
			}
			select {
			case s.ch <- msg:
			case <-s.done:
				return
			}
		}
	}
}

func (s *subscription) disconnect(err error) {
	s.once.Do(func() {
		close(s.done)
		_ = s.ps.Close()
	})
	select {
	case s.ch <- push.Message{Kind: push.KindDisconnected, Channel: s.channel, Err: err, At: time.Now()}:
	default:
	}
}
