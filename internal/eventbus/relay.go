package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// DefaultRelayChannel is the redis channel carrying change notifications.
const DefaultRelayChannel = "moderation:changes"

// Message is a change notification exchanged between instances.
type Message struct {
	Origin string `json:"origin"`
	Topic  string `json:"topic"`
}

// Relay moves change notifications between bus instances.
type Relay interface {
	Publish(ctx context.Context, m Message) error
	// Subscribe blocks, calling handle for each message, until ctx is done.
	Subscribe(ctx context.Context, handle func(Message)) error
}

// RedisRelay implements Relay over redis pub/sub.
type RedisRelay struct {
	client  *redis.Client
	channel string
}

func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{client: client, channel: channel}
}

func (r *RedisRelay) Publish(ctx context.Context, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return err
	}
	relayedMessages.WithLabelValues("out").Inc()
	return nil
}

func (r *RedisRelay) Subscribe(ctx context.Context, handle func(Message)) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		return r.listen(ctx, handle)
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		slog.Warn("event relay disconnected, retrying", "channel", r.channel, "error", err, "wait", wait)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *RedisRelay) listen(ctx context.Context, handle func(Message)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		case msg, ok := <-ch:
			if !ok {
				return errors.New("relay channel closed")
			}
			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				slog.Warn("dropping malformed relay message", "error", err)
				continue
			}
			relayedMessages.WithLabelValues("in").Inc()
			handle(m)
		}
	}
}
