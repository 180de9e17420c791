package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/eventbus"
)

// Clock returns the current time. Services evaluate every window and expiry
// against it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

type options struct {
	now Clock
	bus *eventbus.Bus
}

type Option func(*options)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(o *options) { o.now = c }
}

// WithBus publishes change notifications for live subscriptions.
func WithBus(b *eventbus.Bus) Option {
	return func(o *options) { o.bus = b }
}

func buildOptions(opts []Option) options {
	o := options{now: systemClock}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) publish(ctx context.Context, topic string) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(context.WithoutCancel(ctx), topic); err != nil {
		slog.Warn("change notification failed", "topic", topic, "error", err)
	}
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
