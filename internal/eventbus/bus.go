// Package eventbus delivers live query snapshots to subscribers. A change
// published on a topic wakes every subscription registered on it; each
// subscription then reloads its query and pushes the full result.
package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sourcegraph/conc"
)

var ErrClosed = errors.New("event bus closed")

// Topic names used by the moderation services.
func ReportsTopic(communityID string) string      { return "reports:" + communityID }
func LogsTopic(communityID string) string         { return "logs:" + communityID }
func RestrictionsTopic(communityID string) string { return "restrictions:" + communityID }

type Option func(*Bus)

// WithRelay forwards published changes to other instances.
func WithRelay(r Relay) Option {
	return func(b *Bus) { b.relay = r }
}

// WithPollInterval makes every subscription also reload on a ticker and
// deliver only when the snapshot changed. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(b *Bus) { b.pollInterval = d }
}

type Bus struct {
	topics       *xsync.MapOf[string, *topic]
	relay        Relay
	origin       string
	pollInterval time.Duration
	nextID       atomic.Uint64
	closed       atomic.Bool
	wg           conc.WaitGroup
}

func New(opts ...Option) *Bus {
	b := &Bus{
		topics: xsync.NewMapOf[string, *topic](),
		origin: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish notifies local subscribers of topic and, when a relay is
// configured, every other instance.
func (b *Bus) Publish(ctx context.Context, name string) error {
	b.dispatch(name)
	if b.relay == nil {
		return nil
	}
	return b.relay.Publish(ctx, Message{Origin: b.origin, Topic: name})
}

// Run consumes relayed changes until ctx is done. Without a relay it only
// waits for ctx.
func (b *Bus) Run(ctx context.Context) error {
	if b.relay == nil {
		<-ctx.Done()
		return nil
	}
	return b.relay.Subscribe(ctx, func(m Message) {
		if m.Origin == b.origin {
			return
		}
		b.dispatch(m.Topic)
	})
}

// Close cancels every subscription and waits for their goroutines.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.topics.Range(func(_ string, t *topic) bool {
		for _, w := range t.snapshot() {
			w.stop()
		}
		return true
	})
	b.wg.Wait()
}

func (b *Bus) dispatch(name string) {
	t, ok := b.topics.Load(name)
	if !ok {
		return
	}
	for _, w := range t.snapshot() {
		w.notify()
	}
}

func (b *Bus) attach(name string, w *watcher) {
	b.topics.Compute(name, func(t *topic, loaded bool) (*topic, bool) {
		if !loaded {
			t = &topic{watchers: make(map[uint64]*watcher)}
		}
		t.add(w)
		return t, false
	})
	activeSubscriptions.WithLabelValues(topicKind(name)).Inc()
}

func (b *Bus) detach(name string, w *watcher) {
	b.topics.Compute(name, func(t *topic, loaded bool) (*topic, bool) {
		if !loaded {
			return t, true
		}
		t.remove(w)
		return t, t.empty()
	})
	activeSubscriptions.WithLabelValues(topicKind(name)).Dec()
}

type topic struct {
	mu       sync.Mutex
	watchers map[uint64]*watcher
}

func (t *topic) add(w *watcher) {
	t.mu.Lock()
	t.watchers[w.id] = w
	t.mu.Unlock()
}

func (t *topic) remove(w *watcher) {
	t.mu.Lock()
	delete(t.watchers, w.id)
	t.mu.Unlock()
}

func (t *topic) empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.watchers) == 0
}

func (t *topic) snapshot() []*watcher {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*watcher, 0, len(t.watchers))
	for _, w := range t.watchers {
		out = append(out, w)
	}
	return out
}

// watcher is the non-generic half of a subscription held by a topic.
type watcher struct {
	id       uint64
	wake     chan struct{}
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
}

// notify never blocks: pending wakes coalesce into one reload.
func (w *watcher) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		close(w.done)
	})
}

func topicKind(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}

func logDropped(name string, err error) {
	slog.Warn("subscription terminated", "topic", name, "error", err)
}
