package eventbus

import (
	"bytes"
	"context"
	"time"
)

// Query describes a live query: the topic whose changes invalidate it and
// the loader producing a full snapshot.
type Query[T any] struct {
	Topic string
	Load  func(ctx context.Context) (T, error)
}

// Subscription streams snapshots of one query. C is closed when the
// subscription ends. A terminal loader error is sent on Err before C closes.
type Subscription[T any] struct {
	C   <-chan T
	Err <-chan error

	w *watcher
}

// Cancel stops delivery to this subscriber only. Once it returns no further
// snapshot is sent. Safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.w.stop()
	<-s.w.exited
}

// Register starts a subscription. The current snapshot is delivered first,
// then a fresh one after every change on q.Topic. On a nil or closed bus the
// subscription ends at once with ErrClosed.
func Register[T any](b *Bus, q Query[T]) *Subscription[T] {
	out := make(chan T)
	errc := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())

	w := &watcher{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		cancel: cancel,
	}
	sub := &Subscription[T]{C: out, Err: errc, w: w}

	if b == nil || b.closed.Load() {
		errc <- ErrClosed
		w.stop()
		close(out)
		close(w.exited)
		return sub
	}

	w.id = b.nextID.Add(1)
	w.notify()
	b.attach(q.Topic, w)
	b.wg.Go(func() {
		defer close(w.exited)
		defer close(out)
		defer b.detach(q.Topic, w)
		watch(ctx, b, q, w, out, errc)
	})
	if b.closed.Load() {
		// Close raced with registration and may have missed this watcher.
		w.stop()
	}
	return sub
}

func watch[T any](ctx context.Context, b *Bus, q Query[T], w *watcher, out chan<- T, errc chan<- error) {
	var tick <-chan time.Time
	if b.pollInterval > 0 {
		ticker := time.NewTicker(b.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var last []byte
	for {
		polled := false
		select {
		case <-w.done:
			return
		case <-w.wake:
		case <-tick:
			polled = true
		}

		snap, err := q.Load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logDropped(q.Topic, err)
			errc <- err
			return
		}

		if tick != nil {
			fp, ok := fingerprint(snap)
			if polled && ok && bytes.Equal(fp, last) {
				continue
			}
			last = fp
		}

		select {
		case <-w.done:
			return
		case out <- snap:
		}
	}
}
