package eventbus_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/eventbus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}

func assertSilent[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unexpected snapshot %v", v)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func counterQuery(topic string, n *atomic.Int64) eventbus.Query[int64] {
	return eventbus.Query[int64]{
		Topic: topic,
		Load: func(ctx context.Context) (int64, error) {
			return n.Load(), nil
		},
	}
}

func TestRegisterDeliversInitialAndChangedSnapshots(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()

	var n atomic.Int64
	sub := eventbus.Register(bus, counterQuery("reports:c1", &n))
	defer sub.Cancel()

	assert.Equal(t, int64(0), recv(t, sub.C))

	n.Store(1)
	require.NoError(t, bus.Publish(context.Background(), "reports:c1"))
	assert.Equal(t, int64(1), recv(t, sub.C))

	// Changes on other topics are not delivered.
	require.NoError(t, bus.Publish(context.Background(), "reports:c2"))
	assertSilent(t, sub.C)
}

func TestCancelOnlyAffectsOneSubscriber(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()

	var n atomic.Int64
	first := eventbus.Register(bus, counterQuery("logs:c1", &n))
	second := eventbus.Register(bus, counterQuery("logs:c1", &n))
	defer second.Cancel()

	recv(t, first.C)
	recv(t, second.C)

	first.Cancel()
	first.Cancel()

	n.Store(5)
	require.NoError(t, bus.Publish(context.Background(), "logs:c1"))

	assert.Equal(t, int64(5), recv(t, second.C))
	_, ok := <-first.C
	assert.False(t, ok, "cancelled subscription must be closed")
}

func TestLoaderErrorTerminatesOnlyThatSubscription(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()

	var fail atomic.Bool
	denied := errors.New("permission denied")
	failing := eventbus.Register(bus, eventbus.Query[string]{
		Topic: "reports:c1",
		Load: func(ctx context.Context) (string, error) {
			if fail.Load() {
				return "", denied
			}
			return "ok", nil
		},
	})
	var n atomic.Int64
	healthy := eventbus.Register(bus, counterQuery("reports:c1", &n))
	defer healthy.Cancel()

	assert.Equal(t, "ok", recv(t, failing.C))
	recv(t, healthy.C)

	fail.Store(true)
	n.Store(2)
	require.NoError(t, bus.Publish(context.Background(), "reports:c1"))

	select {
	case err := <-failing.Err:
		assert.ErrorIs(t, err, denied)
	case <-time.After(waitFor):
		t.Fatal("expected terminal error")
	}
	_, ok := <-failing.C
	assert.False(t, ok)

	assert.Equal(t, int64(2), recv(t, healthy.C))
}

func TestPollDeliversOnlyChangedSnapshots(t *testing.T) {
	bus := eventbus.New(eventbus.WithPollInterval(20 * time.Millisecond))
	defer bus.Close()

	var n atomic.Int64
	sub := eventbus.Register(bus, counterQuery("restrictions:c1", &n))
	defer sub.Cancel()

	assert.Equal(t, int64(0), recv(t, sub.C))
	assertSilent(t, sub.C)

	// No publish: the poll notices the change on its own.
	n.Store(3)
	assert.Equal(t, int64(3), recv(t, sub.C))
}

func TestRegisterOnClosedBus(t *testing.T) {
	bus := eventbus.New()
	bus.Close()

	var n atomic.Int64
	sub := eventbus.Register(bus, counterQuery("logs:c1", &n))
	assert.ErrorIs(t, <-sub.Err, eventbus.ErrClosed)
	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Cancel()
}

func TestRegisterOnNilBus(t *testing.T) {
	var n atomic.Int64
	sub := eventbus.Register(nil, counterQuery("reports:c1", &n))
	assert.ErrorIs(t, <-sub.Err, eventbus.ErrClosed)
	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Cancel()
	sub.Cancel()
}

func TestRedisRelayFansOutAcrossInstances(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	newClient := func() *redis.Client {
		return redis.NewClient(&redis.Options{Addr: mr.Addr()})
	}
	c1, c2 := newClient(), newClient()
	defer c1.Close()
	defer c2.Close()

	publisher := eventbus.New(eventbus.WithRelay(eventbus.NewRedisRelay(c1, "")))
	observer := eventbus.New(eventbus.WithRelay(eventbus.NewRedisRelay(c2, "")))
	defer publisher.Close()
	defer observer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go observer.Run(ctx)

	var n atomic.Int64
	sub := eventbus.Register(observer, counterQuery("reports:c1", &n))
	defer sub.Cancel()
	recv(t, sub.C)

	n.Store(7)
	// The observer's relay subscription is asynchronous; keep publishing
	// until it is listening.
	require.Eventually(t, func() bool {
		_ = publisher.Publish(ctx, "reports:c1")
		select {
		case v := <-sub.C:
			return v == 7
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, waitFor, 10*time.Millisecond)
}
