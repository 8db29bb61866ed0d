package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"isupipe/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ service.EventPublisher = (*Notifier)(nil)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.Publish(context.Background(), 1, service.EventReaction, map[string]string{"emoji": "fire"}))
	assert.NoError(t, n.StartLivestreamSubscriber(context.Background(), func(uint, string) {}))
}

func TestLivestreamChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "livestream:1:events", LivestreamChannel(1))
	assert.Equal(t, "livestream:42:events", LivestreamChannel(42))
}

func TestNotifier_PublishDeliversEnvelope(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	n.now = func() time.Time { return time.Unix(1700874000, 0) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type delivery struct {
		livestreamID uint
		payload      string
	}
	got := make(chan delivery, 1)
	require.NoError(t, n.StartLivestreamSubscriber(ctx, func(id uint, payload string) {
		got <- delivery{id, payload}
	}))

	require.NoError(t, n.Publish(ctx, 7, service.EventLivecomment, map[string]any{"tip": 5}))

	select {
	case d := <-got:
		assert.Equal(t, uint(7), d.livestreamID)
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(d.payload), &ev))
		assert.Equal(t, service.EventLivecomment, ev.Type)
		assert.Equal(t, uint(7), ev.LivestreamID)
		assert.Equal(t, int64(1700874000), ev.At)
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, map[string]any{"tip": float64(5)}, ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNotifier_SubscriberRecoversFromPanic(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	require.NoError(t, n.StartLivestreamSubscriber(ctx, func(uint, string) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("handler bug")
		}
	}))

	require.NoError(t, n.Publish(ctx, 1, service.EventReaction, nil))
	require.NoError(t, n.Publish(ctx, 1, service.EventReaction, nil))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())

	var received int32
	require.NoError(t, n.StartLivestreamSubscriber(ctx, func(uint, string) {
		atomic.AddInt32(&received, 1)
	}))

	require.NoError(t, n.Publish(context.Background(), 3, service.EventViewers, nil))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, n.Publish(context.Background(), 3, service.EventViewers, nil))
	assert.Never(t, func() bool {
		return atomic.LoadInt32(&received) > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
}
