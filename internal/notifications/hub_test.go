package notifications

import (
	"context"
	"testing"
	"time"

	"isupipe/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register(1, 10, nil)
	require.NoError(t, err)
	_, err = hub.Register(1, 11, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Subscribers(1))
	assert.Zero(t, hub.Subscribers(2))

	hub.Unregister(a)
	hub.Unregister(a)
	assert.Equal(t, 1, hub.Subscribers(1))

	_, ok := <-a.Send
	assert.False(t, ok, "send channel closed on unregister")
}

func TestHub_BroadcastOnlyReachesOneLivestream(t *testing.T) {
	hub := NewHub()
	watching, err := hub.Register(1, 10, nil)
	require.NoError(t, err)
	other, err := hub.Register(2, 10, nil)
	require.NoError(t, err)

	hub.Broadcast(1, `{"type":"reaction"}`)

	assert.Equal(t, `{"type":"reaction"}`, string(<-watching.Send))
	assert.Empty(t, other.Send)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, 10, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)

	// Sending on a closed client must not panic.
	hub.Unregister(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

func TestHub_LivestreamLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerLivestream; i++ {
		_, err := hub.Register(1, uint(i), nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(1, 0, nil)
	assert.ErrorIs(t, err, ErrLivestreamLimitReached)
	_, err = hub.Register(2, 0, nil)
	assert.NoError(t, err)
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, 10, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	_, ok := <-c.Send
	assert.False(t, ok)
	_, err = hub.Register(1, 10, nil)
	assert.ErrorIs(t, err, ErrHubClosed)
	// Unregister after shutdown is a no-op.
	hub.Unregister(c)
}

func TestHub_StartWiringForwardsPublishedEvents(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := hub.Register(5, 10, nil)
	require.NoError(t, err)
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.Publish(ctx, 5, service.EventModeration, map[string]any{"word": "cheap"}))

	select {
	case msg := <-c.Send:
		assert.Contains(t, string(msg), `"type":"moderation"`)
	case <-time.After(time.Second):
		t.Fatal("event not forwarded")
	}
}
