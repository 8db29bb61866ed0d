package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"isupipe/internal/notifications"
	"isupipe/internal/service"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivestreamFeed_DeliversCommittedEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.initialize(t)
	_, ownerToken := ts.signup(t, "alice")
	_, viewerToken := ts.signup(t, "bob")
	status, ls := ts.reserve(t, ownerToken, nil)
	require.Equal(t, http.StatusCreated, status)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ts.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ts.Shutdown(ctx)
	})

	feedURL := fmt.Sprintf("ws://%s/api/livestream/%d/ws?token=%s", ln.Addr().String(), ls.ID, viewerToken)
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, dialErr := websocket.DefaultDialer.Dial(feedURL, nil)
		if dialErr != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool {
		return ts.hub.Subscribers(ls.ID) == 1
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost,
		fmt.Sprintf("/api/livestream/%d/reaction", ls.ID), viewerToken,
		map[string]string{"emoji_name": "fire"}, nil))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev notifications.Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, service.EventReaction, ev.Type)
	assert.Equal(t, ls.ID, ev.LivestreamID)
}

func TestLivestreamFeed_RejectsUnknownLivestream(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.signup(t, "alice")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ts.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ts.Shutdown(ctx)
	})

	feedURL := fmt.Sprintf("ws://%s/api/livestream/9999/ws?token=%s", ln.Addr().String(), token)
	var resp *http.Response
	require.Eventually(t, func() bool {
		_, r, dialErr := websocket.DefaultDialer.Dial(feedURL, nil)
		if r == nil {
			return false
		}
		resp = r
		return dialErr != nil
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, r, err := websocket.DefaultDialer.Dial(
		fmt.Sprintf("ws://%s/api/livestream/9999/ws", ln.Addr().String()), nil)
	require.Error(t, err)
	require.NotNil(t, r)
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode)
}
