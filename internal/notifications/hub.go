package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"isupipe/internal/middleware"
	"isupipe/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per livestream
	maxConnsPerLivestream = 2000
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrHubClosed              = errors.New("feed hub is shut down")
	ErrServerLimitReached     = errors.New("server connection limit reached")
	ErrLivestreamLimitReached = errors.New("livestream connection limit reached")
)

// Hub maps livestreamID -> connected viewers.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[uint]map[*Client]struct{})}
}

// Register adds a viewer connection to a livestream feed.
func (h *Hub) Register(livestreamID, userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, ErrServerLimitReached
	}
	m, ok := h.conns[livestreamID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[livestreamID] = m
	}
	if len(m) >= maxConnsPerLivestream {
		return nil, ErrLivestreamLimitReached
	}

	client := newClient(h, conn, livestreamID, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.LivestreamSubscribers.Inc()
	return client, nil
}

// Unregister removes the client and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.LivestreamID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	if len(m) == 0 {
		delete(h.conns, client.LivestreamID)
	}
	h.totalConns--
	observability.LivestreamSubscribers.Dec()
	close(client.Send)
}

// Subscribers returns the number of open connections on a livestream feed.
func (h *Hub) Subscribers(livestreamID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[livestreamID])
}

// Broadcast sends message to all connections watching livestreamID.
func (h *Hub) Broadcast(livestreamID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for c := range h.conns[livestreamID] {
		c.TrySend(data)
	}
}

// StartWiring connects the Notifier to this hub so every published livestream
// event reaches the viewers of that livestream.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartLivestreamSubscriber(ctx, h.Broadcast)
}

// Shutdown closes every feed connection. Each client's write pump sends the
// going-away frame, so the hub never writes to a connection itself.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	closed := 0
	for _, clients := range h.conns {
		for client := range clients {
			close(client.Send)
			observability.LivestreamSubscribers.Dec()
			closed++
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	if closed > 0 {
		middleware.Logger.Info("feed hub shut down", slog.Int("connections", closed))
	}
	return nil
}
