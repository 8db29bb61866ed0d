// Package notifications delivers after-commit livestream events to websocket viewers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"isupipe/internal/middleware"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const livestreamPattern = "livestream:*:events"

// Event is the envelope sent on a livestream feed.
type Event struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	LivestreamID uint   `json:"livestream_id"`
	Payload      any    `json:"payload"`
	At           int64  `json:"at"`
}

// LivestreamChannel is the pub/sub channel of one livestream's feed.
func LivestreamChannel(livestreamID uint) string {
	return fmt.Sprintf("livestream:%d:events", livestreamID)
}

// Notifier publishes livestream events into Redis channels.
type Notifier struct {
	rdb *redis.Client
	now func() time.Time
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client makes every publish a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb, now: time.Now}
}

// Publish sends an event to the livestream's channel.
func (n *Notifier) Publish(ctx context.Context, livestreamID uint, eventType string, payload any) error {
	if n.rdb == nil {
		return nil
	}
	body, err := json.Marshal(Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		LivestreamID: livestreamID,
		Payload:      payload,
		At:           n.now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, LivestreamChannel(livestreamID), body).Err()
}

// StartLivestreamSubscriber subscribes to every livestream channel and calls
// onMessage for each incoming message until ctx is cancelled.
func (n *Notifier) StartLivestreamSubscriber(
	ctx context.Context, onMessage func(livestreamID uint, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, livestreamPattern)
	// Wait for the subscription so events published right after return are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", livestreamPattern, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var livestreamID uint
				if _, err := fmt.Sscanf(msg.Channel, "livestream:%d:events", &livestreamID); err != nil {
					middleware.Logger.Warn("invalid livestream channel", slog.String("channel", msg.Channel))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in livestream subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(livestreamID, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
