package service

import (
	"context"
	"log/slog"
)

// Event types published after a committed action.
const (
	EventLivecomment = "livecomment"
	EventReaction    = "reaction"
	EventReport      = "report"
	EventModeration  = "moderation"
	EventViewers     = "viewers"
)

// EventPublisher delivers after-commit events to a livestream's feed.
type EventPublisher interface {
	Publish(ctx context.Context, livestreamID uint, eventType string, payload any) error
}

// publish is best effort: the action has already committed.
func publish(ctx context.Context, p EventPublisher, logger *slog.Logger, livestreamID uint, eventType string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, livestreamID, eventType, payload); err != nil {
		logger.WarnContext(ctx, "event publish failed",
			slog.String("type", eventType),
			slog.Uint64("livestream_id", uint64(livestreamID)),
			slog.String("error", err.Error()),
		)
	}
}

// publishAfterCommit queues the event on w, so a unit of work that fails or
// rolls back publishes nothing.
func publishAfterCommit(w *Writer, p EventPublisher, logger *slog.Logger, livestreamID uint, eventType string, payload any) {
	w.AfterCommit(func(ctx context.Context) {
		publish(ctx, p, logger, livestreamID, eventType, payload)
	})
}
