// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
)

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
	logger    *slog.Logger
}

// NewRepoLogger creates a new RepoLogger for the given table.
// A nil logger falls back to slog.Default.
func NewRepoLogger(logger *slog.Logger, tableName string) *RepoLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoLogger{
		tableName: tableName,
		logger:    logger,
	}
}

// LogMutation records a successful write that changed rows other callers read.
func (l *RepoLogger) LogMutation(ctx context.Context, operation string, attrs ...any) {
	attrs = append([]any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
	}, attrs...)
	l.logger.InfoContext(ctx, "repository mutation", attrs...)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	l.logger.ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
