package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"isupipe/internal/models"

	"github.com/cenkalti/backoff/v4"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrWriteConflict signals that an optimistic compare-and-swap lost against a
// concurrent writer. The enclosing unit of work is safe to run again.
var ErrWriteConflict = errors.New("concurrent write conflict")

// RetryPolicy bounds how often and how long a unit of work is re-run.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

// DefaultRetryPolicy keeps retries short; lock waits already absorb most contention.
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 20 * time.Millisecond,
	MaxInterval:     500 * time.Millisecond,
	MaxElapsedTime:  5 * time.Second,
	MaxRetries:      8,
}

// IsRetryableError reports whether err is a transient concurrency failure:
// a lost compare-and-swap, a deadlock, a serialization failure or a lock timeout.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWriteConflict) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03": // lock_not_available
			return true
		}
		return false
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1213, // ER_LOCK_DEADLOCK
			1205: // ER_LOCK_WAIT_TIMEOUT
			return true
		}
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// WithRetry runs op and re-runs it with exponential backoff while it fails with
// a retryable error. Application errors are returned unchanged on first sight.
func WithRetry(ctx context.Context, policy RetryPolicy, onRetry func(err error), op func(context.Context) error) error {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(policy.InitialInterval),
		backoff.WithMaxInterval(policy.MaxInterval),
		backoff.WithMaxElapsedTime(policy.MaxElapsedTime),
	), policy.MaxRetries)

	var lastErr error
	err := backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		var appErr *models.AppError
		if errors.As(err, &appErr) || !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		lastErr = err
		if onRetry != nil {
			onRetry(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}
	if lastErr != nil && errors.Is(err, lastErr) {
		return models.NewStoreFailure(err)
	}
	return err
}
