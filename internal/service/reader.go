package service

import (
	"context"
	"log/slog"

	"isupipe/internal/cache"
	"isupipe/internal/models"
	"isupipe/internal/observability"
	"isupipe/internal/repository"

	"golang.org/x/sync/singleflight"
)

// EntityReader loads the entities that carry aggregate counters.
type EntityReader interface {
	User(ctx context.Context, id uint) (*models.User, error)
	Livestream(ctx context.Context, id uint) (*models.Livestream, error)
}

type durableReader struct {
	repo repository.AggregateRepository
}

// NewDurableReader reads straight from the durable store.
func NewDurableReader(repo repository.AggregateRepository) EntityReader {
	return &durableReader{repo: repo}
}

func (r *durableReader) User(ctx context.Context, id uint) (*models.User, error) {
	return r.repo.LoadUser(ctx, id)
}

func (r *durableReader) Livestream(ctx context.Context, id uint) (*models.Livestream, error) {
	return r.repo.LoadLivestream(ctx, id)
}

type cachedReader struct {
	durable EntityReader
	store   cache.Store
	logger  *slog.Logger
	group   singleflight.Group
}

// NewCachedReader serves snapshots from store and reads through to durable on
// a miss, storing the full snapshot. Concurrent misses on one key share a load.
// Results may be stale; callers needing exact counts read durable in a transaction.
func NewCachedReader(durable EntityReader, store cache.Store, logger *slog.Logger) EntityReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &cachedReader{durable: durable, store: store, logger: logger}
}

func (r *cachedReader) User(ctx context.Context, id uint) (*models.User, error) {
	key := cache.UserKey(id)
	var user models.User
	if r.lookup(ctx, "user", key, &user) {
		return &user, nil
	}

	v, err := r.load(ctx, "user", key, func(ctx context.Context) (any, error) {
		return r.durable.User(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	// Callers sharing a load each get their own copy.
	copied := *v.(*models.User)
	return &copied, nil
}

func (r *cachedReader) Livestream(ctx context.Context, id uint) (*models.Livestream, error) {
	key := cache.LivestreamKey(id)
	var livestream models.Livestream
	if r.lookup(ctx, "livestream", key, &livestream) {
		return &livestream, nil
	}

	v, err := r.load(ctx, "livestream", key, func(ctx context.Context) (any, error) {
		return r.durable.Livestream(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	copied := *v.(*models.Livestream)
	copied.Tags = append([]models.Tag(nil), copied.Tags...)
	return &copied, nil
}

// load runs fn once per key for all concurrent callers. The shared load is
// detached from the caller that started it, so that caller going away does not
// fail the others; a cancelled caller stops waiting and gets its own ctx error.
func (r *cachedReader) load(ctx context.Context, kind, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	ch := r.group.DoChan(key, func() (any, error) {
		lctx := context.WithoutCancel(ctx)
		loaded, err := fn(lctx)
		if err != nil {
			return nil, err
		}
		r.populate(lctx, kind, key, loaded)
		return loaded, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (r *cachedReader) lookup(ctx context.Context, kind, key string, dest any) bool {
	found, err := cache.GetJSON(ctx, r.store, key, dest)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues(kind, "error").Inc()
		r.logger.WarnContext(ctx, "snapshot read failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	case found:
		observability.CacheLookups.WithLabelValues(kind, "hit").Inc()
		return true
	default:
		observability.CacheLookups.WithLabelValues(kind, "miss").Inc()
		return false
	}
}

func (r *cachedReader) populate(ctx context.Context, kind, key string, v any) {
	if err := cache.SetJSON(ctx, r.store, key, v); err != nil {
		observability.CacheWriteErrors.WithLabelValues(kind).Inc()
		r.logger.WarnContext(ctx, "snapshot write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
