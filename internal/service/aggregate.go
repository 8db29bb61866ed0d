// Package service holds the domain operations: slot reservation, aggregate
// counters with their cache snapshots, rankings and moderation.
package service

import (
	"context"
	"log/slog"

	"isupipe/internal/cache"
	"isupipe/internal/database"
	"isupipe/internal/models"
	"isupipe/internal/observability"
	"isupipe/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Target identifies one entity carrying aggregate counters.
type Target struct {
	Kind repository.EntityKind
	ID   uint
}

// UserTarget addresses a user's counters.
func UserTarget(id uint) Target { return Target{Kind: repository.KindUser, ID: id} }

// LivestreamTarget addresses a livestream's counters.
func LivestreamTarget(id uint) Target { return Target{Kind: repository.KindLivestream, ID: id} }

func (t Target) cacheKey() string {
	if t.Kind == repository.KindUser {
		return cache.UserKey(t.ID)
	}
	return cache.LivestreamKey(t.ID)
}

// Writer applies deltas inside one unit of work and remembers what it touched.
// A Writer is only valid inside the Run callback that created it.
type Writer struct {
	repo        repository.AggregateRepository
	touched     []Target
	seen        map[Target]struct{}
	deltas      map[repository.EntityKind]int
	afterCommit []func(ctx context.Context)
}

func newWriter(repo repository.AggregateRepository) *Writer {
	return &Writer{
		repo:   repo,
		seen:   make(map[Target]struct{}),
		deltas: make(map[repository.EntityKind]int),
	}
}

// ApplyDelta adds d to the target's counters in the durable store.
func (w *Writer) ApplyDelta(ctx context.Context, t Target, d repository.Delta) error {
	if err := w.repo.Apply(ctx, t.Kind, t.ID, d); err != nil {
		return err
	}
	if !d.IsZero() {
		w.deltas[t.Kind]++
	}
	w.Touch(t)
	return nil
}

// Touch marks t for a snapshot refresh after commit without changing counters.
func (w *Writer) Touch(t Target) {
	if _, ok := w.seen[t]; ok {
		return
	}
	w.seen[t] = struct{}{}
	w.touched = append(w.touched, t)
}

// AfterCommit queues fn to run once the unit of work has committed.
func (w *Writer) AfterCommit(fn func(ctx context.Context)) {
	w.afterCommit = append(w.afterCommit, fn)
}

// AggregateManager is the only path that mutates aggregate counters. It runs
// units of work against the durable store and keeps cache snapshots following it.
type AggregateManager struct {
	db         *gorm.DB
	aggregates repository.AggregateRepository
	users      repository.UserRepository
	livestream repository.LivestreamRepository
	store      cache.Store
	policy     database.RetryPolicy
	logger     *slog.Logger
	durable    EntityReader
	cached     EntityReader
}

// NewAggregateManager wires the manager to the durable store and the snapshot cache.
func NewAggregateManager(db *gorm.DB, store cache.Store, logger *slog.Logger) *AggregateManager {
	if logger == nil {
		logger = slog.Default()
	}
	aggregates := repository.NewAggregateRepository(db)
	durable := NewDurableReader(aggregates)
	return &AggregateManager{
		db:         db,
		aggregates: aggregates,
		users:      repository.NewUserRepository(db),
		livestream: repository.NewLivestreamRepository(db),
		store:      store,
		policy:     database.DefaultRetryPolicy,
		logger:     logger,
		durable:    durable,
		cached:     NewCachedReader(durable, store, logger),
	}
}

// WithRetryPolicy replaces the policy used for transient store errors.
func (m *AggregateManager) WithRetryPolicy(p database.RetryPolicy) *AggregateManager {
	m.policy = p
	return m
}

// Reader returns the cached read-through reader for hot paths.
func (m *AggregateManager) Reader() EntityReader { return m.cached }

// Durable returns the reader that always goes to the durable store.
func (m *AggregateManager) Durable() EntityReader { return m.durable }

// Run executes fn in one transaction, re-running it on transient store errors.
// After a successful commit every touched entity is re-read from the durable
// store and its snapshot overwritten; then AfterCommit hooks run. Nothing
// reaches the cache when fn or the commit fails.
func (m *AggregateManager) Run(ctx context.Context, fn func(tx *gorm.DB, w *Writer) error) error {
	ctx, finish := observability.StartSpan(ctx, "aggregate.unit_of_work")

	var w *Writer
	onRetry := func(err error) {
		observability.UnitOfWorkRetries.Inc()
		m.logger.DebugContext(ctx, "retrying unit of work", slog.String("error", err.Error()))
	}
	err := database.WithRetry(ctx, m.policy, onRetry, func(ctx context.Context) error {
		return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			w = newWriter(m.aggregates.WithTx(tx))
			return fn(tx, w)
		})
	})
	if err != nil {
		err = models.AsStoreFailure(err)
		finish(err)
		return err
	}

	for kind, n := range w.deltas {
		observability.AggregateDeltasTotal.WithLabelValues(string(kind)).Add(float64(n))
	}
	m.refresh(ctx, w.touched)
	for _, hook := range w.afterCommit {
		hook(ctx)
	}
	finish(nil)
	return nil
}

// refresh overwrites the snapshots of targets with their committed rows.
func (m *AggregateManager) refresh(ctx context.Context, targets []Target) {
	for _, t := range targets {
		if err := m.storeSnapshot(ctx, t); err != nil {
			observability.CacheWriteErrors.WithLabelValues(string(t.Kind)).Inc()
			m.logger.WarnContext(ctx, "snapshot refresh failed",
				slog.String("key", t.cacheKey()),
				slog.String("error", err.Error()),
			)
			// A stale snapshot must not outlive a failed refresh.
			_ = m.store.Delete(ctx, t.cacheKey())
		}
	}
}

func (m *AggregateManager) storeSnapshot(ctx context.Context, t Target) error {
	var snapshot any
	var err error
	switch t.Kind {
	case repository.KindUser:
		snapshot, err = m.durable.User(ctx, t.ID)
	default:
		snapshot, err = m.durable.Livestream(ctx, t.ID)
	}
	if err != nil {
		return err
	}
	return cache.SetJSON(ctx, m.store, t.cacheKey(), snapshot)
}

// WarmCache writes a fresh snapshot of every user and livestream.
func (m *AggregateManager) WarmCache(ctx context.Context) error {
	ctx, finish := observability.StartSpan(ctx, "aggregate.warm_cache")

	users, err := m.users.ListAll(ctx)
	if err != nil {
		finish(err)
		return models.NewStoreFailure(err)
	}
	livestreams, err := m.livestream.ListAll(ctx)
	if err != nil {
		finish(err)
		return models.NewStoreFailure(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, u := range users {
		g.Go(func() error {
			return cache.SetJSON(gctx, m.store, cache.UserKey(u.ID), u)
		})
	}
	for _, ls := range livestreams {
		g.Go(func() error {
			return cache.SetJSON(gctx, m.store, cache.LivestreamKey(ls.ID), ls)
		})
	}
	if err := g.Wait(); err != nil {
		// The cache is best effort; a partial warm-up is not fatal.
		m.logger.WarnContext(ctx, "cache warm-up incomplete", slog.String("error", err.Error()))
	}

	m.logger.InfoContext(ctx, "cache warmed",
		slog.Int("users", len(users)),
		slog.Int("livestreams", len(livestreams)),
	)
	finish(nil)
	return nil
}

// spanAttrs is shared by the services to tag spans with the acting entities.
func spanAttrs(userID, livestreamID uint) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("livestream.id", int64(livestreamID)),
	}
}
