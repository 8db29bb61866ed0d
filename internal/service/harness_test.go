package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"isupipe/internal/cache"
	"isupipe/internal/database"
	"isupipe/internal/featureflags"
	"isupipe/internal/models"
	"isupipe/internal/repository"
	"isupipe/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	termStart = time.Date(2023, 11, 25, 1, 0, 0, 0, time.UTC)
	termEnd   = time.Date(2024, 11, 25, 1, 0, 0, 0, time.UTC)
	// firstHour is the first hourly window of the term.
	firstHour = Window{StartAt: termStart.Unix(), EndAt: termStart.Unix() + 3600}
)

var testRetryPolicy = database.RetryPolicy{
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	MaxElapsedTime:  5 * time.Second,
	MaxRetries:      50,
}

type publishedEvent struct {
	LivestreamID uint
	Type         string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, livestreamID uint, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{LivestreamID: livestreamID, Type: eventType})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	db          *gorm.DB
	mr          *miniredis.Miniredis
	store       cache.Store
	manager     *AggregateManager
	allocator   *SlotAllocator
	livestreams *LivestreamService
	moderation  *ModerationService
	ranking     *RankingService
	users       *UserService
	events      *recordingPublisher
}

type harnessOptions struct {
	flags    string
	strategy string
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := cache.NewRedisStore(rdb, 0)

	if opts.flags == "" {
		opts.flags = "moderation_backout=on"
	}

	events := &recordingPublisher{}
	manager := NewAggregateManager(db, store, nil).WithRetryPolicy(testRetryPolicy)
	allocator := NewSlotAllocator(repository.NewSlotRepository(db), termStart, termEnd, opts.strategy)
	repos := LivestreamRepos{
		Users:        repository.NewUserRepository(db),
		Livestreams:  repository.NewLivestreamRepository(db),
		Livecomments: repository.NewLivecommentRepository(db),
		Reactions:    repository.NewReactionRepository(db),
		Reports:      repository.NewReportRepository(db),
		Viewers:      repository.NewViewerRepository(db),
		Tags:         repository.NewTagRepository(db),
	}
	moderation := NewModerationService(manager,
		repository.NewNGWordRepository(db),
		repos.Livecomments,
		repos.Livestreams,
		featureflags.NewManager(opts.flags),
		events,
		nil,
	)

	return &harness{
		db:          db,
		mr:          mr,
		store:       store,
		manager:     manager,
		allocator:   allocator,
		livestreams: NewLivestreamService(repos, manager, allocator, moderation, events, nil),
		moderation:  moderation,
		ranking:     NewRankingService(db),
		users:       NewUserService(repos.Users, manager.Reader()).WithBcryptCost(4),
		events:      events,
	}
}

// livestream creates an owner and a livestream reserved through the allocator.
func (h *harness) livestream(t *testing.T) (*models.User, *models.Livestream) {
	t.Helper()

	owner := testutil.CreateUser(t, h.db, "")
	testutil.SeedSlot(t, h.db, firstHour.StartAt, firstHour.EndAt, 10)
	ls, err := h.livestreams.Reserve(context.Background(), ReserveInput{
		UserID:  owner.ID,
		Title:   "stream",
		StartAt: firstHour.StartAt,
		EndAt:   firstHour.EndAt,
	})
	require.NoError(t, err)
	return owner, ls
}

func (h *harness) durableUser(t *testing.T, id uint) *models.User {
	t.Helper()
	u, err := h.manager.Durable().User(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (h *harness) durableLivestream(t *testing.T, id uint) *models.Livestream {
	t.Helper()
	ls, err := h.manager.Durable().Livestream(context.Background(), id)
	require.NoError(t, err)
	return ls
}

func (h *harness) tipSum(t *testing.T, livestreamID uint) int64 {
	t.Helper()
	var sum int64
	require.NoError(t, h.db.Model(&models.Livecomment{}).
		Where("livestream_id = ?", livestreamID).
		Select("COALESCE(SUM(tip), 0)").Scan(&sum).Error)
	return sum
}

func livestreamCounters(ls *models.Livestream) [6]int64 {
	return [6]int64{ls.ViewersCount, ls.TotalReactions, ls.TotalReports, ls.TotalTip, ls.MaxTip, ls.Score}
}

func userCounters(u *models.User) [5]int64 {
	return [5]int64{u.Score, u.ViewersCount, u.TotalReactions, u.TotalLivecomments, u.TotalTip}
}
