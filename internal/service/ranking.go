package service

import (
	"context"

	"isupipe/internal/models"
	"isupipe/internal/observability"
	"isupipe/internal/repository"

	"gorm.io/gorm"
)

// UserStatistics summarises activity on the livestreams a user owns.
type UserStatistics struct {
	Rank              int64  `json:"rank"`
	ViewersCount      int64  `json:"viewers_count"`
	TotalReactions    int64  `json:"total_reactions"`
	TotalLivecomments int64  `json:"total_livecomments"`
	TotalTip          int64  `json:"total_tip"`
	FavoriteEmoji     string `json:"favorite_emoji"`
}

// LivestreamStatistics summarises activity on one livestream.
type LivestreamStatistics struct {
	Rank           int64 `json:"rank"`
	ViewersCount   int64 `json:"viewers_count"`
	TotalReactions int64 `json:"total_reactions"`
	TotalReports   int64 `json:"total_reports"`
	MaxTip         int64 `json:"max_tip"`
}

// RankingService computes rankings and statistics. It never writes and never
// reads the cache: stale counters would reorder the ranking.
type RankingService struct {
	db *gorm.DB
}

func NewRankingService(db *gorm.DB) *RankingService {
	return &RankingService{db: db}
}

// read runs fn in one transaction so the numbers it combines come from the same state.
func (s *RankingService) read(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	return models.AsStoreFailure(err)
}

// UserRank is the user's 1-based position by score desc, then name desc.
func (s *RankingService) UserRank(ctx context.Context, userID uint) (int64, error) {
	var rank int64
	err := s.read(ctx, func(tx *gorm.DB) error {
		var err error
		rank, err = repository.NewRankingRepository(tx).UserRank(ctx, userID)
		return err
	})
	return rank, err
}

// LivestreamRank is the livestream's 1-based position by reactions plus tips
// desc, then id desc.
func (s *RankingService) LivestreamRank(ctx context.Context, livestreamID uint) (int64, error) {
	var rank int64
	err := s.read(ctx, func(tx *gorm.DB) error {
		var err error
		rank, err = livestreamRank(ctx, repository.NewRankingRepository(tx), livestreamID)
		return err
	})
	return rank, err
}

func livestreamRank(ctx context.Context, repo repository.RankingRepository, livestreamID uint) (int64, error) {
	scores, err := repo.LivestreamScores(ctx)
	if err != nil {
		return 0, err
	}
	for i, s := range scores {
		if s.LivestreamID == livestreamID {
			return int64(i + 1), nil
		}
	}
	return 0, models.NewNotFoundError("Livestream", livestreamID)
}

// TopLivestreams lists the most popular livestreams. limit <= 0 lists all.
func (s *RankingService) TopLivestreams(ctx context.Context, limit int) ([]repository.LivestreamScore, error) {
	ctx, finish := observability.StartSpan(ctx, "ranking.top_livestreams")

	var scores []repository.LivestreamScore
	err := s.read(ctx, func(tx *gorm.DB) error {
		var err error
		scores, err = repository.NewRankingRepository(tx).LivestreamScores(ctx)
		return err
	})
	finish(err)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

// UserStatistics reports the named user's rank and counters.
func (s *RankingService) UserStatistics(ctx context.Context, username string) (*UserStatistics, error) {
	ctx, finish := observability.StartSpan(ctx, "ranking.user_statistics")

	var stats UserStatistics
	err := s.read(ctx, func(tx *gorm.DB) error {
		user, err := repository.NewUserRepository(tx).GetByName(ctx, username)
		if err != nil {
			return err
		}
		ranking := repository.NewRankingRepository(tx)
		if stats.Rank, err = ranking.UserRank(ctx, user.ID); err != nil {
			return err
		}
		if stats.ViewersCount, err = ranking.OwnerViewers(ctx, user.ID); err != nil {
			return err
		}
		if stats.FavoriteEmoji, err = repository.NewReactionRepository(tx).FavoriteEmoji(ctx, user.ID); err != nil {
			return err
		}
		stats.TotalReactions = user.TotalReactions
		stats.TotalLivecomments = user.TotalLivecomments
		stats.TotalTip = user.TotalTip
		return nil
	})
	finish(err)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// LivestreamStatistics reports the livestream's rank and activity counts.
func (s *RankingService) LivestreamStatistics(ctx context.Context, livestreamID uint) (*LivestreamStatistics, error) {
	ctx, finish := observability.StartSpan(ctx, "ranking.livestream_statistics")

	var stats LivestreamStatistics
	err := s.read(ctx, func(tx *gorm.DB) error {
		if _, err := repository.NewLivestreamRepository(tx).GetByID(ctx, livestreamID); err != nil {
			return err
		}
		ranking := repository.NewRankingRepository(tx)
		rank, err := livestreamRank(ctx, ranking, livestreamID)
		if err != nil {
			return err
		}
		counts, err := ranking.LivestreamCounts(ctx, livestreamID)
		if err != nil {
			return err
		}
		stats = LivestreamStatistics{
			Rank:           rank,
			ViewersCount:   counts.Viewers,
			TotalReactions: counts.Reactions,
			TotalReports:   counts.Reports,
			MaxTip:         counts.MaxTip,
		}
		return nil
	})
	finish(err)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// PaymentResult is the sum of every tip on the platform.
func (s *RankingService) PaymentResult(ctx context.Context) (int64, error) {
	var total int64
	err := s.read(ctx, func(tx *gorm.DB) error {
		var err error
		total, err = repository.NewRankingRepository(tx).TotalTips(ctx)
		return err
	})
	return total, err
}
