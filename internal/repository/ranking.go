package repository

import (
	"context"

	"isupipe/internal/models"
	"isupipe/internal/observability"

	"gorm.io/gorm"
)

// LivestreamScore is a livestream's popularity: reactions received plus tips from comments.
type LivestreamScore struct {
	LivestreamID uint  `json:"livestream_id"`
	Reactions    int64 `json:"reactions"`
	Tips         int64 `json:"tips"`
	Score        int64 `json:"score"`
}

// LivestreamCounts are activity counts read straight from the event tables.
type LivestreamCounts struct {
	Viewers   int64
	MaxTip    int64
	Reactions int64
	Reports   int64
}

// RankingRepository answers ranking queries. It only reads.
type RankingRepository interface {
	WithTx(tx *gorm.DB) RankingRepository
	// UserRank is 1 + the number of users ordered ahead by (score DESC, name DESC).
	UserRank(ctx context.Context, userID uint) (int64, error)
	// LivestreamScores lists every livestream ordered by (score DESC, id DESC).
	LivestreamScores(ctx context.Context) ([]LivestreamScore, error)
	LivestreamCounts(ctx context.Context, livestreamID uint) (LivestreamCounts, error)
	OwnerViewers(ctx context.Context, ownerID uint) (int64, error)
	TotalTips(ctx context.Context) (int64, error)
}

type rankingRepository struct {
	db *gorm.DB
}

// NewRankingRepository creates a new ranking repository
func NewRankingRepository(db *gorm.DB) RankingRepository {
	return &rankingRepository{db: db}
}

func (r *rankingRepository) WithTx(tx *gorm.DB) RankingRepository {
	return &rankingRepository{db: tx}
}

func (r *rankingRepository) UserRank(ctx context.Context, userID uint) (int64, error) {
	defer observability.TrackQuery("rank", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).Select("id", "name", "score").First(&user, userID).Error; err != nil {
		return 0, mapNotFound(err, "User", userID)
	}

	var ahead int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("score > ? OR (score = ? AND name > ?)", user.Score, user.Score, user.Name).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

func (r *rankingRepository) LivestreamScores(ctx context.Context) ([]LivestreamScore, error) {
	defer observability.TrackQuery("rank", "livestreams")()

	reactions := r.db.Model(&models.Reaction{}).
		Select("livestream_id, COUNT(*) AS cnt").
		Group("livestream_id")
	tips := r.db.Model(&models.Livecomment{}).
		Select("livestream_id, SUM(tip) AS tips").
		Group("livestream_id")

	var scores []LivestreamScore
	err := r.db.WithContext(ctx).
		Table("livestreams l").
		Select(`l.id AS livestream_id,
			COALESCE(r.cnt, 0) AS reactions,
			COALESCE(c.tips, 0) AS tips,
			COALESCE(r.cnt, 0) + COALESCE(c.tips, 0) AS score`).
		Joins("LEFT JOIN (?) r ON r.livestream_id = l.id", reactions).
		Joins("LEFT JOIN (?) c ON c.livestream_id = l.id", tips).
		Order("score DESC, l.id DESC").
		Scan(&scores).Error
	return scores, err
}

func (r *rankingRepository) LivestreamCounts(ctx context.Context, livestreamID uint) (LivestreamCounts, error) {
	var counts LivestreamCounts
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.LivestreamViewersHistory{}).
		Where("livestream_id = ?", livestreamID).Count(&counts.Viewers).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&models.Livecomment{}).
		Where("livestream_id = ?", livestreamID).
		Select("COALESCE(MAX(tip), 0)").Scan(&counts.MaxTip).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&models.Reaction{}).
		Where("livestream_id = ?", livestreamID).Count(&counts.Reactions).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&models.LivecommentReport{}).
		Where("livestream_id = ?", livestreamID).Count(&counts.Reports).Error; err != nil {
		return counts, err
	}
	return counts, nil
}

func (r *rankingRepository) OwnerViewers(ctx context.Context, ownerID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Table("livestream_viewers_history h").
		Joins("JOIN livestreams l ON l.id = h.livestream_id").
		Where("l.user_id = ?", ownerID).
		Count(&n).Error
	return n, err
}

func (r *rankingRepository) TotalTips(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Livecomment{}).
		Select("COALESCE(SUM(tip), 0)").Scan(&total).Error
	return total, err
}
