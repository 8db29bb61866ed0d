package repository

import (
	"context"
	"strings"

	"isupipe/internal/models"

	"gorm.io/gorm"
)

// LivecommentRepository defines the interface for livecomment data operations
type LivecommentRepository interface {
	WithTx(tx *gorm.DB) LivecommentRepository
	Create(ctx context.Context, comment *models.Livecomment) error
	GetByID(ctx context.Context, id uint) (*models.Livecomment, error)
	ListByLivestream(ctx context.Context, livestreamID uint, limit int) ([]*models.Livecomment, error)
	// FindContaining returns the livestream's comments containing word as a
	// case-sensitive substring.
	FindContaining(ctx context.Context, livestreamID uint, word string) ([]*models.Livecomment, error)
	DeleteByIDs(ctx context.Context, ids []uint) (int64, error)
}

type livecommentRepository struct {
	db *gorm.DB
}

// NewLivecommentRepository creates a new livecomment repository
func NewLivecommentRepository(db *gorm.DB) LivecommentRepository {
	return &livecommentRepository{db: db}
}

func (r *livecommentRepository) WithTx(tx *gorm.DB) LivecommentRepository {
	return &livecommentRepository{db: tx}
}

func (r *livecommentRepository) Create(ctx context.Context, comment *models.Livecomment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *livecommentRepository) GetByID(ctx context.Context, id uint) (*models.Livecomment, error) {
	var comment models.Livecomment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, mapNotFound(err, "Livecomment", id)
	}
	return &comment, nil
}

func (r *livecommentRepository) ListByLivestream(ctx context.Context, livestreamID uint, limit int) ([]*models.Livecomment, error) {
	query := r.db.WithContext(ctx).
		Where("livestream_id = ?", livestreamID).
		Preload("User").
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var comments []*models.Livecomment
	err := query.Find(&comments).Error
	return comments, err
}

func (r *livecommentRepository) FindContaining(ctx context.Context, livestreamID uint, word string) ([]*models.Livecomment, error) {
	var candidates []*models.Livecomment
	// LIKE narrows the scan; its case sensitivity depends on the engine and
	// collation, so the exact match is decided below.
	err := r.db.WithContext(ctx).
		Where("livestream_id = ? AND comment LIKE ? ESCAPE '!'", livestreamID, likeContains(word)).
		Order("id ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	matches := candidates[:0]
	for _, c := range candidates {
		if strings.Contains(c.Comment, word) {
			matches = append(matches, c)
		}
	}
	return matches, nil
}

func (r *livecommentRepository) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Livecomment{})
	return res.RowsAffected, res.Error
}
