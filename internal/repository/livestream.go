package repository

import (
	"context"

	"isupipe/internal/models"

	"gorm.io/gorm"
)

// LivestreamRepository defines the interface for livestream data operations
type LivestreamRepository interface {
	WithTx(tx *gorm.DB) LivestreamRepository
	Create(ctx context.Context, livestream *models.Livestream) error
	GetByID(ctx context.Context, id uint) (*models.Livestream, error)
	ListByUser(ctx context.Context, userID uint) ([]*models.Livestream, error)
	// Search lists livestreams carrying the tag name, newest first. An empty tag lists all.
	Search(ctx context.Context, tag string, limit int) ([]*models.Livestream, error)
	ListAll(ctx context.Context) ([]*models.Livestream, error)
}

type livestreamRepository struct {
	db *gorm.DB
}

// NewLivestreamRepository creates a new livestream repository
func NewLivestreamRepository(db *gorm.DB) LivestreamRepository {
	return &livestreamRepository{db: db}
}

func (r *livestreamRepository) WithTx(tx *gorm.DB) LivestreamRepository {
	return &livestreamRepository{db: tx}
}

func (r *livestreamRepository) Create(ctx context.Context, livestream *models.Livestream) error {
	return r.db.WithContext(ctx).Create(livestream).Error
}

func (r *livestreamRepository) GetByID(ctx context.Context, id uint) (*models.Livestream, error) {
	var livestream models.Livestream
	err := r.db.WithContext(ctx).
		Preload("Tags").
		First(&livestream, id).Error
	if err != nil {
		return nil, mapNotFound(err, "Livestream", id)
	}
	return &livestream, nil
}

func (r *livestreamRepository) ListByUser(ctx context.Context, userID uint) ([]*models.Livestream, error) {
	var livestreams []*models.Livestream
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Tags").
		Order("id DESC").
		Find(&livestreams).Error
	return livestreams, err
}

func (r *livestreamRepository) Search(ctx context.Context, tag string, limit int) ([]*models.Livestream, error) {
	query := r.db.WithContext(ctx).Model(&models.Livestream{}).Preload("Tags").Order("livestreams.id DESC")
	if tag != "" {
		query = query.
			Joins("JOIN livestream_tags lt ON lt.livestream_id = livestreams.id").
			Joins("JOIN tags t ON t.id = lt.tag_id").
			Where("t.name = ?", tag)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var livestreams []*models.Livestream
	err := query.Find(&livestreams).Error
	return livestreams, err
}

func (r *livestreamRepository) ListAll(ctx context.Context) ([]*models.Livestream, error) {
	var livestreams []*models.Livestream
	err := r.db.WithContext(ctx).Preload("Tags").Order("id ASC").Find(&livestreams).Error
	return livestreams, err
}
