package repository

import (
	"context"
	"errors"

	"isupipe/internal/models"

	"gorm.io/gorm"
)

// ReactionRepository defines the interface for reaction data operations
type ReactionRepository interface {
	WithTx(tx *gorm.DB) ReactionRepository
	Create(ctx context.Context, reaction *models.Reaction) error
	ListByLivestream(ctx context.Context, livestreamID uint, limit int) ([]*models.Reaction, error)
	// FavoriteEmoji returns the emoji used most on the user's livestreams, ties
	// broken by emoji name descending. Empty when there are no reactions.
	FavoriteEmoji(ctx context.Context, ownerID uint) (string, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository creates a new reaction repository
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) WithTx(tx *gorm.DB) ReactionRepository {
	return &reactionRepository{db: tx}
}

func (r *reactionRepository) Create(ctx context.Context, reaction *models.Reaction) error {
	return r.db.WithContext(ctx).Create(reaction).Error
}

func (r *reactionRepository) ListByLivestream(ctx context.Context, livestreamID uint, limit int) ([]*models.Reaction, error) {
	query := r.db.WithContext(ctx).
		Where("livestream_id = ?", livestreamID).
		Preload("User").
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var reactions []*models.Reaction
	err := query.Find(&reactions).Error
	return reactions, err
}

func (r *reactionRepository) FavoriteEmoji(ctx context.Context, ownerID uint) (string, error) {
	var row struct {
		EmojiName string
	}
	err := r.db.WithContext(ctx).
		Table("reactions r").
		Select("r.emoji_name AS emoji_name").
		Joins("JOIN livestreams l ON l.id = r.livestream_id").
		Where("l.user_id = ?", ownerID).
		Group("r.emoji_name").
		Order("COUNT(*) DESC, r.emoji_name DESC").
		Limit(1).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return row.EmojiName, err
}

// ReportRepository defines the interface for livecomment report data operations
type ReportRepository interface {
	WithTx(tx *gorm.DB) ReportRepository
	Create(ctx context.Context, report *models.LivecommentReport) error
	ListByLivestream(ctx context.Context, livestreamID uint) ([]*models.LivecommentReport, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) WithTx(tx *gorm.DB) ReportRepository {
	return &reportRepository{db: tx}
}

func (r *reportRepository) Create(ctx context.Context, report *models.LivecommentReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepository) ListByLivestream(ctx context.Context, livestreamID uint) ([]*models.LivecommentReport, error) {
	var reports []*models.LivecommentReport
	err := r.db.WithContext(ctx).
		Where("livestream_id = ?", livestreamID).
		Preload("User").
		Preload("Livecomment").
		Order("id ASC").
		Find(&reports).Error
	return reports, err
}

// NGWordRepository defines the interface for banned word data operations
type NGWordRepository interface {
	WithTx(tx *gorm.DB) NGWordRepository
	Create(ctx context.Context, word *models.NGWord) error
	ListByLivestream(ctx context.Context, ownerID, livestreamID uint) ([]*models.NGWord, error)
	// Words returns every banned word registered on the livestream.
	Words(ctx context.Context, livestreamID uint) ([]string, error)
}

type ngWordRepository struct {
	db *gorm.DB
}

// NewNGWordRepository creates a new banned word repository
func NewNGWordRepository(db *gorm.DB) NGWordRepository {
	return &ngWordRepository{db: db}
}

func (r *ngWordRepository) WithTx(tx *gorm.DB) NGWordRepository {
	return &ngWordRepository{db: tx}
}

func (r *ngWordRepository) Create(ctx context.Context, word *models.NGWord) error {
	return r.db.WithContext(ctx).Create(word).Error
}

func (r *ngWordRepository) ListByLivestream(ctx context.Context, ownerID, livestreamID uint) ([]*models.NGWord, error) {
	var words []*models.NGWord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND livestream_id = ?", ownerID, livestreamID).
		Order("created_at DESC, id DESC").
		Find(&words).Error
	return words, err
}

func (r *ngWordRepository) Words(ctx context.Context, livestreamID uint) ([]string, error) {
	var words []string
	err := r.db.WithContext(ctx).Model(&models.NGWord{}).
		Where("livestream_id = ?", livestreamID).
		Pluck("word", &words).Error
	return words, err
}

// ViewerRepository records who is currently watching a livestream.
type ViewerRepository interface {
	WithTx(tx *gorm.DB) ViewerRepository
	Enter(ctx context.Context, userID, livestreamID uint) error
	// Exit removes the user's viewing rows and reports how many there were.
	Exit(ctx context.Context, userID, livestreamID uint) (int64, error)
	CountByLivestream(ctx context.Context, livestreamID uint) (int64, error)
}

type viewerRepository struct {
	db *gorm.DB
}

// NewViewerRepository creates a new viewer history repository
func NewViewerRepository(db *gorm.DB) ViewerRepository {
	return &viewerRepository{db: db}
}

func (r *viewerRepository) WithTx(tx *gorm.DB) ViewerRepository {
	return &viewerRepository{db: tx}
}

func (r *viewerRepository) Enter(ctx context.Context, userID, livestreamID uint) error {
	return r.db.WithContext(ctx).Create(&models.LivestreamViewersHistory{
		UserID:       userID,
		LivestreamID: livestreamID,
	}).Error
}

func (r *viewerRepository) Exit(ctx context.Context, userID, livestreamID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND livestream_id = ?", userID, livestreamID).
		Delete(&models.LivestreamViewersHistory{})
	return res.RowsAffected, res.Error
}

func (r *viewerRepository) CountByLivestream(ctx context.Context, livestreamID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.LivestreamViewersHistory{}).
		Where("livestream_id = ?", livestreamID).
		Count(&n).Error
	return n, err
}

// TagRepository defines the interface for tag data operations
type TagRepository interface {
	WithTx(tx *gorm.DB) TagRepository
	ListAll(ctx context.Context) ([]models.Tag, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Tag, error)
	Seed(ctx context.Context, names []string) error
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) WithTx(tx *gorm.DB) TagRepository {
	return &tagRepository{db: tx}
}

func (r *tagRepository) ListAll(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.WithContext(ctx).Order("id ASC").Find(&tags).Error
	return tags, err
}

func (r *tagRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tags []models.Tag
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&tags).Error
	return tags, err
}

func (r *tagRepository) Seed(ctx context.Context, names []string) error {
	for _, name := range names {
		tag := models.Tag{Name: name}
		if err := r.db.WithContext(ctx).Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return err
		}
	}
	return nil
}
