package repository

import (
	"context"
	"fmt"

	"isupipe/internal/models"
	"isupipe/internal/observability"

	"gorm.io/gorm"
)

// EntityKind names an entity that carries aggregate counters.
type EntityKind string

const (
	KindUser       EntityKind = "user"
	KindLivestream EntityKind = "livestream"
)

// Delta is a set of signed counter adjustments. MaxTip is not added: it is a
// candidate that replaces max_tip only when larger.
type Delta struct {
	Score             int64 `json:"score,omitempty"`
	ViewersCount      int64 `json:"viewers_count,omitempty"`
	TotalReactions    int64 `json:"total_reactions,omitempty"`
	TotalReports      int64 `json:"total_reports,omitempty"`
	TotalLivecomments int64 `json:"total_livecomments,omitempty"`
	TotalTip          int64 `json:"total_tip,omitempty"`
	MaxTip            int64 `json:"max_tip,omitempty"`
}

// IsZero reports whether applying d would change nothing.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// AggregateRepository applies counter deltas to users and livestreams.
type AggregateRepository interface {
	WithTx(tx *gorm.DB) AggregateRepository
	// Apply adds d to the entity's counters in one statement. Decrements stop at zero.
	Apply(ctx context.Context, kind EntityKind, id uint, d Delta) error
	LoadUser(ctx context.Context, id uint) (*models.User, error)
	LoadLivestream(ctx context.Context, id uint) (*models.Livestream, error)
}

type aggregateRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewAggregateRepository creates a new aggregate repository
func NewAggregateRepository(db *gorm.DB) AggregateRepository {
	return &aggregateRepository{db: db, log: observability.NewRepoLogger(nil, "aggregates")}
}

func (r *aggregateRepository) WithTx(tx *gorm.DB) AggregateRepository {
	return &aggregateRepository{db: tx, log: r.log}
}

func (r *aggregateRepository) Apply(ctx context.Context, kind EntityKind, id uint, d Delta) error {
	defer observability.TrackQuery("apply_delta", string(kind))()

	model, err := modelFor(kind)
	if err != nil {
		return err
	}
	if err := validateDelta(kind, d); err != nil {
		return err
	}

	var found int64
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&found).Error; err != nil {
		return err
	}
	if found == 0 {
		return models.NewNotFoundError(displayName(kind), id)
	}
	if d.IsZero() {
		return nil
	}

	updates := map[string]any{}
	addColumn(updates, "score", d.Score)
	addColumn(updates, "viewers_count", d.ViewersCount)
	addColumn(updates, "total_reactions", d.TotalReactions)
	addColumn(updates, "total_reports", d.TotalReports)
	addColumn(updates, "total_livecomments", d.TotalLivecomments)
	addColumn(updates, "total_tip", d.TotalTip)
	if d.MaxTip > 0 {
		updates["max_tip"] = gorm.Expr("CASE WHEN max_tip < ? THEN ? ELSE max_tip END", d.MaxTip, d.MaxTip)
	}

	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).UpdateColumns(updates).Error; err != nil {
		r.log.LogError(ctx, err, "apply_delta")
		return err
	}
	return nil
}

func addColumn(updates map[string]any, column string, delta int64) {
	switch {
	case delta > 0:
		updates[column] = gorm.Expr(column+" + ?", delta)
	case delta < 0:
		updates[column] = gorm.Expr("CASE WHEN "+column+" < ? THEN 0 ELSE "+column+" - ? END", -delta, -delta)
	}
}

func modelFor(kind EntityKind) (any, error) {
	switch kind {
	case KindUser:
		return &models.User{}, nil
	case KindLivestream:
		return &models.Livestream{}, nil
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
}

func displayName(kind EntityKind) string {
	if kind == KindUser {
		return "User"
	}
	return "Livestream"
}

// validateDelta rejects counters the entity does not carry.
func validateDelta(kind EntityKind, d Delta) error {
	switch kind {
	case KindUser:
		if d.TotalReports != 0 || d.MaxTip != 0 {
			return fmt.Errorf("user has no total_reports or max_tip counter")
		}
	case KindLivestream:
		if d.TotalLivecomments != 0 {
			return fmt.Errorf("livestream has no total_livecomments counter")
		}
	}
	if d.MaxTip < 0 {
		return fmt.Errorf("max_tip candidate must not be negative")
	}
	return nil
}

func (r *aggregateRepository) LoadUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, mapNotFound(err, "User", id)
	}
	return &user, nil
}

func (r *aggregateRepository) LoadLivestream(ctx context.Context, id uint) (*models.Livestream, error) {
	var livestream models.Livestream
	if err := r.db.WithContext(ctx).Preload("Tags").First(&livestream, id).Error; err != nil {
		return nil, mapNotFound(err, "Livestream", id)
	}
	return &livestream, nil
}
