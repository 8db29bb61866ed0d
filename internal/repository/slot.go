package repository

import (
	"context"

	"isupipe/internal/models"
	"isupipe/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SlotRepository owns reservation slot capacity.
type SlotRepository interface {
	WithTx(tx *gorm.DB) SlotRepository
	// LockWindow reads the slots keyed exactly (startAt, endAt), holding an
	// exclusive row lock until the surrounding transaction ends.
	LockWindow(ctx context.Context, startAt, endAt int64) ([]models.ReservationSlot, error)
	// FindWindow reads the same rows without locking.
	FindWindow(ctx context.Context, startAt, endAt int64) ([]models.ReservationSlot, error)
	// DecrementWindow takes one unit from the slots keyed exactly (startAt, endAt).
	// Callers must hold the row locks.
	DecrementWindow(ctx context.Context, startAt, endAt int64) error
	// ListRange returns every slot lying inside [from, to].
	ListRange(ctx context.Context, from, to int64) ([]models.ReservationSlot, error)
	// CompareAndDecrement takes one unit only if the slot still holds expected.
	CompareAndDecrement(ctx context.Context, id uint, expected int64) (bool, error)
	Seed(ctx context.Context, slots []models.ReservationSlot) error
}

type slotRepository struct {
	db *gorm.DB
}

// NewSlotRepository creates a new slot repository
func NewSlotRepository(db *gorm.DB) SlotRepository {
	return &slotRepository{db: db}
}

func (r *slotRepository) WithTx(tx *gorm.DB) SlotRepository {
	return &slotRepository{db: tx}
}

func (r *slotRepository) window(ctx context.Context, startAt, endAt int64) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("start_at = ? AND end_at = ?", startAt, endAt).
		Order("id ASC")
}

func (r *slotRepository) LockWindow(ctx context.Context, startAt, endAt int64) ([]models.ReservationSlot, error) {
	defer observability.TrackQuery("lock", "reservation_slots")()

	var slots []models.ReservationSlot
	err := r.window(ctx, startAt, endAt).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Find(&slots).Error
	return slots, err
}

func (r *slotRepository) FindWindow(ctx context.Context, startAt, endAt int64) ([]models.ReservationSlot, error) {
	var slots []models.ReservationSlot
	err := r.window(ctx, startAt, endAt).Find(&slots).Error
	return slots, err
}

func (r *slotRepository) DecrementWindow(ctx context.Context, startAt, endAt int64) error {
	return r.db.WithContext(ctx).Model(&models.ReservationSlot{}).
		Where("start_at = ? AND end_at = ?", startAt, endAt).
		UpdateColumn("slot", gorm.Expr("slot - 1")).Error
}

func (r *slotRepository) ListRange(ctx context.Context, from, to int64) ([]models.ReservationSlot, error) {
	var slots []models.ReservationSlot
	err := r.db.WithContext(ctx).
		Where("start_at >= ? AND end_at <= ?", from, to).
		Order("start_at ASC").
		Find(&slots).Error
	return slots, err
}

func (r *slotRepository) CompareAndDecrement(ctx context.Context, id uint, expected int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ReservationSlot{}).
		Where("id = ? AND slot = ?", id, expected).
		UpdateColumn("slot", expected-1)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *slotRepository) Seed(ctx context.Context, slots []models.ReservationSlot) error {
	if len(slots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(slots, 500).Error
}
