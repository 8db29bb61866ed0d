package service

import (
	"context"
	"time"

	"isupipe/internal/config"
	"isupipe/internal/database"
	"isupipe/internal/models"
	"isupipe/internal/repository"

	"gorm.io/gorm"
)

// Window is a reservation interval in unix seconds.
type Window struct {
	StartAt int64
	EndAt   int64
}

// SlotAllocator owns reservation slot capacity.
type SlotAllocator struct {
	slots     repository.SlotRepository
	termStart int64
	termEnd   int64
	strategy  string
}

// NewSlotAllocator creates an allocator for the campaign term [termStart, termEnd).
// strategy is one of config.SlotLockAuto, SlotLockRowLock or SlotLockCAS.
func NewSlotAllocator(slots repository.SlotRepository, termStart, termEnd time.Time, strategy string) *SlotAllocator {
	if strategy == "" {
		strategy = config.SlotLockAuto
	}
	return &SlotAllocator{
		slots:     slots,
		termStart: termStart.Unix(),
		termEnd:   termEnd.Unix(),
		strategy:  strategy,
	}
}

// Validate rejects malformed windows and windows outside the campaign term
// without touching the store.
func (a *SlotAllocator) Validate(w Window) error {
	if w.StartAt >= w.EndAt {
		return models.NewValidationError("start_at must be before end_at")
	}
	if w.EndAt <= a.termStart || w.StartAt >= a.termEnd {
		return models.NewValidationError("reservation window is outside the reservation term")
	}
	return nil
}

// ReserveWindow takes one unit of capacity from the slot keyed exactly by w.
// A window with no such slot is not capacity-limited and passes. It must
// run inside the unit of work that also inserts the livestream, so a later
// failure rolls the capacity back.
func (a *SlotAllocator) ReserveWindow(ctx context.Context, tx *gorm.DB, w Window) error {
	if err := a.Validate(w); err != nil {
		return err
	}
	repo := a.slots.WithTx(tx)
	if a.useCAS(tx) {
		return a.reserveCAS(ctx, repo, w)
	}
	return a.reserveLocked(ctx, repo, w)
}

func (a *SlotAllocator) useCAS(tx *gorm.DB) bool {
	switch a.strategy {
	case config.SlotLockCAS:
		return true
	case config.SlotLockRowLock:
		return false
	default:
		return tx.Dialector.Name() == "sqlite"
	}
}

// reserveLocked holds FOR UPDATE locks on the window's rows before checking
// capacity, so concurrent reservers of the same window queue behind each other.
func (a *SlotAllocator) reserveLocked(ctx context.Context, repo repository.SlotRepository, w Window) error {
	slots, err := repo.LockWindow(ctx, w.StartAt, w.EndAt)
	if err != nil {
		return err
	}
	if err := checkCapacity(slots, w); err != nil {
		return err
	}
	if len(slots) == 0 {
		return nil
	}
	return repo.DecrementWindow(ctx, w.StartAt, w.EndAt)
}

// reserveCAS decrements each row only if it still holds the value read. Losing
// any row aborts the attempt with ErrWriteConflict and the unit of work is re-run.
func (a *SlotAllocator) reserveCAS(ctx context.Context, repo repository.SlotRepository, w Window) error {
	slots, err := repo.FindWindow(ctx, w.StartAt, w.EndAt)
	if err != nil {
		return err
	}
	if err := checkCapacity(slots, w); err != nil {
		return err
	}
	for _, s := range slots {
		ok, err := repo.CompareAndDecrement(ctx, s.ID, s.Slot)
		if err != nil {
			return err
		}
		if !ok {
			return database.ErrWriteConflict
		}
	}
	return nil
}

func checkCapacity(slots []models.ReservationSlot, w Window) error {
	for _, s := range slots {
		if s.Slot < 1 {
			return models.NewOverbookedError(w.StartAt, w.EndAt)
		}
	}
	return nil
}

// ListSlots returns the slots inside [from, to] with their remaining capacity.
func (a *SlotAllocator) ListSlots(ctx context.Context, from, to int64) ([]models.ReservationSlot, error) {
	if from >= to {
		return nil, models.NewValidationError("from must be before to")
	}
	slots, err := a.slots.ListRange(ctx, from, to)
	if err != nil {
		return nil, models.NewStoreFailure(err)
	}
	return slots, nil
}
