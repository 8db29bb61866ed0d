package repository

import (
	"context"
	"regexp"
	"testing"

	"isupipe/internal/models"
	"isupipe/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestSlotRepository_LockWindowTakesRowLock(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSlotRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "reservation_slots" WHERE start_at = $1 AND end_at = $2 ORDER BY id ASC FOR UPDATE`)).
		WithArgs(100, 200).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slot", "start_at", "end_at"}).
			AddRow(1, 3, 100, 200))

	slots, err := repo.LockWindow(ctx, 100, 200)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, int64(3), slots[0].Slot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_FindWindowDoesNotLock(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSlotRepository(db)

	mock.ExpectQuery(`^SELECT \* FROM "reservation_slots" WHERE start_at = \$1 AND end_at = \$2 ORDER BY id ASC$`).
		WithArgs(100, 200).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slot", "start_at", "end_at"}))

	slots, err := repo.FindWindow(context.Background(), 100, 200)
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_DecrementWindow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSlotRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "reservation_slots" SET "slot"=slot - 1 WHERE start_at = $1 AND end_at = $2`)).
		WithArgs(100, 200).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DecrementWindow(context.Background(), 100, 200))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_WindowMatchesExactKeyOnly(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewSlotRepository(db)
	ctx := context.Background()
	first := testutil.SeedSlot(t, db, 0, 3600, 3)
	second := testutil.SeedSlot(t, db, 3600, 7200, 3)

	// A two-hour window contains both hourly slots but keys neither of them.
	found, err := repo.FindWindow(ctx, 0, 7200)
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = repo.FindWindow(ctx, 3600, 7200)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, second.ID, found[0].ID)

	require.NoError(t, repo.DecrementWindow(ctx, 0, 7200))
	require.NoError(t, repo.DecrementWindow(ctx, 0, 3600))

	var stored models.ReservationSlot
	require.NoError(t, db.First(&stored, first.ID).Error)
	assert.Equal(t, int64(2), stored.Slot)
	require.NoError(t, db.First(&stored, second.ID).Error)
	assert.Equal(t, int64(3), stored.Slot)
}

func TestSlotRepository_CompareAndDecrement(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewSlotRepository(db)
	ctx := context.Background()
	slot := testutil.SeedSlot(t, db, 100, 200, 2)

	ok, err := repo.CompareAndDecrement(ctx, slot.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	// A writer still holding the old value loses.
	ok, err = repo.CompareAndDecrement(ctx, slot.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	var stored models.ReservationSlot
	require.NoError(t, db.First(&stored, slot.ID).Error)
	assert.Equal(t, int64(1), stored.Slot)
}

func TestSlotRepository_SeedIsIdempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewSlotRepository(db)
	ctx := context.Background()

	slots := func() []models.ReservationSlot {
		return []models.ReservationSlot{
			{Slot: 5, StartAt: 0, EndAt: 3600},
			{Slot: 5, StartAt: 3600, EndAt: 7200},
		}
	}
	require.NoError(t, repo.Seed(ctx, slots()))
	require.NoError(t, repo.Seed(ctx, slots()))

	found, err := repo.ListRange(ctx, 0, 7200)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}
