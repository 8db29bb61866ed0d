package seed

import (
	"context"
	"testing"
	"time"

	"isupipe/internal/models"
	"isupipe/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHourlySlots(t *testing.T) {
	t.Parallel()
	start := time.Date(2023, 11, 25, 1, 0, 0, 0, time.UTC)

	slots, err := HourlySlots(start, start.Add(150*time.Minute), 5)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, start.Unix(), slots[0].StartAt)
	assert.Equal(t, start.Add(time.Hour).Unix(), slots[0].EndAt)
	// The last window is clipped to the term end.
	assert.Equal(t, start.Add(150*time.Minute).Unix(), slots[2].EndAt)
	for _, s := range slots {
		assert.Equal(t, int64(5), s.Slot)
	}

	_, err = HourlySlots(start, start, 5)
	assert.Error(t, err)
	_, err = HourlySlots(start, start.Add(time.Hour), -1)
	assert.Error(t, err)
}

func TestSeeder_RunIsIdempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()
	start := time.Date(2023, 11, 25, 1, 0, 0, 0, time.UTC)
	opts := Options{
		TermStart:    start,
		TermEnd:      start.Add(24 * time.Hour),
		SlotCapacity: 5,
		NumUsers:     3,
		BcryptCost:   bcrypt.MinCost,
	}
	s := NewSeeder(db)

	res, err := s.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 24, res.Slots)
	assert.Len(t, res.Users, 3)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(res.Users[0].Password), []byte(DemoPassword)))

	// Consumed capacity survives a second run.
	require.NoError(t, db.Model(&models.ReservationSlot{}).Where("start_at = ?", start.Unix()).
		UpdateColumn("slot", 1).Error)

	opts.NumUsers = 0
	_, err = s.Run(ctx, opts)
	require.NoError(t, err)

	var slots, tags, users int64
	require.NoError(t, db.Model(&models.ReservationSlot{}).Count(&slots).Error)
	require.NoError(t, db.Model(&models.Tag{}).Count(&tags).Error)
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(24), slots)
	assert.Equal(t, int64(len(DefaultTags)), tags)
	assert.Equal(t, int64(3), users)

	var first models.ReservationSlot
	require.NoError(t, db.Where("start_at = ?", start.Unix()).First(&first).Error)
	assert.Equal(t, int64(1), first.Slot)
}
