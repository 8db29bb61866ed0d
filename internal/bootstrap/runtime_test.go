package bootstrap

import (
	"context"
	"testing"

	"isupipe/internal/config"
	"isupipe/internal/models"
	"isupipe/internal/seed"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(redisURL string) *config.Config {
	return &config.Config{
		Env:                  "test",
		DBDriver:             "sqlite",
		DBPath:               ":memory:",
		RedisURL:             redisURL,
		ReservationTermStart: "2023-11-25T01:00:00Z",
		ReservationTermEnd:   "2023-11-25T04:00:00Z",
		SlotCapacity:         2,
	}
}

func TestInitRuntime_SeedsReferenceData(t *testing.T) {
	mr := miniredis.RunT(t)

	db, rdb, err := InitRuntime(context.Background(), testConfig(mr.Addr()), Options{SeedReference: true})
	require.NoError(t, err)
	require.NotNil(t, rdb)
	t.Cleanup(func() { _ = rdb.Close() })

	var slots []models.ReservationSlot
	require.NoError(t, db.Order("start_at").Find(&slots).Error)
	require.Len(t, slots, 3)
	for _, s := range slots {
		assert.Equal(t, int64(2), s.Slot)
	}

	var tags int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&tags).Error)
	assert.Equal(t, int64(len(seed.DefaultTags)), tags)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}

func TestInitRuntime_WithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	db, rdb, err := InitRuntime(context.Background(), testConfig(addr), Options{})
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.Nil(t, rdb)

	var slots int64
	require.NoError(t, db.Model(&models.ReservationSlot{}).Count(&slots).Error)
	assert.Zero(t, slots)
}

func TestInitRuntime_RejectsBadTerm(t *testing.T) {
	cfg := testConfig("")
	cfg.ReservationTermEnd = cfg.ReservationTermStart

	_, _, err := InitRuntime(context.Background(), cfg, Options{SeedReference: true})
	assert.Error(t, err)
}
