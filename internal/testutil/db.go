// Package testutil provides shared fixtures for tests that need a real store.
package testutil

import (
	"testing"

	"isupipe/internal/config"
	"isupipe/internal/database"
	"isupipe/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewSQLiteDB opens a migrated in-memory sqlite database that lives for the test.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Connect(&config.Config{Env: "test", DBDriver: "sqlite", DBPath: ":memory:"})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with a random unique name unless one is given.
func CreateUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()

	if name == "" {
		name = gofakeit.Username() + gofakeit.DigitN(6)
	}
	user := &models.User{
		Name:        name,
		DisplayName: gofakeit.Name(),
		Description: gofakeit.Sentence(6),
		Password:    "x",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateLivestream inserts a livestream owned by ownerID without touching slots.
func CreateLivestream(t *testing.T, db *gorm.DB, ownerID uint) *models.Livestream {
	t.Helper()

	livestream := &models.Livestream{
		UserID:       ownerID,
		Title:        gofakeit.Sentence(3),
		Description:  gofakeit.Sentence(8),
		PlaylistURL:  gofakeit.URL(),
		ThumbnailURL: gofakeit.URL(),
		StartAt:      1700874000,
		EndAt:        1700877600,
	}
	require.NoError(t, db.Create(livestream).Error)
	return livestream
}

// SeedSlot inserts one reservation slot with the given capacity.
func SeedSlot(t *testing.T, db *gorm.DB, startAt, endAt, capacity int64) *models.ReservationSlot {
	t.Helper()

	slot := &models.ReservationSlot{Slot: capacity, StartAt: startAt, EndAt: endAt}
	require.NoError(t, db.Create(slot).Error)
	return slot
}
