package repository

import (
	"context"
	"testing"

	"isupipe/internal/models"
	"isupipe/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateRepository_Apply(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewAggregateRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "")
	ls := testutil.CreateLivestream(t, db, owner.ID)

	t.Run("adds to every named column", func(t *testing.T) {
		require.NoError(t, repo.Apply(ctx, KindUser, owner.ID, Delta{Score: 3, TotalTip: 3, TotalLivecomments: 1}))

		got, err := repo.LoadUser(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Score)
		assert.Equal(t, int64(3), got.TotalTip)
		assert.Equal(t, int64(1), got.TotalLivecomments)
		assert.Zero(t, got.ViewersCount)
	})

	t.Run("decrements stop at zero", func(t *testing.T) {
		require.NoError(t, repo.Apply(ctx, KindLivestream, ls.ID, Delta{ViewersCount: 1}))
		require.NoError(t, repo.Apply(ctx, KindLivestream, ls.ID, Delta{ViewersCount: -5}))

		got, err := repo.LoadLivestream(ctx, ls.ID)
		require.NoError(t, err)
		assert.Zero(t, got.ViewersCount)
	})

	t.Run("max tip only grows", func(t *testing.T) {
		for _, tip := range []int64{5, 2, 9, 1} {
			require.NoError(t, repo.Apply(ctx, KindLivestream, ls.ID, Delta{TotalTip: tip, Score: tip, MaxTip: tip}))
		}

		got, err := repo.LoadLivestream(ctx, ls.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(9), got.MaxTip)
		assert.Equal(t, int64(17), got.TotalTip)
	})

	t.Run("missing entity", func(t *testing.T) {
		err := repo.Apply(ctx, KindUser, 9999, Delta{Score: 1})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("zero delta still checks existence", func(t *testing.T) {
		assert.NoError(t, repo.Apply(ctx, KindLivestream, ls.ID, Delta{}))
		err := repo.Apply(ctx, KindLivestream, 9999, Delta{})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("rejects counters the entity lacks", func(t *testing.T) {
		assert.Error(t, repo.Apply(ctx, KindUser, owner.ID, Delta{MaxTip: 4}))
		assert.Error(t, repo.Apply(ctx, KindLivestream, ls.ID, Delta{TotalLivecomments: 1}))
		assert.Error(t, repo.Apply(ctx, EntityKind("tag"), 1, Delta{Score: 1}))
	})
}

func TestDelta_IsZero(t *testing.T) {
	assert.True(t, Delta{}.IsZero())
	assert.False(t, Delta{MaxTip: 1}.IsZero())
}
