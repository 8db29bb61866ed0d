package repository

import (
	"context"
	"testing"

	"isupipe/internal/models"
	"isupipe/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivecommentRepository_FindContaining(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewLivecommentRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "")
	ls := testutil.CreateLivestream(t, db, owner.ID)
	other := testutil.CreateLivestream(t, db, owner.ID)

	texts := []string{"buy cheap stuff", "Cheap is fine", "100% off", "100 off", "nothing here"}
	for _, text := range texts {
		require.NoError(t, repo.Create(ctx, &models.Livecomment{UserID: owner.ID, LivestreamID: ls.ID, Comment: text}))
	}
	require.NoError(t, repo.Create(ctx, &models.Livecomment{UserID: owner.ID, LivestreamID: other.ID, Comment: "cheap elsewhere"}))

	tests := []struct {
		word string
		want []string
	}{
		{"cheap", []string{"buy cheap stuff"}},
		{"Cheap", []string{"Cheap is fine"}},
		{"0%", []string{"100% off"}},
		{"missing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			got, err := repo.FindContaining(ctx, ls.ID, tt.word)
			require.NoError(t, err)

			var texts []string
			for _, c := range got {
				texts = append(texts, c.Comment)
			}
			assert.Equal(t, tt.want, texts)
		})
	}
}

func TestLivecommentRepository_DeleteByIDs(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewLivecommentRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "")
	ls := testutil.CreateLivestream(t, db, owner.ID)

	keep := &models.Livecomment{UserID: owner.ID, LivestreamID: ls.ID, Comment: "keep"}
	drop := &models.Livecomment{UserID: owner.ID, LivestreamID: ls.ID, Comment: "drop"}
	require.NoError(t, repo.Create(ctx, keep))
	require.NoError(t, repo.Create(ctx, drop))

	n, err := repo.DeleteByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.DeleteByIDs(ctx, []uint{drop.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	remaining, err := repo.ListByLivestream(ctx, ls.ID, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "keep", remaining[0].Comment)
}

func TestLikeContains(t *testing.T) {
	assert.Equal(t, "%abc%", likeContains("abc"))
	assert.Equal(t, "%a!%b!_c!!%", likeContains("a%b_c!"))
}
