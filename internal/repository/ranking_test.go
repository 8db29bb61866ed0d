package repository

import (
	"context"
	"testing"

	"isupipe/internal/models"
	"isupipe/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankingRepository_UserRankTieBreaksOnNameDescending(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewRankingRepository(db)
	ctx := context.Background()

	scores := map[string]int64{"bob": 10, "alice": 10, "carol": 7}
	ids := map[string]uint{}
	for name, score := range scores {
		u := testutil.CreateUser(t, db, name)
		require.NoError(t, db.Model(u).UpdateColumn("score", score).Error)
		ids[name] = u.ID
	}

	for name, want := range map[string]int64{"bob": 1, "alice": 2, "carol": 3} {
		rank, err := repo.UserRank(ctx, ids[name])
		require.NoError(t, err)
		assert.Equal(t, want, rank, name)
	}

	_, err := repo.UserRank(ctx, 9999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestRankingRepository_LivestreamScores(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewRankingRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "")
	viewer := testutil.CreateUser(t, db, "")
	first := testutil.CreateLivestream(t, db, owner.ID)
	second := testutil.CreateLivestream(t, db, owner.ID)
	third := testutil.CreateLivestream(t, db, owner.ID)

	// first: 2 reactions + 1 tip = 3; second: 3 tip = 3; third: nothing.
	require.NoError(t, db.Create(&models.Reaction{UserID: viewer.ID, LivestreamID: first.ID, EmojiName: "+1"}).Error)
	require.NoError(t, db.Create(&models.Reaction{UserID: viewer.ID, LivestreamID: first.ID, EmojiName: "+1"}).Error)
	require.NoError(t, db.Create(&models.Livecomment{UserID: viewer.ID, LivestreamID: first.ID, Comment: "hi", Tip: 1}).Error)
	require.NoError(t, db.Create(&models.Livecomment{UserID: viewer.ID, LivestreamID: second.ID, Comment: "yo", Tip: 3}).Error)

	scores, err := repo.LivestreamScores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 3)

	// Equal scores order by id descending.
	assert.Equal(t, second.ID, scores[0].LivestreamID)
	assert.Equal(t, first.ID, scores[1].LivestreamID)
	assert.Equal(t, third.ID, scores[2].LivestreamID)
	assert.Equal(t, LivestreamScore{LivestreamID: first.ID, Reactions: 2, Tips: 1, Score: 3}, scores[1])
	assert.Zero(t, scores[2].Score)
}

func TestRankingRepository_Counts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewRankingRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "")
	viewer := testutil.CreateUser(t, db, "")
	ls := testutil.CreateLivestream(t, db, owner.ID)

	comment := &models.Livecomment{UserID: viewer.ID, LivestreamID: ls.ID, Comment: "a", Tip: 7}
	require.NoError(t, db.Create(comment).Error)
	require.NoError(t, db.Create(&models.Livecomment{UserID: viewer.ID, LivestreamID: ls.ID, Comment: "b", Tip: 2}).Error)
	require.NoError(t, db.Create(&models.Reaction{UserID: viewer.ID, LivestreamID: ls.ID, EmojiName: "heart"}).Error)
	require.NoError(t, db.Create(&models.LivecommentReport{UserID: viewer.ID, LivestreamID: ls.ID, LivecommentID: comment.ID}).Error)
	require.NoError(t, NewViewerRepository(db).Enter(ctx, viewer.ID, ls.ID))

	counts, err := repo.LivestreamCounts(ctx, ls.ID)
	require.NoError(t, err)
	assert.Equal(t, LivestreamCounts{Viewers: 1, MaxTip: 7, Reactions: 1, Reports: 1}, counts)

	viewers, err := repo.OwnerViewers(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), viewers)

	total, err := repo.TotalTips(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), total)
}
