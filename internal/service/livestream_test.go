package service

import (
	"context"
	"testing"

	"isupipe/internal/models"
	"isupipe/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostComment_TipsAndMaxTip(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	owner, ls := h.livestream(t)
	viewer := testutil.CreateUser(t, h.db, "")

	for _, tip := range []int64{5, 2, 9, 1} {
		_, err := h.livestreams.PostComment(ctx, PostCommentInput{
			UserID: viewer.ID, LivestreamID: ls.ID, Comment: "nice", Tip: tip,
		})
		require.NoError(t, err)
	}

	got := h.durableLivestream(t, ls.ID)
	assert.Equal(t, int64(9), got.MaxTip)
	assert.Equal(t, int64(17), got.TotalTip)
	assert.Equal(t, int64(17), got.Score)
	assert.Equal(t, h.tipSum(t, ls.ID), got.TotalTip)

	gotOwner := h.durableUser(t, owner.ID)
	assert.Equal(t, int64(4), gotOwner.TotalLivecomments)
	assert.Equal(t, int64(17), gotOwner.TotalTip)
	assert.Equal(t, int64(17), gotOwner.Score)

	// The commenter's own counters are untouched.
	assert.Equal(t, userCounters(viewer), userCounters(h.durableUser(t, viewer.ID)))
	assert.Equal(t, []string{EventLivecomment, EventLivecomment, EventLivecomment, EventLivecomment}, h.events.types())
}

func TestPostComment_Validation(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	_, ls := h.livestream(t)

	_, err := h.livestreams.PostComment(ctx, PostCommentInput{UserID: 1, LivestreamID: ls.ID})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = h.livestreams.PostComment(ctx, PostCommentInput{UserID: 1, LivestreamID: ls.ID, Comment: "x", Tip: -1})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = h.livestreams.PostComment(ctx, PostCommentInput{UserID: 1, LivestreamID: 9999, Comment: "x"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestFailedActionsPublishNothing(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	_, ls := h.livestream(t)
	viewer := testutil.CreateUser(t, h.db, "")

	_, err := h.livestreams.PostComment(ctx, PostCommentInput{UserID: viewer.ID, LivestreamID: 9999, Comment: "x"})
	require.Error(t, err)
	_, err = h.livestreams.PostReaction(ctx, PostReactionInput{UserID: viewer.ID, LivestreamID: 9999, EmojiName: "heart"})
	require.Error(t, err)
	_, err = h.livestreams.ReportComment(ctx, ReportCommentInput{UserID: viewer.ID, LivestreamID: ls.ID, LivecommentID: 9999})
	require.Error(t, err)
	// Exiting without having entered commits nothing worth announcing.
	require.NoError(t, h.livestreams.Exit(ctx, viewer.ID, ls.ID))

	assert.Empty(t, h.events.types())
}

func TestPostReaction_CreditsLivestreamAndOwner(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	owner, ls := h.livestream(t)
	viewer := testutil.CreateUser(t, h.db, "")

	for range 3 {
		_, err := h.livestreams.PostReaction(ctx, PostReactionInput{UserID: viewer.ID, LivestreamID: ls.ID, EmojiName: "+1"})
		require.NoError(t, err)
	}

	got := h.durableLivestream(t, ls.ID)
	assert.Equal(t, int64(3), got.TotalReactions)
	assert.Equal(t, int64(3), got.Score)
	gotOwner := h.durableUser(t, owner.ID)
	assert.Equal(t, int64(3), gotOwner.TotalReactions)
	assert.Equal(t, int64(3), gotOwner.Score)

	reactions, err := h.livestreams.ListReactions(ctx, ls.ID, 2)
	require.NoError(t, err)
	assert.Len(t, reactions, 2)

	_, err = h.livestreams.PostReaction(ctx, PostReactionInput{UserID: viewer.ID, LivestreamID: ls.ID})
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestReportComment(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	owner, ls := h.livestream(t)
	viewer := testutil.CreateUser(t, h.db, "")
	other := testutil.CreateLivestream(t, h.db, owner.ID)

	comment, err := h.livestreams.PostComment(ctx, PostCommentInput{UserID: viewer.ID, LivestreamID: ls.ID, Comment: "hello"})
	require.NoError(t, err)

	_, err = h.livestreams.ReportComment(ctx, ReportCommentInput{UserID: viewer.ID, LivestreamID: ls.ID, LivecommentID: comment.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.durableLivestream(t, ls.ID).TotalReports)

	t.Run("comment of another livestream", func(t *testing.T) {
		_, err := h.livestreams.ReportComment(ctx, ReportCommentInput{UserID: viewer.ID, LivestreamID: other.ID, LivecommentID: comment.ID})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
		assert.Zero(t, h.durableLivestream(t, other.ID).TotalReports)
	})

	t.Run("reports are owner only", func(t *testing.T) {
		_, err := h.livestreams.ListReports(ctx, viewer.ID, ls.ID)
		assert.True(t, models.IsCode(err, models.CodeForbidden))

		reports, err := h.livestreams.ListReports(ctx, owner.ID, ls.ID)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.Equal(t, comment.ID, reports[0].LivecommentID)
	})
}

func TestEnterExit_RoundTrip(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	owner, ls := h.livestream(t)
	viewer := testutil.CreateUser(t, h.db, "")

	lsBefore := livestreamCounters(h.durableLivestream(t, ls.ID))
	ownerBefore := userCounters(h.durableUser(t, owner.ID))

	require.NoError(t, h.livestreams.Enter(ctx, viewer.ID, ls.ID))
	assert.Equal(t, int64(1), h.durableLivestream(t, ls.ID).ViewersCount)
	assert.Equal(t, int64(1), h.durableUser(t, owner.ID).ViewersCount)

	require.NoError(t, h.livestreams.Exit(ctx, viewer.ID, ls.ID))
	assert.Equal(t, lsBefore, livestreamCounters(h.durableLivestream(t, ls.ID)))
	assert.Equal(t, ownerBefore, userCounters(h.durableUser(t, owner.ID)))

	// Exiting again is a no-op rather than a negative count.
	require.NoError(t, h.livestreams.Exit(ctx, viewer.ID, ls.ID))
	assert.Equal(t, lsBefore, livestreamCounters(h.durableLivestream(t, ls.ID)))

	err := h.livestreams.Enter(ctx, viewer.ID, 9999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestExit_RemovesEveryEntryOfTheViewer(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	owner, ls := h.livestream(t)
	viewer := testutil.CreateUser(t, h.db, "")
	other := testutil.CreateUser(t, h.db, "")

	require.NoError(t, h.livestreams.Enter(ctx, viewer.ID, ls.ID))
	require.NoError(t, h.livestreams.Enter(ctx, viewer.ID, ls.ID))
	require.NoError(t, h.livestreams.Enter(ctx, other.ID, ls.ID))
	assert.Equal(t, int64(3), h.durableLivestream(t, ls.ID).ViewersCount)

	require.NoError(t, h.livestreams.Exit(ctx, viewer.ID, ls.ID))
	assert.Equal(t, int64(1), h.durableLivestream(t, ls.ID).ViewersCount)
	assert.Equal(t, int64(1), h.durableUser(t, owner.ID).ViewersCount)

	stats, err := h.ranking.UserStatistics(ctx, owner.Name)
	require.NoError(t, err)
	assert.Equal(t, h.durableUser(t, owner.ID).ViewersCount, stats.ViewersCount)
}

func TestLivestreamReads(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	owner, ls := h.livestream(t)

	got, err := h.livestreams.Get(ctx, ls.ID)
	require.NoError(t, err)
	assert.Equal(t, ls.Title, got.Title)

	_, err = h.livestreams.Get(ctx, 9999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	owned, err := h.livestreams.ListByUser(ctx, owner.Name)
	require.NoError(t, err)
	require.Len(t, owned, 1)

	_, err = h.livestreams.ListByUser(ctx, "nobody")
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	comments, err := h.livestreams.ListComments(ctx, ls.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, comments)

	_, err = h.livestreams.Search(ctx, "", -1)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
