package services

import (
	"context"
	"testing"

	"cast-bridge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectAndRestore(t *testing.T) {
	f := newCastFixture(t, "1")
	svc := NewTweetService(f.repo)
	ctx := context.Background()
	tweet := f.addTweet(t, &models.Tweet{TweetID: "t1", Content: "hi"})

	rejected, err := svc.Reject(ctx, f.user.FID, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.CastStatusRejected, rejected.CastStatus)

	_, err = svc.Reject(ctx, f.user.FID, "t1")
	require.NoError(t, err, "rejecting twice is a no-op")

	_, err = f.casts.CastTweet(ctx, f.user.FID, castRequest("t1", f.user.FID))
	require.ErrorIs(t, err, ErrTweetRejected)

	restored, err := svc.Restore(ctx, f.user.FID, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.CastStatusPending, restored.CastStatus)
	assert.Equal(t, models.CastStatusPending, f.reloadTweet(t, tweet.ID).CastStatus)

	_, err = svc.Restore(ctx, f.user.FID, "t1")
	require.ErrorIs(t, err, ErrTweetNotRejected)
}

func TestRejectCastTweetIsTerminal(t *testing.T) {
	f := newCastFixture(t, "1")
	svc := NewTweetService(f.repo)
	f.addTweet(t, &models.Tweet{TweetID: "done", CastStatus: models.CastStatusCast})

	_, err := svc.Reject(context.Background(), f.user.FID, "done")
	require.ErrorIs(t, err, ErrTweetAlreadyCast)
}

func TestListTweetsFiltersByStatus(t *testing.T) {
	f := newCastFixture(t, "1")
	svc := NewTweetService(f.repo)
	f.addTweet(t, &models.Tweet{TweetID: "a"})
	f.addTweet(t, &models.Tweet{TweetID: "b", CastStatus: models.CastStatusCast})
	f.addTweet(t, &models.Tweet{TweetID: "c"})

	all, err := svc.ListTweets(context.Background(), f.user.FID, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pending, err := svc.ListTweets(context.Background(), f.user.FID, models.CastStatusPending, 10, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = svc.Reject(context.Background(), f.user.FID, "missing")
	require.ErrorIs(t, err, ErrTweetNotFound)
}
