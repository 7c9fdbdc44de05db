package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"cast-bridge/internal/database"
	"cast-bridge/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func intPtr(v int) *int { return &v }

func seedUser(t *testing.T, repo *Repository, fid int64, balance string) *models.User {
	t.Helper()
	user := &models.User{
		FID:              fid,
		Username:         fmt.Sprintf("user%d", fid),
		WalletAddress:    "0x1111111111111111111111111111111111111111",
		SignerUUID:       "signer",
		IsRegistered:     true,
		SpendingApproved: true,
		USDCBalance:      decimal.RequireFromString(balance),
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

func TestGetUserByFID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	created := seedUser(t, repo, 42, "2.5")

	user, err := repo.GetUserByFID(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)
	require.Equal(t, int64(42), user.FID)
	require.True(t, user.USDCBalance.Equal(decimal.RequireFromString("2.5")))

	var fid int64
	require.NoError(t, db.Raw("SELECT fid FROM users WHERE id = ?", created.ID).Scan(&fid).Error)
	require.Equal(t, int64(42), fid)

	_, err = repo.GetUserByFID(ctx, 43)
	require.True(t, IsNotFound(err))
}

func TestClaimTweetIsExclusive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	user := seedUser(t, repo, 1, "1")

	tweet := &models.Tweet{TweetID: "100", UserID: user.ID, CastStatus: models.CastStatusPending}
	require.NoError(t, repo.CreateTweet(ctx, tweet))

	won, err := repo.ClaimTweet(ctx, tweet.ID, models.CastableStatuses)
	require.NoError(t, err)
	require.True(t, won)

	won, err = repo.ClaimTweet(ctx, tweet.ID, models.CastableStatuses)
	require.NoError(t, err)
	require.False(t, won, "second claim must lose")

	require.NoError(t, repo.ReleaseTweetClaim(ctx, tweet.ID, models.CastStatusPending))
	stored, err := repo.GetTweetByID(ctx, tweet.ID)
	require.NoError(t, err)
	require.Equal(t, models.CastStatusPending, stored.CastStatus)
	require.Nil(t, stored.ClaimedAt)
}

func TestGetConversationTweetsOrdersByPosition(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	user := seedUser(t, repo, 2, "1")

	for _, tw := range []*models.Tweet{
		{TweetID: "c3", UserID: user.ID, ConversationID: "conv", ThreadPosition: intPtr(3)},
		{TweetID: "c1", UserID: user.ID, ConversationID: "conv"},
		{TweetID: "c2", UserID: user.ID, ConversationID: "conv", ThreadPosition: intPtr(2)},
		{TweetID: "other", UserID: user.ID, ConversationID: "other"},
	} {
		require.NoError(t, repo.CreateTweet(ctx, tw))
	}

	tweets, err := repo.GetConversationTweets(ctx, user.ID, "conv")
	require.NoError(t, err)
	require.Len(t, tweets, 3)
	require.Equal(t, "c1", tweets[0].TweetID)
	require.Equal(t, "c2", tweets[1].TweetID)
	require.Equal(t, "c3", tweets[2].TweetID)
}

func TestCompleteCastPayment(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	user := seedUser(t, repo, 3, "1")

	tweet := &models.Tweet{TweetID: "200", UserID: user.ID, CastStatus: models.CastStatusPending}
	require.NoError(t, repo.CreateTweet(ctx, tweet))
	won, err := repo.ClaimTweet(ctx, tweet.ID, models.CastableStatuses)
	require.NoError(t, err)
	require.True(t, won)

	price := decimal.RequireFromString("0.1")
	tx, err := repo.CompleteCastPayment(ctx, CastSettlement{
		UserID:      user.ID,
		TweetID:     &tweet.ID,
		Amount:      price,
		TxHash:      "0xabc",
		Description: "Cast payment",
		Metadata: models.CastPaymentMetadata{CastResults: []models.TweetCastResult{
			{TweetID: "200", Success: true, CastHash: "0xcast"},
		}},
		Tweets: []SettledTweet{{ID: tweet.ID, CastHash: "0xcast", CastURL: "https://warpcast.com/u/0xcast"}},
	})
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusCompleted, tx.Status)

	var meta models.CastPaymentMetadata
	require.NoError(t, json.Unmarshal(tx.Metadata, &meta))
	require.Len(t, meta.CastResults, 1)

	stored, err := repo.GetTweetByID(ctx, tweet.ID)
	require.NoError(t, err)
	require.Equal(t, models.CastStatusCast, stored.CastStatus)
	require.True(t, stored.PaymentProcessed)
	require.Equal(t, "0xcast", *stored.CastHash)
	require.True(t, stored.CastPrice.Equal(price))

	reloaded, err := repo.GetUserByFID(ctx, user.FID)
	require.NoError(t, err)
	require.True(t, reloaded.USDCBalance.Equal(decimal.RequireFromString("0.9")), reloaded.USDCBalance.String())
	require.True(t, reloaded.TotalSpent.Equal(price), reloaded.TotalSpent.String())

	// A second settlement for the same tweet must not go through.
	_, err = repo.CompleteCastPayment(ctx, CastSettlement{
		UserID: user.ID,
		Amount: price,
		TxHash: "0xdef",
		Tweets: []SettledTweet{{ID: tweet.ID, CastHash: "0xcast"}},
	})
	require.True(t, errors.Is(err, ErrSettlementConflict))

	txs, err := repo.ListUserTransactions(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	reloaded, err = repo.GetUserByFID(ctx, user.FID)
	require.NoError(t, err)
	require.True(t, reloaded.TotalSpent.Equal(price))
}

func TestTransitionTweetStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	user := seedUser(t, repo, 4, "1")

	tweet := &models.Tweet{TweetID: "300", UserID: user.ID, CastStatus: models.CastStatusRejected}
	require.NoError(t, repo.CreateTweet(ctx, tweet))

	ok, err := repo.TransitionTweetStatus(ctx, tweet.ID, models.CastStatusRejected, models.CastStatusPending)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.TransitionTweetStatus(ctx, tweet.ID, models.CastStatusRejected, models.CastStatusPending)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUpdateTweetContent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	user := seedUser(t, repo, 5, "1")

	tweet := &models.Tweet{TweetID: "400", UserID: user.ID, Content: "short…"}
	require.NoError(t, repo.CreateTweet(ctx, tweet))

	videos := []models.TweetVideo{{URL: "https://video.twimg.com/v.mp4", Bitrate: 832000, ContentType: "video/mp4"}}
	require.NoError(t, repo.UpdateTweetContent(ctx, tweet.ID, "full text", []string{"https://pbs.twimg.com/a.jpg"}, videos))

	stored, err := repo.GetTweetByTweetID(ctx, "400")
	require.NoError(t, err)
	require.Equal(t, "full text", stored.Content)
	require.Equal(t, []string{"https://pbs.twimg.com/a.jpg"}, []string(stored.Images))
	require.Len(t, stored.Videos, 1)
	require.Equal(t, 832000, stored.Videos[0].Bitrate)

	_, err = repo.GetTweetByTweetID(ctx, "missing")
	require.True(t, IsNotFound(err))
}
