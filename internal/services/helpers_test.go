package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"cast-bridge/internal/database"
	"cast-bridge/internal/farcaster"
	"cast-bridge/internal/lock"
	"cast-bridge/internal/models"
	"cast-bridge/internal/repository"
	"cast-bridge/internal/twitter"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSpender = "0x2222222222222222222222222222222222222222"

var testPrice = decimal.RequireFromString("0.1")

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

type publishCall struct {
	Text   string
	Embeds []string
	Parent string
}

type fakePublisher struct {
	mu         sync.Mutex
	calls      []publishCall
	failOnCall map[int]error
	notReady   bool
}

func (f *fakePublisher) Configured() bool { return !f.notReady }

func (f *fakePublisher) PublishCast(_ context.Context, _ string, text string, embeds []string, parent string) (*farcaster.PublishedCast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.calls) + 1
	f.calls = append(f.calls, publishCall{Text: text, Embeds: embeds, Parent: parent})
	if err, ok := f.failOnCall[n]; ok {
		return nil, err
	}
	return &farcaster.PublishedCast{
		Hash:           fmt.Sprintf("0xcasthash%04d", n),
		AuthorUsername: "alice",
	}, nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePayments struct {
	mu        sync.Mutex
	notReady  bool
	check     *FundsCheck
	checkErr  error
	chargeErr error
	checks    int
	charges   []decimal.Decimal
}

func newFakePayments() *fakePayments {
	return &fakePayments{check: &FundsCheck{
		Sufficient:          true,
		AllowanceSufficient: true,
		BalanceSufficient:   true,
		Allowance:           decimal.NewFromInt(100),
		Balance:             decimal.NewFromInt(100),
	}}
}

func (f *fakePayments) Configured() bool       { return !f.notReady }
func (f *fakePayments) SpenderAddress() string { return testSpender }

func (f *fakePayments) CheckAllowanceAndBalance(_ context.Context, _ string, _ decimal.Decimal) (*FundsCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return f.check, nil
}

func (f *fakePayments) Charge(_ context.Context, _ string, to string, amount decimal.Decimal) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if to != testSpender {
		return "", errors.New("unexpected spender")
	}
	if f.chargeErr != nil {
		return "", f.chargeErr
	}
	f.charges = append(f.charges, amount)
	return fmt.Sprintf("0xtx%04d", len(f.charges)), nil
}

type fakeFetcher struct {
	detail *twitter.TweetDetail
	err    error
	calls  int
}

func (f *fakeFetcher) FetchTweet(_ context.Context, _ string) (*twitter.TweetDetail, error) {
	f.calls++
	return f.detail, f.err
}

type castFixture struct {
	repo      *repository.Repository
	db        *gorm.DB
	publisher *fakePublisher
	payments  *fakePayments
	fetcher   *fakeFetcher
	casts     *CastService
	threads   *ThreadCastService
	user      *models.User
}

func newCastFixture(t *testing.T, balance string) *castFixture {
	t.Helper()
	db := setupTestDB(t)
	repo := repository.NewRepository(db)

	user := &models.User{
		FID:              1001,
		Username:         "alice",
		WalletAddress:    "0x1111111111111111111111111111111111111111",
		SignerUUID:       "signer-uuid",
		IsRegistered:     true,
		SpendingApproved: true,
		USDCBalance:      decimal.RequireFromString(balance),
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))

	f := &castFixture{
		repo:      repo,
		db:        db,
		publisher: &fakePublisher{failOnCall: map[int]error{}},
		payments:  newFakePayments(),
		fetcher:   &fakeFetcher{err: errors.New("not stubbed")},
		user:      user,
	}
	transformer := NewContentTransformer(nil, nil, 2)
	f.casts = NewCastService(repo, transformer, f.publisher, f.fetcher, f.payments, testPrice)
	f.threads = NewThreadCastService(f.casts, lock.NewLocalLocker(), 0)
	return f
}

func (f *castFixture) addTweet(t *testing.T, tweet *models.Tweet) *models.Tweet {
	t.Helper()
	tweet.UserID = f.user.ID
	if tweet.CastStatus == "" {
		tweet.CastStatus = models.CastStatusPending
	}
	require.NoError(t, f.repo.CreateTweet(context.Background(), tweet))
	return tweet
}

func (f *castFixture) reloadUser(t *testing.T) *models.User {
	t.Helper()
	user, err := f.repo.GetUserByFID(context.Background(), f.user.FID)
	require.NoError(t, err)
	return user
}

func (f *castFixture) reloadTweet(t *testing.T, id uint) *models.Tweet {
	t.Helper()
	tweet, err := f.repo.GetTweetByID(context.Background(), id)
	require.NoError(t, err)
	return tweet
}

func (f *castFixture) transactionCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&count).Error)
	return count
}

func intPtr(v int) *int { return &v }
