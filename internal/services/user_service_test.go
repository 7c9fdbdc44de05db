package services

import (
	"context"
	"errors"
	"testing"

	"cast-bridge/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBalances struct {
	balance decimal.Decimal
	err     error
}

func (f *fakeBalances) WalletBalance(_ context.Context, _ string) (decimal.Decimal, error) {
	return f.balance, f.err
}

func TestRefreshBalance(t *testing.T) {
	f := newCastFixture(t, "0.05")
	svc := NewUserService(f.repo, &fakeBalances{balance: decimal.RequireFromString("3.25")})

	user, err := svc.RefreshBalance(context.Background(), f.user.FID)
	require.NoError(t, err)
	assert.True(t, user.USDCBalance.Equal(decimal.RequireFromString("3.25")))

	stored := f.reloadUser(t)
	assert.True(t, stored.USDCBalance.Equal(decimal.RequireFromString("3.25")))
	assert.NotNil(t, stored.BalanceSyncedAt)
}

func TestRefreshBalanceChainFailure(t *testing.T) {
	f := newCastFixture(t, "0.05")
	svc := NewUserService(f.repo, &fakeBalances{err: errors.New("rpc down")})

	_, err := svc.RefreshBalance(context.Background(), f.user.FID)
	require.ErrorIs(t, err, ErrChainUnavailable)
	assert.True(t, f.reloadUser(t).USDCBalance.Equal(decimal.RequireFromString("0.05")))
}

func TestUpdateSpendingApproval(t *testing.T) {
	f := newCastFixture(t, "1")
	svc := NewUserService(f.repo, nil)
	ctx := context.Background()

	_, err := svc.UpdateSpendingApproval(ctx, f.user.FID, true, decimal.NewFromInt(-1))
	require.ErrorIs(t, err, ErrInvalidRequest)

	user, err := svc.UpdateSpendingApproval(ctx, f.user.FID, false, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.False(t, user.SpendingApproved)

	stored := f.reloadUser(t)
	assert.False(t, stored.SpendingApproved)
	assert.True(t, stored.SpendingLimit.Equal(decimal.NewFromInt(5)))

	_, err = svc.GetProfile(ctx, 777)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestSyncBalances(t *testing.T) {
	f := newCastFixture(t, "0")
	require.NoError(t, f.repo.CreateUser(context.Background(), &models.User{FID: 2002, Username: "nowallet", SpendingApproved: true}))
	svc := NewUserService(f.repo, &fakeBalances{balance: decimal.NewFromInt(7)})

	updated, err := svc.SyncBalances(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, updated, "users without a wallet are skipped")
	assert.True(t, f.reloadUser(t).USDCBalance.Equal(decimal.NewFromInt(7)))
}
