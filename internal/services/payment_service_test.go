package services

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	allowance   *big.Int
	balance     *big.Int
	readErr     error
	transferErr error
	transfers   []*big.Int
}

func (f *fakeToken) Allowance(_ context.Context, _, _ string) (*big.Int, error) {
	return f.allowance, f.readErr
}

func (f *fakeToken) BalanceOf(_ context.Context, _ string) (*big.Int, error) {
	return f.balance, f.readErr
}

func (f *fakeToken) TransferFrom(_ context.Context, _, _ string, amount *big.Int) (string, error) {
	if f.transferErr != nil {
		return "", f.transferErr
	}
	f.transfers = append(f.transfers, amount)
	return "0xtransfer", nil
}

func TestCheckAllowanceAndBalance(t *testing.T) {
	token := &fakeToken{allowance: big.NewInt(100000), balance: big.NewInt(99999)}
	ps := NewPaymentService(token, testSpender)

	check, err := ps.CheckAllowanceAndBalance(context.Background(), "0xuser", testPrice)
	require.NoError(t, err)
	assert.True(t, check.AllowanceSufficient, "allowance equal to the price is enough")
	assert.False(t, check.BalanceSufficient)
	assert.False(t, check.Sufficient)
	assert.True(t, check.Balance.Equal(decimal.RequireFromString("0.099999")))
}

func TestCheckAllowanceAndBalanceRPCFailure(t *testing.T) {
	ps := NewPaymentService(&fakeToken{readErr: errors.New("dial tcp: timeout")}, testSpender)

	check, err := ps.CheckAllowanceAndBalance(context.Background(), "0xuser", testPrice)
	require.Error(t, err)
	assert.Nil(t, check)
}

func TestChargeConvertsToBaseUnits(t *testing.T) {
	token := &fakeToken{}
	ps := NewPaymentService(token, testSpender)

	txHash, err := ps.Charge(context.Background(), "0xuser", testSpender, testPrice)
	require.NoError(t, err)
	assert.Equal(t, "0xtransfer", txHash)
	require.Len(t, token.transfers, 1)
	assert.Equal(t, big.NewInt(100000), token.transfers[0])
}

func TestChargeFailurePropagates(t *testing.T) {
	ps := NewPaymentService(&fakeToken{transferErr: errors.New("execution reverted")}, testSpender)

	txHash, err := ps.Charge(context.Background(), "0xuser", testSpender, testPrice)
	require.Error(t, err)
	assert.Empty(t, txHash)
}

func TestPaymentServiceNotConfigured(t *testing.T) {
	ps := NewPaymentService(nil, "")
	assert.False(t, ps.Configured())

	_, err := ps.CheckAllowanceAndBalance(context.Background(), "0xuser", testPrice)
	require.ErrorIs(t, err, ErrNotConfigured)
	_, err = ps.Charge(context.Background(), "0xuser", testSpender, testPrice)
	require.ErrorIs(t, err, ErrNotConfigured)
}
