package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"cast-bridge/internal/blockchain"
	"cast-bridge/internal/metrics"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// TokenClient is the subset of ERC-20 operations payments need
type TokenClient interface {
	Allowance(ctx context.Context, owner, spender string) (*big.Int, error)
	BalanceOf(ctx context.Context, account string) (*big.Int, error)
	TransferFrom(ctx context.Context, from, to string, amount *big.Int) (string, error)
}

// FundsCheck is the result of an on-chain allowance and balance check
type FundsCheck struct {
	Sufficient          bool            `json:"sufficient"`
	AllowanceSufficient bool            `json:"allowance_sufficient"`
	BalanceSufficient   bool            `json:"balance_sufficient"`
	Allowance           decimal.Decimal `json:"allowance"`
	Balance             decimal.Decimal `json:"balance"`
}

// PaymentService verifies and executes USDC charges against user wallets on
// behalf of a fixed spender account.
type PaymentService struct {
	token   TokenClient
	spender string
}

// NewPaymentService creates a PaymentService. token may be nil when the chain
// is not configured; every operation then fails with ErrNotConfigured.
func NewPaymentService(token TokenClient, spenderAddress string) *PaymentService {
	return &PaymentService{
		token:   token,
		spender: spenderAddress,
	}
}

// Configured reports whether charges can be executed
func (ps *PaymentService) Configured() bool {
	return ps.token != nil && ps.spender != ""
}

// SpenderAddress returns the account that receives charges
func (ps *PaymentService) SpenderAddress() string {
	return ps.spender
}

// CheckAllowanceAndBalance reads the wallet's allowance for the spender and
// its token balance; both must cover required. RPC failures are returned as
// errors, never as an insufficient result.
func (ps *PaymentService) CheckAllowanceAndBalance(
	ctx context.Context,
	walletAddress string,
	required decimal.Decimal,
) (*FundsCheck, error) {
	if !ps.Configured() {
		return nil, ErrNotConfigured
	}

	requiredUnits, err := blockchain.ToBaseUnits(required)
	if err != nil {
		return nil, fmt.Errorf("invalid required amount: %w", err)
	}

	allowance, err := ps.token.Allowance(ctx, walletAddress, ps.spender)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %w", err)
	}

	balance, err := ps.token.BalanceOf(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}

	check := &FundsCheck{
		AllowanceSufficient: allowance.Cmp(requiredUnits) >= 0,
		BalanceSufficient:   balance.Cmp(requiredUnits) >= 0,
		Allowance:           blockchain.FromBaseUnits(allowance),
		Balance:             blockchain.FromBaseUnits(balance),
	}
	check.Sufficient = check.AllowanceSufficient && check.BalanceSufficient

	return check, nil
}

// Charge moves amount from the user's wallet to the spender with
// transferFrom and returns the transaction hash. A returned error means the
// charge must not be recorded as completed.
func (ps *PaymentService) Charge(ctx context.Context, fromAddress, toAddress string, amount decimal.Decimal) (string, error) {
	if !ps.Configured() {
		return "", ErrNotConfigured
	}
	if !amount.IsPositive() {
		return "", errors.New("charge amount must be positive")
	}

	units, err := blockchain.ToBaseUnits(amount)
	if err != nil {
		return "", fmt.Errorf("invalid charge amount: %w", err)
	}

	txHash, err := ps.token.TransferFrom(ctx, fromAddress, toAddress, units)
	if err != nil {
		metrics.RecordCharge(false, 0)
		log.Error().Err(err).
			Str("from", fromAddress).
			Str("amount", amount.String()).
			Str("tx_hash", txHash).
			Msg("USDC charge failed")
		return "", fmt.Errorf("charge failed: %w", err)
	}

	metrics.RecordCharge(true, amount.InexactFloat64())
	log.Info().
		Str("from", fromAddress).
		Str("amount", amount.String()).
		Str("tx_hash", txHash).
		Msg("USDC charge completed")

	return txHash, nil
}

// WalletBalance returns the wallet's on-chain USDC balance
func (ps *PaymentService) WalletBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error) {
	if ps.token == nil {
		return decimal.Zero, ErrNotConfigured
	}

	balance, err := ps.token.BalanceOf(ctx, walletAddress)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}
	return blockchain.FromBaseUnits(balance), nil
}
