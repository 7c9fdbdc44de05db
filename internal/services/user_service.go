package services

import (
	"context"

	"cast-bridge/internal/metrics"
	"cast-bridge/internal/models"
	"cast-bridge/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// BalanceReader reads a wallet's on-chain USDC balance
type BalanceReader interface {
	WalletBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error)
}

// UserService handles profile, spending approval and cached balance
type UserService struct {
	repo     *repository.Repository
	balances BalanceReader
}

// NewUserService creates a new UserService
func NewUserService(repo *repository.Repository, balances BalanceReader) *UserService {
	return &UserService{repo: repo, balances: balances}
}

// GetProfile retrieves a user by fid
func (s *UserService) GetProfile(ctx context.Context, fid int64) (*models.User, error) {
	user, err := s.repo.GetUserByFID(ctx, fid)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		log.Error().Err(err).Int64("fid", fid).Msg("Failed to load user")
		return nil, ErrInternal
	}
	return user, nil
}

// UpdateSpendingApproval records whether the user has approved the spender.
// A zero limit means no limit beyond the on-chain allowance.
func (s *UserService) UpdateSpendingApproval(ctx context.Context, fid int64, approved bool, limit decimal.Decimal) (*models.User, error) {
	if limit.IsNegative() {
		return nil, ErrInvalidRequest.WithMessage("Spending limit must not be negative")
	}

	user, err := s.GetProfile(ctx, fid)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateSpendingApproval(ctx, user.ID, approved, limit); err != nil {
		log.Error().Err(err).Int64("fid", fid).Msg("Failed to update spending approval")
		return nil, ErrInternal
	}

	log.Info().Int64("fid", fid).Bool("approved", approved).Str("limit", limit.String()).Msg("Spending approval updated")
	user.SpendingApproved = approved
	user.SpendingLimit = limit
	return user, nil
}

// RefreshBalance replaces the cached USDC balance with the on-chain balance
func (s *UserService) RefreshBalance(ctx context.Context, fid int64) (*models.User, error) {
	user, err := s.GetProfile(ctx, fid)
	if err != nil {
		return nil, err
	}
	if !user.HasWallet() {
		return nil, ErrMissingWallet
	}

	if err := s.syncBalance(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SyncBalances refreshes the cached balance of up to limit approved users,
// least recently synced first. It returns how many were updated.
func (s *UserService) SyncBalances(ctx context.Context, limit int) (int, error) {
	users, err := s.repo.ListBalanceSyncCandidates(ctx, limit)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, user := range users {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		if err := s.syncBalance(ctx, user); err != nil {
			continue
		}
		updated++
	}
	return updated, nil
}

func (s *UserService) syncBalance(ctx context.Context, user *models.User) error {
	if s.balances == nil {
		return ErrNotConfigured
	}

	balance, err := s.balances.WalletBalance(ctx, user.WalletAddress)
	if err != nil {
		metrics.RecordBalanceSync(false)
		log.Warn().Err(err).Int64("fid", user.FID).Msg("Failed to read on-chain balance")
		return ErrChainUnavailable
	}

	if err := s.repo.UpdateCachedBalance(ctx, user.ID, balance); err != nil {
		metrics.RecordBalanceSync(false)
		log.Error().Err(err).Int64("fid", user.FID).Msg("Failed to update cached balance")
		return ErrInternal
	}

	metrics.RecordBalanceSync(true)
	user.USDCBalance = balance
	return nil
}
