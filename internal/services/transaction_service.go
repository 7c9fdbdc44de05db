package services

import (
	"context"

	"cast-bridge/internal/models"
	"cast-bridge/internal/repository"

	"github.com/rs/zerolog/log"
)

// TransactionService exposes a user's payment ledger
type TransactionService struct {
	repo *repository.Repository
}

func NewTransactionService(repo *repository.Repository) *TransactionService {
	return &TransactionService{repo: repo}
}

// ListTransactions returns the user's ledger, newest first
func (s *TransactionService) ListTransactions(ctx context.Context, fid int64, limit int) ([]*models.Transaction, error) {
	user, err := s.repo.GetUserByFID(ctx, fid)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		log.Error().Err(err).Int64("fid", fid).Msg("Failed to load user")
		return nil, ErrInternal
	}

	transactions, err := s.repo.ListUserTransactions(ctx, user.ID, clampLimit(limit))
	if err != nil {
		log.Error().Err(err).Int64("fid", fid).Msg("Failed to list transactions")
		return nil, ErrInternal
	}
	return transactions, nil
}
