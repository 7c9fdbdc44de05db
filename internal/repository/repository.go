package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cast-bridge/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrSettlementConflict is returned when a tweet in a settlement was already
// paid for or is no longer in a payable state.
var ErrSettlementConflict = errors.New("tweet already settled or not payable")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// IsNotFound reports whether err is a "record not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// CreateUser creates a new user
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetUserByFID retrieves a user by Farcaster fid
func (r *Repository) GetUserByFID(ctx context.Context, fid int64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("fid = ?", fid).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateSpendingApproval sets the spending approval flag and limit
func (r *Repository) UpdateSpendingApproval(ctx context.Context, userID uint, approved bool, limit decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"spending_approved": approved,
			"spending_limit":    limit,
		}).Error
}

// UpdateCachedBalance overwrites the cached USDC balance with a chain reading
func (r *Repository) UpdateCachedBalance(ctx context.Context, userID uint, balance decimal.Decimal) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"usdc_balance":      balance,
			"balance_synced_at": now,
		}).Error
}

// ListBalanceSyncCandidates returns approved users with a wallet on file
func (r *Repository) ListBalanceSyncCandidates(ctx context.Context, limit int) ([]*models.User, error) {
	var users []*models.User
	err := r.db.WithContext(ctx).
		Where("spending_approved = ? AND wallet_address <> ''", true).
		Order("balance_synced_at ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// CreateTweet stores an ingested tweet
func (r *Repository) CreateTweet(ctx context.Context, tweet *models.Tweet) error {
	return r.db.WithContext(ctx).Create(tweet).Error
}

// GetTweetByTweetID retrieves a tweet by its Twitter/X id
func (r *Repository) GetTweetByTweetID(ctx context.Context, tweetID string) (*models.Tweet, error) {
	var tweet models.Tweet
	err := r.db.WithContext(ctx).Where("tweet_id = ?", tweetID).First(&tweet).Error
	if err != nil {
		return nil, err
	}
	return &tweet, nil
}

// GetTweetByID retrieves a tweet by its internal id
func (r *Repository) GetTweetByID(ctx context.Context, id uint) (*models.Tweet, error) {
	var tweet models.Tweet
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tweet).Error
	if err != nil {
		return nil, err
	}
	return &tweet, nil
}

// GetConversationTweets retrieves a user's tweets in a conversation ordered by
// thread position. The root tweet may have no position and sorts first.
func (r *Repository) GetConversationTweets(ctx context.Context, userID uint, conversationID string) ([]*models.Tweet, error) {
	var tweets []*models.Tweet
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Order("COALESCE(thread_position, 0) ASC").
		Order("id ASC").
		Find(&tweets).Error
	if err != nil {
		return nil, err
	}
	return tweets, nil
}

// ListUserTweets retrieves a user's tweets, optionally filtered by status
func (r *Repository) ListUserTweets(
	ctx context.Context,
	userID uint,
	status models.CastStatus,
	limit int,
	offset int,
) ([]*models.Tweet, error) {
	var tweets []*models.Tweet
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("cast_status = ?", status)
	}
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tweets).Error
	if err != nil {
		return nil, err
	}
	return tweets, nil
}

// ClaimTweet atomically moves a tweet into the in-flight casting state if its
// current status is one of from. It reports whether this caller won the claim.
func (r *Repository) ClaimTweet(ctx context.Context, id uint, from []models.CastStatus) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Tweet{}).
		Where("id = ? AND cast_status IN ?", id, from).
		Updates(map[string]interface{}{
			"cast_status": models.CastStatusCasting,
			"claimed_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseTweetClaim returns a claimed tweet to the given status
func (r *Repository) ReleaseTweetClaim(ctx context.Context, id uint, status models.CastStatus) error {
	return r.db.WithContext(ctx).Model(&models.Tweet{}).
		Where("id = ? AND cast_status = ?", id, models.CastStatusCasting).
		Updates(map[string]interface{}{
			"cast_status": status,
			"claimed_at":  nil,
		}).Error
}

// TransitionTweetStatus moves a tweet from one status to another, reporting
// whether the tweet was in the expected status.
func (r *Repository) TransitionTweetStatus(ctx context.Context, id uint, from, to models.CastStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Tweet{}).
		Where("id = ? AND cast_status = ?", id, from).
		Update("cast_status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateTweetContent backfills the full text and media of a truncated tweet
func (r *Repository) UpdateTweetContent(
	ctx context.Context,
	id uint,
	content string,
	images []string,
	videos []models.TweetVideo,
) error {
	return r.db.WithContext(ctx).Model(&models.Tweet{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content": content,
			"images":  datatypes.JSONSlice[string](images),
			"videos":  datatypes.JSONSlice[models.TweetVideo](videos),
		}).Error
}

// MarkTweetFailed records a failed post attempt
func (r *Repository) MarkTweetFailed(ctx context.Context, id uint, reason string) error {
	return r.db.WithContext(ctx).Model(&models.Tweet{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"cast_status": models.CastStatusFailed,
			"cast_error":  reason,
			"claimed_at":  nil,
		}).Error
}

// MarkTweetPosted records a successful post that has not been paid for. The
// status is either cast (free by policy) or posted_unpaid (charge failed).
func (r *Repository) MarkTweetPosted(
	ctx context.Context,
	id uint,
	castHash string,
	castURL string,
	status models.CastStatus,
	castError string,
) error {
	updates := map[string]interface{}{
		"cast_status": status,
		"cast_hash":   castHash,
		"cast_url":    castURL,
		"cast_at":     time.Now(),
		"claimed_at":  nil,
	}
	if castError != "" {
		updates["cast_error"] = castError
	}
	return r.db.WithContext(ctx).Model(&models.Tweet{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SettledTweet is one posted tweet covered by a settlement
type SettledTweet struct {
	ID       uint
	CastHash string
	CastURL  string
}

// CastSettlement describes a completed on-chain charge for one or more casts
type CastSettlement struct {
	UserID      uint
	TweetID     *uint
	Amount      decimal.Decimal
	TxHash      string
	Description string
	Metadata    models.CastPaymentMetadata
	Tweets      []SettledTweet
}

// CompleteCastPayment persists a paid cast atomically: tweets are marked cast
// and paid, the user's cached balance and total spent are adjusted, and a
// ledger entry is appended.
func (r *Repository) CompleteCastPayment(ctx context.Context, s CastSettlement) (*models.Transaction, error) {
	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction metadata: %w", err)
	}

	transaction := &models.Transaction{
		Reference:   uuid.New(),
		UserID:      s.UserID,
		TweetID:     s.TweetID,
		Type:        models.TransactionTypeCastPayment,
		Amount:      s.Amount,
		Currency:    "USDC",
		Status:      models.TransactionStatusCompleted,
		TxHash:      s.TxHash,
		Description: s.Description,
		Metadata:    datatypes.JSON(metadata),
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, t := range s.Tweets {
			result := tx.Model(&models.Tweet{}).
				Where("id = ? AND payment_processed = ? AND cast_status IN ?", t.ID, false,
					[]models.CastStatus{models.CastStatusCasting, models.CastStatusPostedUnpaid}).
				Updates(map[string]interface{}{
					"cast_status":       models.CastStatusCast,
					"cast_hash":         t.CastHash,
					"cast_url":          t.CastURL,
					"cast_at":           gorm.Expr("COALESCE(cast_at, ?)", now),
					"cast_price":        s.Amount,
					"cast_error":        nil,
					"payment_processed": true,
					"payment_tx_hash":   s.TxHash,
					"claimed_at":        nil,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected != 1 {
				return fmt.Errorf("%w: tweet %d", ErrSettlementConflict, t.ID)
			}
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", s.UserID).
			Updates(map[string]interface{}{
				"usdc_balance": gorm.Expr("usdc_balance - ?", s.Amount),
				"total_spent":  gorm.Expr("total_spent + ?", s.Amount),
			}).Error; err != nil {
			return err
		}

		return tx.Create(transaction).Error
	})
	if err != nil {
		return nil, err
	}

	return transaction, nil
}

// ListUserTransactions retrieves a user's ledger, newest first
func (r *Repository) ListUserTransactions(ctx context.Context, userID uint, limit int) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}
