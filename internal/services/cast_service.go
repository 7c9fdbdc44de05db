package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cast-bridge/internal/farcaster"
	"cast-bridge/internal/metrics"
	"cast-bridge/internal/models"
	"cast-bridge/internal/repository"
	"cast-bridge/internal/twitter"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CastPublisher posts casts to Farcaster
type CastPublisher interface {
	Configured() bool
	PublishCast(ctx context.Context, signerUUID, text string, embeds []string, parentHash string) (*farcaster.PublishedCast, error)
}

// TweetFetcher retrieves the untruncated text and media of a tweet
type TweetFetcher interface {
	FetchTweet(ctx context.Context, tweetID string) (*twitter.TweetDetail, error)
}

// PaymentExecutor checks and executes on-chain charges
type PaymentExecutor interface {
	Configured() bool
	SpenderAddress() string
	CheckAllowanceAndBalance(ctx context.Context, walletAddress string, required decimal.Decimal) (*FundsCheck, error)
	Charge(ctx context.Context, fromAddress, toAddress string, amount decimal.Decimal) (string, error)
}

// CastService casts single tweets to Farcaster and charges for them. The
// post happens first; the charge only follows a successful post.
type CastService struct {
	repo        *repository.Repository
	transformer *ContentTransformer
	publisher   CastPublisher
	fetcher     TweetFetcher
	payments    PaymentExecutor
	price       decimal.Decimal
}

// NewCastService creates a CastService. fetcher may be nil, in which case
// truncated tweets are cast as stored.
func NewCastService(
	repo *repository.Repository,
	transformer *ContentTransformer,
	publisher CastPublisher,
	fetcher TweetFetcher,
	payments PaymentExecutor,
	price decimal.Decimal,
) *CastService {
	return &CastService{
		repo:        repo,
		transformer: transformer,
		publisher:   publisher,
		fetcher:     fetcher,
		payments:    payments,
		price:       price,
	}
}

// Price returns the unit cost of one cast operation
func (s *CastService) Price() decimal.Decimal {
	return s.price
}

// CastTweet posts one tweet as a cast and charges the unit cost.
//
// A returned error is always a *CastError and means nothing was posted or
// charged. A result with outcome partial means the cast is live but the
// payment did not complete; the cast hash is included so the caller does not
// post it again.
func (s *CastService) CastTweet(ctx context.Context, authFID int64, req models.CastTweetRequest) (*models.SingleCastResult, error) {
	if strings.TrimSpace(req.TweetID) == "" || req.FID == 0 {
		return nil, ErrMissingFields.WithMessage("Missing required fields: tweet_id and fid")
	}
	if req.FID != authFID {
		return nil, ErrFIDMismatch
	}
	if err := s.checkConfigured(); err != nil {
		return nil, err
	}

	logger := log.With().Int64("fid", req.FID).Str("tweet_id", req.TweetID).Logger()

	user, err := s.loadPayer(ctx, req.FID, s.price)
	if err != nil {
		return nil, err
	}

	tweet, err := s.repo.GetTweetByTweetID(ctx, req.TweetID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTweetNotFound
		}
		logger.Error().Err(err).Str("step", "load_tweet").Msg("Failed to load tweet")
		return nil, ErrInternal
	}
	if tweet.UserID != user.ID {
		return nil, ErrTweetNotFound
	}

	previousStatus := tweet.CastStatus
	if err := s.claim(ctx, tweet); err != nil {
		return nil, err
	}

	s.backfillTruncated(ctx, tweet)

	payload := s.transformer.Transform(ctx, TransformInput{Tweet: tweet, Override: &req.ContentOverride})

	cast, err := s.post(ctx, user, payload, "")
	if err != nil {
		reason := postFailureReason(err)
		if markErr := s.repo.MarkTweetFailed(ctx, tweet.ID, reason); markErr != nil {
			logger.Error().Err(markErr).Msg("Failed to mark tweet failed")
			_ = s.repo.ReleaseTweetClaim(ctx, tweet.ID, previousStatus)
		}
		logger.Warn().Err(err).Str("step", "post").Msg("Cast rejected by Farcaster")
		metrics.RecordCast("single", string(models.CastOutcomeRejected))
		return nil, ErrPostRejected.WithMessage("Failed to post cast: " + reason)
	}

	castURL := cast.URL(user.Username)
	result := &models.SingleCastResult{
		TweetID:  tweet.TweetID,
		CastHash: cast.Hash,
		CastURL:  castURL,
		Cost:     decimal.Zero,
	}

	txHash, err := s.payments.Charge(ctx, user.WalletAddress, s.payments.SpenderAddress(), s.price)
	if err != nil {
		logger.Error().Err(err).Str("step", "charge").Str("cast_hash", cast.Hash).Msg("Cast posted but payment failed")
		if markErr := s.repo.MarkTweetPosted(ctx, tweet.ID, cast.Hash, castURL, models.CastStatusPostedUnpaid, "payment failed: "+err.Error()); markErr != nil {
			logger.Error().Err(markErr).Msg("Failed to record unpaid cast")
		}
		result.Outcome = models.CastOutcomePartial
		result.Error = "Cast posted but payment failed. No charge was made; settle the payment to complete this cast."
		metrics.RecordCast("single", string(result.Outcome))
		return result, nil
	}

	tweetID := tweet.ID
	_, err = s.repo.CompleteCastPayment(ctx, repository.CastSettlement{
		UserID:      user.ID,
		TweetID:     &tweetID,
		Amount:      s.price,
		TxHash:      txHash,
		Description: fmt.Sprintf("Cast payment for tweet %s", tweet.TweetID),
		Metadata: models.CastPaymentMetadata{
			ConversationID: tweet.ConversationID,
			CastResults: []models.TweetCastResult{{
				TweetID:  tweet.TweetID,
				Position: tweet.ThreadPosition,
				Success:  true,
				CastHash: cast.Hash,
				CastURL:  castURL,
			}},
		},
		Tweets: []repository.SettledTweet{{ID: tweet.ID, CastHash: cast.Hash, CastURL: castURL}},
	})
	result.TransactionHash = txHash
	result.Cost = s.price
	if err != nil {
		// Posted and charged on chain; only the bookkeeping is missing.
		logger.Error().Err(err).Str("step", "persist").Str("tx_hash", txHash).Msg("Failed to record completed cast payment")
		result.Outcome = models.CastOutcomePartial
		result.Error = "Cast posted and payment charged, but recording the result failed. Do not cast this tweet again."
		metrics.RecordCast("single", string(result.Outcome))
		return result, nil
	}

	logger.Info().Str("cast_hash", cast.Hash).Str("tx_hash", txHash).Msg("Tweet cast and paid")
	result.Outcome = models.CastOutcomeSucceeded
	result.Success = true
	metrics.RecordCast("single", string(result.Outcome))
	return result, nil
}

// SettleTweet charges for a tweet that was posted but whose payment failed
func (s *CastService) SettleTweet(ctx context.Context, authFID int64, tweetID string) (*models.SingleCastResult, error) {
	if strings.TrimSpace(tweetID) == "" || authFID == 0 {
		return nil, ErrMissingFields
	}
	if err := s.checkConfigured(); err != nil {
		return nil, err
	}

	logger := log.With().Int64("fid", authFID).Str("tweet_id", tweetID).Logger()

	user, err := s.loadPayer(ctx, authFID, s.price)
	if err != nil {
		return nil, err
	}

	tweet, err := s.repo.GetTweetByTweetID(ctx, tweetID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTweetNotFound
		}
		logger.Error().Err(err).Str("step", "load_tweet").Msg("Failed to load tweet")
		return nil, ErrInternal
	}
	if tweet.UserID != user.ID {
		return nil, ErrTweetNotFound
	}
	if tweet.CastStatus != models.CastStatusPostedUnpaid || tweet.CastHash == nil {
		return nil, ErrNothingToSettle
	}

	won, err := s.repo.ClaimTweet(ctx, tweet.ID, []models.CastStatus{models.CastStatusPostedUnpaid})
	if err != nil {
		logger.Error().Err(err).Str("step", "claim").Msg("Failed to claim tweet for settlement")
		return nil, ErrInternal
	}
	if !won {
		return nil, ErrTweetInFlight
	}

	castHash := *tweet.CastHash
	castURL := derefString(tweet.CastURL)

	txHash, err := s.payments.Charge(ctx, user.WalletAddress, s.payments.SpenderAddress(), s.price)
	if err != nil {
		_ = s.repo.ReleaseTweetClaim(ctx, tweet.ID, models.CastStatusPostedUnpaid)
		return nil, ErrPaymentFailed.WithMessage("Payment failed: " + err.Error())
	}

	tweetRef := tweet.ID
	_, err = s.repo.CompleteCastPayment(ctx, repository.CastSettlement{
		UserID:      user.ID,
		TweetID:     &tweetRef,
		Amount:      s.price,
		TxHash:      txHash,
		Description: fmt.Sprintf("Settled cast payment for tweet %s", tweet.TweetID),
		Metadata: models.CastPaymentMetadata{
			ConversationID: tweet.ConversationID,
			CastResults: []models.TweetCastResult{{
				TweetID:  tweet.TweetID,
				Position: tweet.ThreadPosition,
				Success:  true,
				CastHash: castHash,
				CastURL:  castURL,
			}},
		},
		Tweets: []repository.SettledTweet{{ID: tweet.ID, CastHash: castHash, CastURL: castURL}},
	})

	result := &models.SingleCastResult{
		TweetID:         tweet.TweetID,
		CastHash:        castHash,
		CastURL:         castURL,
		Cost:            s.price,
		TransactionHash: txHash,
	}
	if err != nil {
		logger.Error().Err(err).Str("step", "persist").Str("tx_hash", txHash).Msg("Failed to record settled payment")
		result.Outcome = models.CastOutcomePartial
		result.Error = "Payment charged, but recording the result failed."
		return result, nil
	}

	logger.Info().Str("tx_hash", txHash).Msg("Unpaid cast settled")
	result.Outcome = models.CastOutcomeSucceeded
	result.Success = true
	return result, nil
}

func (s *CastService) checkConfigured() error {
	if s.publisher == nil || !s.publisher.Configured() {
		return ErrNotConfigured.WithMessage("Farcaster API key is not configured")
	}
	if s.payments == nil || !s.payments.Configured() {
		return ErrNotConfigured.WithMessage("Payment spender is not configured")
	}
	return nil
}

// loadPayer loads the user and checks, in order, every precondition for
// charging cost: registration, spending approval and limit, cached balance,
// wallet, then on-chain allowance and balance.
func (s *CastService) loadPayer(ctx context.Context, fid int64, cost decimal.Decimal) (*models.User, error) {
	user, err := s.repo.GetUserByFID(ctx, fid)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		log.Error().Err(err).Int64("fid", fid).Str("step", "load_user").Msg("Failed to load user")
		return nil, ErrInternal
	}

	if !user.IsRegistered || user.SignerUUID == "" {
		return nil, ErrUserNotRegistered
	}
	if !user.SpendingApproved {
		return nil, ErrSpendingNotApproved
	}
	if user.SpendingLimit.IsPositive() && user.TotalSpent.Add(cost).GreaterThan(user.SpendingLimit) {
		return nil, ErrSpendingLimitReached.WithMessage(fmt.Sprintf(
			"Spending limit reached. Limit: %s USDC, spent: %s USDC", user.SpendingLimit, user.TotalSpent))
	}
	if user.USDCBalance.LessThan(cost) {
		return nil, ErrInsufficientBalance.WithMessage(fmt.Sprintf(
			"Insufficient USDC balance. Required: %s USDC, available: %s USDC", cost, user.USDCBalance))
	}
	if !user.HasWallet() {
		return nil, ErrMissingWallet
	}

	check, err := s.payments.CheckAllowanceAndBalance(ctx, user.WalletAddress, cost)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return nil, ErrNotConfigured
		}
		log.Error().Err(err).Int64("fid", fid).Str("step", "chain_check").Msg("On-chain allowance check failed")
		return nil, ErrChainUnavailable
	}
	if !check.AllowanceSufficient {
		return nil, ErrInsufficientAllowance.WithMessage(fmt.Sprintf(
			"Insufficient USDC allowance. Required: %s USDC, approved: %s USDC", cost, check.Allowance))
	}
	if !check.BalanceSufficient {
		return nil, ErrInsufficientOnchainBalance.WithMessage(fmt.Sprintf(
			"Insufficient USDC balance in wallet. Required: %s USDC, available: %s USDC", cost, check.Balance))
	}

	return user, nil
}

// claim moves the tweet into the casting state, so concurrent requests for the
// same tweet cannot both post it.
func (s *CastService) claim(ctx context.Context, tweet *models.Tweet) error {
	if err := claimableError(tweet.CastStatus); err != nil {
		return err
	}

	won, err := s.repo.ClaimTweet(ctx, tweet.ID, models.CastableStatuses)
	if err != nil {
		log.Error().Err(err).Str("tweet_id", tweet.TweetID).Str("step", "claim").Msg("Failed to claim tweet")
		return ErrInternal
	}
	if !won {
		current, err := s.repo.GetTweetByID(ctx, tweet.ID)
		if err == nil {
			if claimErr := claimableError(current.CastStatus); claimErr != nil {
				return claimErr
			}
		}
		return ErrTweetInFlight
	}
	return nil
}

func claimableError(status models.CastStatus) error {
	switch status {
	case models.CastStatusCast, models.CastStatusPostedUnpaid:
		return ErrTweetAlreadyCast
	case models.CastStatusCasting:
		return ErrTweetInFlight
	case models.CastStatusRejected:
		return ErrTweetRejected
	}
	return nil
}

// backfillTruncated replaces text that looks cut off with the full text from
// the tweet API. Failures leave the tweet as stored.
func (s *CastService) backfillTruncated(ctx context.Context, tweet *models.Tweet) {
	if s.fetcher == nil || !IsTruncated(tweet.Content) {
		return
	}

	detail, err := s.fetcher.FetchTweet(ctx, tweet.TweetID)
	if err != nil {
		log.Warn().Err(err).Str("tweet_id", tweet.TweetID).Msg("Could not fetch full tweet, casting stored text")
		return
	}
	if strings.TrimSpace(detail.Text) == "" {
		return
	}

	tweet.Content = detail.Text
	if len(detail.Images) > 0 {
		tweet.Images = detail.Images
	}
	if len(detail.Videos) > 0 {
		tweet.Videos = detail.Videos
	}

	if err := s.repo.UpdateTweetContent(ctx, tweet.ID, tweet.Content, tweet.Images, tweet.Videos); err != nil {
		log.Warn().Err(err).Str("tweet_id", tweet.TweetID).Msg("Failed to persist full tweet content")
	}
}

func (s *CastService) post(ctx context.Context, user *models.User, payload models.CastPayload, parentHash string) (*farcaster.PublishedCast, error) {
	start := time.Now()
	cast, err := s.publisher.PublishCast(ctx, user.SignerUUID, payload.Content, payload.Embeds, parentHash)
	metrics.RecordPost(err == nil, time.Since(start))
	return cast, err
}

func postFailureReason(err error) string {
	var postErr *farcaster.PostError
	if errors.As(err, &postErr) {
		return postErr.Message
	}
	return err.Error()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
