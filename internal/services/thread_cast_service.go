package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cast-bridge/internal/lock"
	"cast-bridge/internal/metrics"
	"cast-bridge/internal/models"
	"cast-bridge/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// threadLockTTL bounds how long a crashed instance can block a conversation
const threadLockTTL = 10 * time.Minute

// ThreadCastService casts a whole thread as a chain of replies and charges
// one unit cost for it, only when every pending tweet was posted.
type ThreadCastService struct {
	casts     *CastService
	locker    lock.Locker
	postDelay time.Duration
}

// NewThreadCastService creates a ThreadCastService
func NewThreadCastService(casts *CastService, locker lock.Locker, postDelay time.Duration) *ThreadCastService {
	return &ThreadCastService{
		casts:     casts,
		locker:    locker,
		postDelay: postDelay,
	}
}

// CastThread posts the pending tweets of a conversation in thread order, each
// replying to the cast created for the previous one. Posting stops at the
// first failure. The unit cost is charged once, and only if every pending
// tweet was posted.
func (s *ThreadCastService) CastThread(ctx context.Context, authFID int64, req models.CastThreadRequest) (*models.ThreadCastResult, error) {
	if strings.TrimSpace(req.ConversationID) == "" || req.FID == 0 {
		return nil, ErrMissingFields.WithMessage("Missing required fields: conversation_id and fid")
	}
	if req.FID != authFID {
		return nil, ErrFIDMismatch
	}
	cs := s.casts
	if err := cs.checkConfigured(); err != nil {
		return nil, err
	}

	logger := log.With().Int64("fid", req.FID).Str("conversation_id", req.ConversationID).Logger()

	user, err := cs.loadPayer(ctx, req.FID, cs.price)
	if err != nil {
		return nil, err
	}

	release, err := s.lockConversation(ctx, user.ID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	tweets, err := cs.repo.GetConversationTweets(ctx, user.ID, req.ConversationID)
	if err != nil {
		logger.Error().Err(err).Str("step", "load_thread").Msg("Failed to load thread tweets")
		return nil, ErrInternal
	}
	if len(tweets) == 0 {
		return nil, ErrNoTweets
	}

	var pending []*models.Tweet
	for _, tweet := range tweets {
		if tweet.CastStatus == models.CastStatusPending {
			pending = append(pending, tweet)
		}
	}
	if len(pending) == 0 {
		return nil, ErrNothingToCast
	}

	if err := s.claimAll(ctx, pending); err != nil {
		return nil, err
	}

	result := &models.ThreadCastResult{
		ConversationID: req.ConversationID,
		TotalCost:      decimal.Zero,
		CastResults:    make([]models.TweetCastResult, 0, len(pending)),
	}

	var posted []repository.SettledTweet
	parentHash := ""
	attempted := 0
	for i, tweet := range pending {
		if i > 0 && !s.pause(ctx) {
			break
		}
		attempted++

		cs.backfillTruncated(ctx, tweet)
		payload := cs.transformer.Transform(ctx, TransformInput{Tweet: tweet})

		cast, err := cs.post(ctx, user, payload, parentHash)
		if err != nil {
			reason := postFailureReason(err)
			logger.Warn().Err(err).Str("tweet_id", tweet.TweetID).Int("index", i).Msg("Thread cast stopped at failed tweet")
			if markErr := cs.repo.MarkTweetFailed(ctx, tweet.ID, reason); markErr != nil {
				logger.Error().Err(markErr).Str("tweet_id", tweet.TweetID).Msg("Failed to mark tweet failed")
			}
			result.CastResults = append(result.CastResults, models.TweetCastResult{
				TweetID:  tweet.TweetID,
				Position: tweet.ThreadPosition,
				Success:  false,
				Error:    reason,
			})
			break
		}

		castURL := cast.URL(user.Username)
		result.CastResults = append(result.CastResults, models.TweetCastResult{
			TweetID:  tweet.TweetID,
			Position: tweet.ThreadPosition,
			Success:  true,
			CastHash: cast.Hash,
			CastURL:  castURL,
		})
		posted = append(posted, repository.SettledTweet{ID: tweet.ID, CastHash: cast.Hash, CastURL: castURL})
		parentHash = cast.Hash
	}

	for _, tweet := range pending[attempted:] {
		if err := cs.repo.ReleaseTweetClaim(ctx, tweet.ID, models.CastStatusPending); err != nil {
			logger.Error().Err(err).Str("tweet_id", tweet.TweetID).Msg("Failed to release unattempted tweet")
		}
	}

	switch {
	case len(posted) == 0:
		result.Outcome = models.CastOutcomeRejected
		result.Error = "Failed to cast any tweets in the thread"
		if n := len(result.CastResults); n > 0 && result.CastResults[n-1].Error != "" {
			result.Error += ": " + result.CastResults[n-1].Error
		}
		metrics.RecordCast("thread", string(result.Outcome))
		return result, nil

	case len(posted) < len(pending):
		// Incomplete threads are free: the posted casts stay up, unpaid.
		for _, p := range posted {
			if err := cs.repo.MarkTweetPosted(ctx, p.ID, p.CastHash, p.CastURL, models.CastStatusCast, ""); err != nil {
				logger.Error().Err(err).Uint("tweet", p.ID).Msg("Failed to record posted tweet")
			}
		}
		result.Outcome = models.CastOutcomePartial
		result.Error = fmt.Sprintf("Only %d of %d tweets were cast successfully. No payment charged.", len(posted), len(pending))
		logger.Warn().Int("posted", len(posted)).Int("pending", len(pending)).Msg("Partial thread cast, no charge")
		metrics.RecordCast("thread", string(result.Outcome))
		return result, nil
	}

	txHash, err := cs.payments.Charge(ctx, user.WalletAddress, cs.payments.SpenderAddress(), cs.price)
	if err != nil {
		logger.Error().Err(err).Str("step", "charge").Msg("Thread posted but payment failed")
		for _, p := range posted {
			if markErr := cs.repo.MarkTweetPosted(ctx, p.ID, p.CastHash, p.CastURL, models.CastStatusPostedUnpaid, "payment failed: "+err.Error()); markErr != nil {
				logger.Error().Err(markErr).Uint("tweet", p.ID).Msg("Failed to record unpaid cast")
			}
		}
		result.Outcome = models.CastOutcomePartial
		result.Error = "Thread posted but payment failed. No charge was made; settle the payment to complete this thread."
		metrics.RecordCast("thread", string(result.Outcome))
		return result, nil
	}

	result.TransactionHash = txHash
	result.TotalCost = cs.price

	_, err = cs.repo.CompleteCastPayment(ctx, repository.CastSettlement{
		UserID:      user.ID,
		Amount:      cs.price,
		TxHash:      txHash,
		Description: fmt.Sprintf("Thread cast payment for conversation %s (%d tweets)", req.ConversationID, len(posted)),
		Metadata: models.CastPaymentMetadata{
			ConversationID: req.ConversationID,
			CastResults:    result.CastResults,
		},
		Tweets: posted,
	})
	if err != nil {
		logger.Error().Err(err).Str("step", "persist").Str("tx_hash", txHash).Msg("Failed to record completed thread payment")
		result.Outcome = models.CastOutcomePartial
		result.Error = "Thread posted and payment charged, but recording the result failed. Do not cast this thread again."
		metrics.RecordCast("thread", string(result.Outcome))
		return result, nil
	}

	logger.Info().Int("tweets", len(posted)).Str("tx_hash", txHash).Msg("Thread cast and paid")
	result.Outcome = models.CastOutcomeSucceeded
	result.Success = true
	metrics.RecordCast("thread", string(result.Outcome))
	return result, nil
}

// SettleThread charges for a thread whose casts were all posted but whose
// payment failed.
func (s *ThreadCastService) SettleThread(ctx context.Context, authFID int64, conversationID string) (*models.ThreadCastResult, error) {
	if strings.TrimSpace(conversationID) == "" || authFID == 0 {
		return nil, ErrMissingFields
	}
	cs := s.casts
	if err := cs.checkConfigured(); err != nil {
		return nil, err
	}

	logger := log.With().Int64("fid", authFID).Str("conversation_id", conversationID).Logger()

	user, err := cs.loadPayer(ctx, authFID, cs.price)
	if err != nil {
		return nil, err
	}

	release, err := s.lockConversation(ctx, user.ID, conversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	tweets, err := cs.repo.GetConversationTweets(ctx, user.ID, conversationID)
	if err != nil {
		logger.Error().Err(err).Str("step", "load_thread").Msg("Failed to load thread tweets")
		return nil, ErrInternal
	}

	var unpaid []*models.Tweet
	for _, tweet := range tweets {
		if tweet.CastStatus == models.CastStatusPostedUnpaid && tweet.CastHash != nil {
			unpaid = append(unpaid, tweet)
		}
	}
	if len(unpaid) == 0 {
		return nil, ErrNothingToSettle
	}

	claimed := make([]*models.Tweet, 0, len(unpaid))
	for _, tweet := range unpaid {
		won, err := cs.repo.ClaimTweet(ctx, tweet.ID, []models.CastStatus{models.CastStatusPostedUnpaid})
		if err != nil || !won {
			for _, c := range claimed {
				_ = cs.repo.ReleaseTweetClaim(ctx, c.ID, models.CastStatusPostedUnpaid)
			}
			if err != nil {
				logger.Error().Err(err).Msg("Failed to claim tweet for settlement")
				return nil, ErrInternal
			}
			return nil, ErrThreadInFlight
		}
		claimed = append(claimed, tweet)
	}

	result := &models.ThreadCastResult{
		ConversationID: conversationID,
		TotalCost:      decimal.Zero,
	}
	settled := make([]repository.SettledTweet, 0, len(claimed))
	for _, tweet := range claimed {
		castURL := derefString(tweet.CastURL)
		settled = append(settled, repository.SettledTweet{ID: tweet.ID, CastHash: *tweet.CastHash, CastURL: castURL})
		result.CastResults = append(result.CastResults, models.TweetCastResult{
			TweetID:  tweet.TweetID,
			Position: tweet.ThreadPosition,
			Success:  true,
			CastHash: *tweet.CastHash,
			CastURL:  castURL,
		})
	}

	txHash, err := cs.payments.Charge(ctx, user.WalletAddress, cs.payments.SpenderAddress(), cs.price)
	if err != nil {
		for _, c := range claimed {
			_ = cs.repo.ReleaseTweetClaim(ctx, c.ID, models.CastStatusPostedUnpaid)
		}
		return nil, ErrPaymentFailed.WithMessage("Payment failed: " + err.Error())
	}

	result.TransactionHash = txHash
	result.TotalCost = cs.price

	_, err = cs.repo.CompleteCastPayment(ctx, repository.CastSettlement{
		UserID:      user.ID,
		Amount:      cs.price,
		TxHash:      txHash,
		Description: fmt.Sprintf("Settled thread cast payment for conversation %s", conversationID),
		Metadata: models.CastPaymentMetadata{
			ConversationID: conversationID,
			CastResults:    result.CastResults,
		},
		Tweets: settled,
	})
	if err != nil {
		logger.Error().Err(err).Str("step", "persist").Str("tx_hash", txHash).Msg("Failed to record settled thread payment")
		result.Outcome = models.CastOutcomePartial
		result.Error = "Payment charged, but recording the result failed."
		return result, nil
	}

	logger.Info().Str("tx_hash", txHash).Msg("Unpaid thread settled")
	result.Outcome = models.CastOutcomeSucceeded
	result.Success = true
	return result, nil
}

func (s *ThreadCastService) lockConversation(ctx context.Context, userID uint, conversationID string) (func(), error) {
	name := fmt.Sprintf("thread:%d:%s", userID, conversationID)
	release, err := s.locker.TryLock(ctx, name, threadLockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, ErrThreadInFlight
		}
		log.Error().Err(err).Str("lock", name).Msg("Failed to acquire thread lock")
		return nil, ErrInternal
	}
	return release, nil
}

// claimAll claims every tweet or none of them
func (s *ThreadCastService) claimAll(ctx context.Context, tweets []*models.Tweet) error {
	pendingOnly := []models.CastStatus{models.CastStatusPending}
	for i, tweet := range tweets {
		won, err := s.casts.repo.ClaimTweet(ctx, tweet.ID, pendingOnly)
		if err != nil || !won {
			for _, claimed := range tweets[:i] {
				_ = s.casts.repo.ReleaseTweetClaim(ctx, claimed.ID, models.CastStatusPending)
			}
			if err != nil {
				log.Error().Err(err).Str("tweet_id", tweet.TweetID).Msg("Failed to claim thread tweet")
				return ErrInternal
			}
			return ErrThreadInFlight
		}
	}
	return nil
}

// pause waits between successive posts. It reports false if ctx ended first.
func (s *ThreadCastService) pause(ctx context.Context) bool {
	if s.postDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.postDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
