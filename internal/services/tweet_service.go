package services

import (
	"context"

	"cast-bridge/internal/models"
	"cast-bridge/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// TweetService lists a user's tweets and moves them in and out of rejected
type TweetService struct {
	repo *repository.Repository
}

// NewTweetService creates a new TweetService
func NewTweetService(repo *repository.Repository) *TweetService {
	return &TweetService{repo: repo}
}

// ListTweets returns the user's tweets, newest first, optionally by status
func (s *TweetService) ListTweets(ctx context.Context, fid int64, status models.CastStatus, limit, offset int) ([]*models.Tweet, error) {
	user, err := s.loadUser(ctx, fid)
	if err != nil {
		return nil, err
	}

	tweets, err := s.repo.ListUserTweets(ctx, user.ID, status, clampLimit(limit), max(offset, 0))
	if err != nil {
		log.Error().Err(err).Int64("fid", fid).Msg("Failed to list tweets")
		return nil, ErrInternal
	}
	return tweets, nil
}

// Reject marks a tweet as not to be cast. Rejecting a rejected tweet is a
// no-op; cast and in-flight tweets cannot be rejected.
func (s *TweetService) Reject(ctx context.Context, fid int64, tweetID string) (*models.Tweet, error) {
	tweet, err := s.loadOwnedTweet(ctx, fid, tweetID)
	if err != nil {
		return nil, err
	}

	switch tweet.CastStatus {
	case models.CastStatusRejected:
		return tweet, nil
	case models.CastStatusCast, models.CastStatusPostedUnpaid:
		return nil, ErrTweetAlreadyCast
	case models.CastStatusCasting:
		return nil, ErrTweetInFlight
	}

	return s.transition(ctx, tweet, models.CastStatusRejected)
}

// Restore returns a rejected tweet to pending
func (s *TweetService) Restore(ctx context.Context, fid int64, tweetID string) (*models.Tweet, error) {
	tweet, err := s.loadOwnedTweet(ctx, fid, tweetID)
	if err != nil {
		return nil, err
	}
	if tweet.CastStatus != models.CastStatusRejected {
		return nil, ErrTweetNotRejected
	}

	return s.transition(ctx, tweet, models.CastStatusPending)
}

func (s *TweetService) transition(ctx context.Context, tweet *models.Tweet, to models.CastStatus) (*models.Tweet, error) {
	ok, err := s.repo.TransitionTweetStatus(ctx, tweet.ID, tweet.CastStatus, to)
	if err != nil {
		log.Error().Err(err).Str("tweet_id", tweet.TweetID).Msg("Failed to update tweet status")
		return nil, ErrInternal
	}
	if !ok {
		return nil, ErrTweetInFlight
	}
	tweet.CastStatus = to
	return tweet, nil
}

func (s *TweetService) loadUser(ctx context.Context, fid int64) (*models.User, error) {
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

func (s *TweetService) loadOwnedTweet(ctx context.Context, fid int64, tweetID string) (*models.Tweet, error) {
	user, err := s.loadUser(ctx, fid)
	if err != nil {
		return nil, err
	}

	tweet, err := s.repo.GetTweetByTweetID(ctx, tweetID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTweetNotFound
		}
		log.Error().Err(err).Str("tweet_id", tweetID).Msg("Failed to load tweet")
		return nil, ErrInternal
	}
	if tweet.UserID != user.ID {
		return nil, ErrTweetNotFound
	}
	return tweet, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
