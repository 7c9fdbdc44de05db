package services

import (
	"errors"
	"net/http"
)

// CastError is a user-actionable reason a cast or settlement was refused.
// Code is stable and machine-checkable; Status is the HTTP status it maps to.
type CastError struct {
	Code    string
	Status  int
	Message string
}

func (e *CastError) Error() string {
	return e.Message
}

// Is matches any CastError with the same code, so sentinels still match
// after WithMessage.
func (e *CastError) Is(target error) bool {
	var other *CastError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// WithMessage returns a copy of e with a more specific message
func (e *CastError) WithMessage(message string) *CastError {
	return &CastError{Code: e.Code, Status: e.Status, Message: message}
}

func newCastError(code string, status int, message string) *CastError {
	return &CastError{Code: code, Status: status, Message: message}
}

var (
	ErrMissingFields              = newCastError("missing_fields", http.StatusBadRequest, "Missing required fields")
	ErrFIDMismatch                = newCastError("fid_mismatch", http.StatusForbidden, "Unauthorized: fid does not match the signed-in user")
	ErrNotConfigured              = newCastError("not_configured", http.StatusInternalServerError, "Casting is not configured on this server")
	ErrUserNotFound               = newCastError("user_not_found", http.StatusNotFound, "User not found")
	ErrUserNotRegistered          = newCastError("user_not_registered", http.StatusForbidden, "User has not completed registration")
	ErrSpendingNotApproved        = newCastError("spending_not_approved", http.StatusForbidden, "Spending not approved. Please approve USDC spending first.")
	ErrSpendingLimitReached       = newCastError("spending_limit_reached", http.StatusForbidden, "Spending limit reached")
	ErrInsufficientBalance        = newCastError("insufficient_balance", http.StatusPaymentRequired, "Insufficient USDC balance")
	ErrMissingWallet              = newCastError("missing_wallet", http.StatusBadRequest, "No wallet address on file")
	ErrInsufficientAllowance      = newCastError("insufficient_allowance", http.StatusPaymentRequired, "Insufficient USDC allowance. Please approve more USDC.")
	ErrInsufficientOnchainBalance = newCastError("insufficient_onchain_balance", http.StatusPaymentRequired, "Insufficient USDC balance in wallet")
	ErrChainUnavailable           = newCastError("chain_unavailable", http.StatusServiceUnavailable, "Unable to verify wallet on chain, please try again")
	ErrTweetNotFound              = newCastError("tweet_not_found", http.StatusNotFound, "Tweet not found")
	ErrTweetAlreadyCast           = newCastError("tweet_already_cast", http.StatusConflict, "Tweet has already been cast")
	ErrTweetInFlight              = newCastError("tweet_in_flight", http.StatusConflict, "Tweet is already being cast")
	ErrTweetRejected              = newCastError("tweet_rejected", http.StatusConflict, "Tweet was rejected. Restore it before casting.")
	ErrPostRejected               = newCastError("post_rejected", http.StatusBadGateway, "Farcaster rejected the cast")
	ErrNoTweets                   = newCastError("no_tweets", http.StatusNotFound, "No tweets found for this conversation")
	ErrNothingToCast              = newCastError("nothing_to_cast", http.StatusConflict, "All tweets in this thread have already been processed")
	ErrThreadInFlight             = newCastError("thread_in_flight", http.StatusConflict, "Thread is already being cast")
	ErrTweetNotRejected           = newCastError("tweet_not_rejected", http.StatusConflict, "Only rejected tweets can be restored")
	ErrPaymentFailed              = newCastError("payment_failed", http.StatusBadGateway, "USDC payment failed")
	ErrInvalidRequest             = newCastError("invalid_request", http.StatusBadRequest, "Invalid request")
	ErrNothingToSettle            = newCastError("nothing_to_settle", http.StatusConflict, "Nothing is awaiting payment")
	ErrInternal                   = newCastError("internal_error", http.StatusInternalServerError, "Internal error")
)

// AsCastError extracts a CastError from err. Anything that is not one is
// reported as ErrInternal.
func AsCastError(err error) *CastError {
	var castErr *CastError
	if errors.As(err, &castErr) {
		return castErr
	}
	return ErrInternal
}
