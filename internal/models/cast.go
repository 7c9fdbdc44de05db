package models

import (
	"github.com/shopspring/decimal"
)

// ContentOverride carries user edits made before casting. A nil field means
// "use the stored value".
type ContentOverride struct {
	Content          *string   `json:"content,omitempty"`
	MediaURLs        *[]string `json:"media_urls,omitempty"`
	VideoURLs        *[]string `json:"video_urls,omitempty"`
	QuotedTweetURL   *string   `json:"quoted_tweet_url,omitempty"`
	IsRetweetRemoved bool      `json:"is_retweet_removed,omitempty"`
	IsQuoteRemoved   bool      `json:"is_quote_removed,omitempty"`
}

// CastTweetRequest is the payload for casting a single tweet
type CastTweetRequest struct {
	TweetID string `json:"tweet_id"`
	FID     int64  `json:"fid"`
	ContentOverride
}

// CastThreadRequest is the payload for casting a whole thread
type CastThreadRequest struct {
	ConversationID string `json:"conversation_id"`
	FID            int64  `json:"fid"`
}

// CastOutcome distinguishes nothing happened / partially happened / done
type CastOutcome string

const (
	CastOutcomeSucceeded CastOutcome = "succeeded"
	CastOutcomePartial   CastOutcome = "partial"
	CastOutcomeRejected  CastOutcome = "rejected"
)

// CastPayload is what gets submitted to the Farcaster posting API
type CastPayload struct {
	Content string   `json:"content"`
	Embeds  []string `json:"embeds"`
}

// TweetCastResult is the per-tweet outcome of a cast attempt
type TweetCastResult struct {
	TweetID  string `json:"tweet_id"`
	Position *int   `json:"position,omitempty"`
	Success  bool   `json:"success"`
	CastHash string `json:"cast_hash,omitempty"`
	CastURL  string `json:"cast_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SingleCastResult is returned by the single-tweet workflow
type SingleCastResult struct {
	Outcome         CastOutcome     `json:"outcome"`
	Success         bool            `json:"success"`
	TweetID         string          `json:"tweet_id"`
	CastHash        string          `json:"cast_hash,omitempty"`
	CastURL         string          `json:"cast_url,omitempty"`
	Cost            decimal.Decimal `json:"cost"`
	TransactionHash string          `json:"transaction_hash,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// ThreadCastResult is returned by the thread workflow
type ThreadCastResult struct {
	Outcome         CastOutcome       `json:"outcome"`
	Success         bool              `json:"success"`
	ConversationID  string            `json:"conversation_id"`
	TotalCost       decimal.Decimal   `json:"total_cost"`
	CastResults     []TweetCastResult `json:"cast_results"`
	TransactionHash string            `json:"transaction_hash,omitempty"`
	Error           string            `json:"error,omitempty"`
}
