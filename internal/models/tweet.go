package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type CastStatus string

const (
	CastStatusPending  CastStatus = "pending"
	CastStatusApproved CastStatus = "approved"
	CastStatusRejected CastStatus = "rejected"
	CastStatusCast     CastStatus = "cast"
	CastStatusFailed   CastStatus = "failed"
	// CastStatusCasting marks a tweet claimed by an in-flight workflow.
	CastStatusCasting CastStatus = "casting"
	// CastStatusPostedUnpaid marks a tweet that was posted but whose charge failed.
	CastStatusPostedUnpaid CastStatus = "posted_unpaid"
)

// CastableStatuses are the statuses a single-cast request may claim from
var CastableStatuses = []CastStatus{CastStatusPending, CastStatusApproved, CastStatusFailed}

// TweetVideo is one encoded variant of a video attached to a tweet
type TweetVideo struct {
	URL         string `json:"url"`
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
}

// Tweet is a tweet ingested from Twitter/X that can be cast to Farcaster
type Tweet struct {
	ID               uint                            `gorm:"primaryKey" json:"id"`
	TweetID          string                          `gorm:"uniqueIndex;size:64;not null" json:"tweet_id"`
	UserID           uint                            `gorm:"not null;index" json:"user_id"`
	ConversationID   string                          `gorm:"size:64;index" json:"conversation_id"`
	Content          string                          `gorm:"type:text" json:"content"`
	OriginalContent  string                          `gorm:"type:text" json:"original_content"`
	TwitterURL       string                          `gorm:"size:500" json:"twitter_url"`
	Images           datatypes.JSONSlice[string]     `json:"images"`
	Videos           datatypes.JSONSlice[TweetVideo] `json:"videos"`
	QuotedTweetURL   *string                         `gorm:"size:500" json:"quoted_tweet_url,omitempty"`
	IsRetweet        bool                            `gorm:"default:false" json:"is_retweet"`
	ThreadPosition   *int                            `json:"thread_position,omitempty"`
	CastStatus       CastStatus                      `gorm:"size:20;not null;default:pending;index" json:"cast_status"`
	CastHash         *string                         `gorm:"size:80" json:"cast_hash,omitempty"`
	CastURL          *string                         `gorm:"size:500" json:"cast_url,omitempty"`
	CastPrice        decimal.Decimal                 `gorm:"type:decimal(18,6);default:0" json:"cast_price"`
	CastAt           *time.Time                      `json:"cast_at,omitempty"`
	CastError        *string                         `gorm:"type:text" json:"cast_error,omitempty"`
	PaymentProcessed bool                            `gorm:"default:false" json:"payment_processed"`
	PaymentTxHash    *string                         `gorm:"size:80" json:"payment_tx_hash,omitempty"`
	ClaimedAt        *time.Time                      `json:"-"`
	CreatedAt        time.Time                       `json:"created_at"`
	UpdatedAt        time.Time                       `json:"updated_at"`
}

// TableName specifies the table name for Tweet model
func (Tweet) TableName() string {
	return "tweets"
}

// CanonicalURL returns the public URL of the tweet
func (t *Tweet) CanonicalURL() string {
	if t.TwitterURL != "" {
		return t.TwitterURL
	}
	return "https://twitter.com/i/status/" + t.TweetID
}

// HasMedia reports whether images or videos are attached
func (t *Tweet) HasMedia() bool {
	return len(t.Images) > 0 || len(t.Videos) > 0
}

// HasVideo reports whether a video or animated GIF is attached
func (t *Tweet) HasVideo() bool {
	return len(t.Videos) > 0
}

// IsQuote reports whether the tweet quotes another tweet
func (t *Tweet) IsQuote() bool {
	return t.QuotedTweetURL != nil && strings.TrimSpace(*t.QuotedTweetURL) != ""
}

// IsThreadReply reports whether the tweet is a reply inside a thread
func (t *Tweet) IsThreadReply() bool {
	return t.ThreadPosition != nil && *t.ThreadPosition > 1
}

// BestVideoURL returns the highest-bitrate mp4 variant, or the first variant
// when none is tagged as mp4.
func (t *Tweet) BestVideoURL() string {
	best := ""
	bestBitrate := -1
	for _, v := range t.Videos {
		if v.URL == "" {
			continue
		}
		if v.ContentType != "" && v.ContentType != "video/mp4" {
			continue
		}
		if v.Bitrate > bestBitrate {
			best = v.URL
			bestBitrate = v.Bitrate
		}
	}
	if best == "" && len(t.Videos) > 0 {
		return t.Videos[0].URL
	}
	return best
}
