package twitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cast-bridge/internal/models"
	"cast-bridge/internal/ratelimit"

	"github.com/go-resty/resty/v2"
)

// ErrNotConfigured is returned when no RapidAPI key is set
var ErrNotConfigured = errors.New("RAPIDAPI_KEY not configured")

// TweetDetail is the full text and media of a tweet
type TweetDetail struct {
	Text   string
	Images []string
	Videos []models.TweetVideo
}

type tweetResponse struct {
	Text  string `json:"text"`
	Media struct {
		Photo []struct {
			MediaURLHTTPS string `json:"media_url_https"`
		} `json:"photo"`
		Video []struct {
			Variants []struct {
				URL         string `json:"url"`
				Bitrate     int    `json:"bitrate"`
				ContentType string `json:"content_type"`
			} `json:"variants"`
		} `json:"video"`
	} `json:"media"`
}

// Client fetches tweet details from the RapidAPI Twitter endpoint. Every
// request passes through the shared rate limiter.
type Client struct {
	httpClient *resty.Client
	apiKey     string
	host       string
	limiter    *ratelimit.Limiter
}

// NewClient creates a RapidAPI client. baseURL defaults to https://{host}.
func NewClient(apiKey, host, baseURL string, limiter *ratelimit.Limiter) *Client {
	if baseURL == "" {
		baseURL = "https://" + host
	}
	return &Client{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(15 * time.Second),
		apiKey:  apiKey,
		host:    host,
		limiter: limiter,
	}
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// FetchTweet returns the full text and media of a tweet
func (c *Client) FetchTweet(ctx context.Context, tweetID string) (*TweetDetail, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	var result tweetResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-RapidAPI-Key", c.apiKey).
		SetHeader("X-RapidAPI-Host", c.host).
		SetQueryParam("id", tweetID).
		SetResult(&result).
		Get("/tweet.php")

	if err != nil {
		return nil, fmt.Errorf("failed to query tweet API: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("tweet API error (status %d): %s", resp.StatusCode(), resp.String())
	}

	detail := &TweetDetail{Text: result.Text}
	for _, photo := range result.Media.Photo {
		if photo.MediaURLHTTPS != "" {
			detail.Images = append(detail.Images, photo.MediaURLHTTPS)
		}
	}
	for _, video := range result.Media.Video {
		for _, v := range video.Variants {
			if v.URL == "" {
				continue
			}
			detail.Videos = append(detail.Videos, models.TweetVideo{
				URL:         v.URL,
				Bitrate:     v.Bitrate,
				ContentType: v.ContentType,
			})
		}
	}

	return detail, nil
}
