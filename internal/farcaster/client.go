package farcaster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "https://api.neynar.com"

	castPath         = "/v2/farcaster/cast"
	userByXUsername  = "/v2/farcaster/user/by_x_username"
	usernameCacheTTL = time.Hour
	usernameCacheMax = 4096
)

// ErrNotConfigured is returned when no API key is set
var ErrNotConfigured = errors.New("NEYNAR_API_KEY not configured")

// PostError is returned when the posting API rejects a cast
type PostError struct {
	StatusCode int
	Message    string
}

func (e *PostError) Error() string {
	return fmt.Sprintf("Neynar rejected cast (status %d): %s", e.StatusCode, e.Message)
}

// Embed is one URL embedded in a cast
type Embed struct {
	URL string `json:"url"`
}

type publishRequest struct {
	SignerUUID string  `json:"signer_uuid"`
	Text       string  `json:"text"`
	Parent     string  `json:"parent,omitempty"`
	Embeds     []Embed `json:"embeds,omitempty"`
}

type publishResponse struct {
	Success bool `json:"success"`
	Cast    struct {
		Hash   string `json:"hash"`
		Author struct {
			FID      int64  `json:"fid"`
			Username string `json:"username"`
		} `json:"author"`
	} `json:"cast"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type usersResponse struct {
	Users []struct {
		FID      int64  `json:"fid"`
		Username string `json:"username"`
	} `json:"users"`
}

// PublishedCast is a cast accepted by the posting API
type PublishedCast struct {
	Hash           string
	AuthorUsername string
	AuthorFID      int64
}

// URL returns the public Warpcast URL of the cast
func (p *PublishedCast) URL(fallbackUsername string) string {
	username := p.AuthorUsername
	if username == "" {
		username = fallbackUsername
	}
	return CastURL(username, p.Hash)
}

// CastURL builds https://warpcast.com/{username}/{short hash}
func CastURL(username, hash string) string {
	short := hash
	if len(short) > 10 {
		short = short[:10]
	}
	return fmt.Sprintf("https://warpcast.com/%s/%s", username, short)
}

type usernameEntry struct {
	username  string
	found     bool
	expiresAt time.Time
}

// Client talks to the Neynar Farcaster API
type Client struct {
	httpClient *resty.Client
	apiKey     string

	mu    sync.Mutex
	cache *lru.Cache
}

// NewClient creates a Neynar API client
func NewClient(apiKey, baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cache, err := lru.New(usernameCacheMax)
	if err != nil {
		return nil, fmt.Errorf("failed to create username cache: %w", err)
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "cast-bridge/1.0")

	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		cache:      cache,
	}, nil
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// PublishCast posts a cast on behalf of the signer. parentHash is empty for a
// top-level cast.
func (c *Client) PublishCast(
	ctx context.Context,
	signerUUID string,
	text string,
	embeds []string,
	parentHash string,
) (*PublishedCast, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body := publishRequest{
		SignerUUID: signerUUID,
		Text:       text,
		Parent:     parentHash,
	}
	for _, url := range embeds {
		body.Embeds = append(body.Embeds, Embed{URL: url})
	}

	var result publishResponse
	var apiErr apiError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post(castPath)

	if err != nil {
		return nil, fmt.Errorf("failed to call Neynar cast API: %w", err)
	}

	if resp.IsError() {
		message := apiErr.Message
		if message == "" {
			message = resp.String()
		}
		return nil, &PostError{StatusCode: resp.StatusCode(), Message: message}
	}

	if result.Cast.Hash == "" {
		return nil, &PostError{StatusCode: resp.StatusCode(), Message: "response did not include a cast hash"}
	}

	return &PublishedCast{
		Hash:           result.Cast.Hash,
		AuthorUsername: result.Cast.Author.Username,
		AuthorFID:      result.Cast.Author.FID,
	}, nil
}

// LookupXUsername finds the Farcaster username linked to an X handle. Both
// hits and misses are cached.
func (c *Client) LookupXUsername(ctx context.Context, xUsername string) (string, bool, error) {
	key := strings.ToLower(strings.TrimPrefix(xUsername, "@"))
	if key == "" {
		return "", false, nil
	}

	if entry, ok := c.cached(key); ok {
		return entry.username, entry.found, nil
	}

	if !c.Configured() {
		return "", false, ErrNotConfigured
	}

	var result usersResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetQueryParam("x_username", key).
		SetResult(&result).
		Get(userByXUsername)

	if err != nil {
		return "", false, fmt.Errorf("failed to call Neynar user lookup: %w", err)
	}

	if resp.StatusCode() == 404 {
		c.store(key, "", false)
		return "", false, nil
	}

	if resp.IsError() {
		return "", false, fmt.Errorf("Neynar user lookup error (status %d): %s", resp.StatusCode(), resp.String())
	}

	for _, user := range result.Users {
		if user.Username != "" {
			c.store(key, user.Username, true)
			return user.Username, true, nil
		}
	}

	log.Debug().Str("x_username", key).Msg("No Farcaster account linked to X handle")
	c.store(key, "", false)
	return "", false, nil
}

func (c *Client) cached(key string) (usernameEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	val, found := c.cache.Get(key)
	if !found {
		return usernameEntry{}, false
	}
	entry := val.(usernameEntry)
	if time.Now().After(entry.expiresAt) {
		c.cache.Remove(key)
		return usernameEntry{}, false
	}
	return entry, true
}

func (c *Client) store(key, username string, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Add(key, usernameEntry{
		username:  username,
		found:     found,
		expiresAt: time.Now().Add(usernameCacheTTL),
	})
}
