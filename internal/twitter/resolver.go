package twitter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// LinkResolver expands shortened links such as https://t.co/xyz to their
// final destination by following redirects.
type LinkResolver struct {
	httpClient *resty.Client
}

// NewLinkResolver creates a resolver with a short timeout
func NewLinkResolver() *LinkResolver {
	return &LinkResolver{
		httpClient: resty.New().
			SetTimeout(5 * time.Second).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)),
	}
}

// Resolve returns the URL the short link ends up at
func (r *LinkResolver) Resolve(ctx context.Context, shortURL string) (string, error) {
	resp, err := r.httpClient.R().
		SetContext(ctx).
		Head(shortURL)

	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", shortURL, err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("resolving %s returned status %d", shortURL, resp.StatusCode())
	}

	if resp.RawResponse == nil || resp.RawResponse.Request == nil || resp.RawResponse.Request.URL == nil {
		return shortURL, nil
	}
	return resp.RawResponse.Request.URL.String(), nil
}
