package services

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"unicode/utf16"

	"cast-bridge/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// TruncationThreshold is the length at which stored tweet text is assumed to
// have been cut short by the source platform.
const TruncationThreshold = 278

const urlResolveConcurrency = 4

var (
	shortLinkPattern = regexp.MustCompile(`https://t\.co/[A-Za-z0-9]+`)
	// mentionPattern captures the preceding character so emails are skipped.
	// Handles are at most 15 characters; longer tokens are not mentions.
	mentionPattern = regexp.MustCompile(`(^|[^A-Za-z0-9_@.])@([A-Za-z0-9_]{1,15})\b`)
)

// UsernameResolver maps an X username to a linked Farcaster username
type UsernameResolver interface {
	LookupXUsername(ctx context.Context, xUsername string) (string, bool, error)
}

// URLResolver expands a shortened link to its destination
type URLResolver interface {
	Resolve(ctx context.Context, shortURL string) (string, error)
}

// TransformInput is a stored tweet plus optional user edits
type TransformInput struct {
	Tweet    *models.Tweet
	Override *models.ContentOverride
}

// ContentTransformer turns a stored tweet into a Farcaster cast payload.
// It never fails: lookups that error fall back to the original text.
type ContentTransformer struct {
	usernames UsernameResolver
	urls      URLResolver
	maxEmbeds int
}

// NewContentTransformer creates a transformer. Either resolver may be nil.
func NewContentTransformer(usernames UsernameResolver, urls URLResolver, maxEmbeds int) *ContentTransformer {
	if maxEmbeds < 1 {
		maxEmbeds = 1
	}
	return &ContentTransformer{
		usernames: usernames,
		urls:      urls,
		maxEmbeds: maxEmbeds,
	}
}

// IsTruncated reports whether content looks cut off: its length in UTF-16
// code units, with t.co links removed, is at least TruncationThreshold.
func IsTruncated(content string) bool {
	stripped := strings.TrimSpace(shortLinkPattern.ReplaceAllString(content, ""))
	return len(utf16.Encode([]rune(stripped))) >= TruncationThreshold
}

// effectiveContent is a tweet with any overrides applied
type effectiveContent struct {
	text      string
	original  string
	editMode  bool
	retweet   bool
	quotedURL string
	images    []string
	videos    []string
}

func resolveOverrides(tweet *models.Tweet, override *models.ContentOverride) effectiveContent {
	eff := effectiveContent{
		text:     tweet.Content,
		original: tweet.OriginalContent,
		retweet:  tweet.IsRetweet,
		images:   append([]string(nil), tweet.Images...),
	}
	if eff.original == "" {
		eff.original = tweet.Content
	}
	if tweet.QuotedTweetURL != nil {
		eff.quotedURL = strings.TrimSpace(*tweet.QuotedTweetURL)
	}
	if best := tweet.BestVideoURL(); best != "" {
		eff.videos = []string{best}
	}

	if override == nil {
		return eff
	}

	if override.Content != nil {
		eff.text = *override.Content
		eff.editMode = true
	}
	if override.MediaURLs != nil {
		eff.images = nonEmpty(*override.MediaURLs)
	}
	if override.VideoURLs != nil {
		eff.videos = nonEmpty(*override.VideoURLs)
	}
	if override.QuotedTweetURL != nil {
		eff.quotedURL = strings.TrimSpace(*override.QuotedTweetURL)
	}
	if override.IsQuoteRemoved {
		eff.quotedURL = ""
	}
	if override.IsRetweetRemoved {
		eff.retweet = false
	}
	return eff
}

// Transform builds the cast payload for a tweet
func (t *ContentTransformer) Transform(ctx context.Context, in TransformInput) models.CastPayload {
	tweet := in.Tweet
	eff := resolveOverrides(tweet, in.Override)

	// Retweets and plain video tweets are cast as an embed of the tweet itself.
	if eff.retweet {
		return models.CastPayload{Content: "", Embeds: []string{tweet.CanonicalURL()}}
	}
	if len(eff.videos) > 0 && eff.quotedURL == "" && !eff.editMode {
		return models.CastPayload{Content: "", Embeds: []string{tweet.CanonicalURL()}}
	}

	text := html.UnescapeString(eff.text)
	text = t.rewriteMentions(ctx, text, eff)

	hasMedia := len(eff.images) > 0 || len(eff.videos) > 0
	if hasMedia {
		text = stripLastShortLink(text)
	}
	text = t.resolveShortLinks(ctx, text)

	embeds := make([]string, 0, t.maxEmbeds)
	add := func(url string) {
		if len(embeds) < t.maxEmbeds && url != "" {
			embeds = append(embeds, url)
		}
	}
	add(eff.quotedURL)
	for _, img := range eff.images {
		add(img)
	}
	for _, video := range eff.videos {
		add(video)
	}

	return models.CastPayload{
		Content: strings.TrimSpace(text),
		Embeds:  embeds,
	}
}

// rewriteMentions converts @user mentions to Farcaster usernames, or to
// user.twitter when no linked account exists. In edit mode only mentions that
// appear in the original text are converted.
func (t *ContentTransformer) rewriteMentions(ctx context.Context, text string, eff effectiveContent) string {
	var eligible map[string]bool
	if eff.editMode {
		eligible = make(map[string]bool)
		for _, m := range mentionPattern.FindAllStringSubmatch(html.UnescapeString(eff.original), -1) {
			eligible[strings.ToLower(m[2])] = true
		}
	}

	resolved := make(map[string]string)
	return mentionPattern.ReplaceAllStringFunc(text, func(match string) string {
		parts := mentionPattern.FindStringSubmatch(match)
		prefix, username := parts[1], parts[2]
		key := strings.ToLower(username)

		if eligible != nil && !eligible[key] {
			return match
		}

		replacement, ok := resolved[key]
		if !ok {
			replacement = t.lookupMention(ctx, username)
			resolved[key] = replacement
		}
		return prefix + replacement
	})
}

func (t *ContentTransformer) lookupMention(ctx context.Context, username string) string {
	fallback := username + ".twitter"
	if t.usernames == nil {
		return fallback
	}

	fcUsername, found, err := t.usernames.LookupXUsername(ctx, username)
	if err != nil {
		log.Debug().Err(err).Str("x_username", username).Msg("Username lookup failed, using fallback")
		return fallback
	}
	if !found || fcUsername == "" {
		return fallback
	}
	return "@" + fcUsername
}

// stripLastShortLink removes the trailing media link the source platform
// appends to tweets with attachments.
func stripLastShortLink(text string) string {
	locs := shortLinkPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	last := locs[len(locs)-1]
	return strings.TrimSpace(text[:last[0]] + text[last[1]:])
}

// resolveShortLinks replaces each distinct t.co link with its destination.
// Failures keep the short link.
func (t *ContentTransformer) resolveShortLinks(ctx context.Context, text string) string {
	if t.urls == nil {
		return text
	}

	links := uniqueStrings(shortLinkPattern.FindAllString(text, -1))
	if len(links) == 0 {
		return text
	}

	var mu sync.Mutex
	resolved := make(map[string]string, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(urlResolveConcurrency)
	for _, link := range links {
		link := link
		g.Go(func() error {
			final, err := t.urls.Resolve(gctx, link)
			if err != nil || final == "" {
				log.Debug().Err(err).Str("url", link).Msg("Short link resolution failed, keeping original")
				return nil
			}
			mu.Lock()
			resolved[link] = final
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return shortLinkPattern.ReplaceAllStringFunc(text, func(link string) string {
		if final, ok := resolved[link]; ok {
			return final
		}
		return link
	})
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
