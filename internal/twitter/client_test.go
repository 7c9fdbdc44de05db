package twitter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cast-bridge/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tweetJSON = `{
	"text": "A long tweet that was truncated in the timeline",
	"media": {
		"photo": [{"media_url_https": "https://pbs.twimg.com/media/a.jpg"}],
		"video": [{"variants": [
			{"url": "https://video.twimg.com/v.m3u8", "content_type": "application/x-mpegURL"},
			{"url": "https://video.twimg.com/v_832.mp4", "bitrate": 832000, "content_type": "video/mp4"}
		]}]
	}
}`

func TestFetchTweet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweet.php", r.URL.Path)
		assert.Equal(t, "123", r.URL.Query().Get("id"))
		assert.Equal(t, "key", r.Header.Get("X-RapidAPI-Key"))
		assert.Equal(t, "host.example", r.Header.Get("X-RapidAPI-Host"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tweetJSON))
	}))
	defer server.Close()

	limiter := ratelimit.New(5, time.Second)
	client := NewClient("key", "host.example", server.URL, limiter)

	detail, err := client.FetchTweet(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, "A long tweet that was truncated in the timeline", detail.Text)
	assert.Equal(t, []string{"https://pbs.twimg.com/media/a.jpg"}, detail.Images)
	require.Len(t, detail.Videos, 2)
	assert.Equal(t, 832000, detail.Videos[1].Bitrate)
	assert.Equal(t, 1, limiter.InWindow())
}

func TestFetchTweetError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("key", "host.example", server.URL, ratelimit.New(5, time.Second))
	_, err := client.FetchTweet(context.Background(), "123")
	require.Error(t, err)
}

func TestFetchTweetNotConfigured(t *testing.T) {
	client := NewClient("", "host.example", "", ratelimit.New(5, time.Second))
	_, err := client.FetchTweet(context.Background(), "1")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestLinkResolverFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/final", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	resolved, err := NewLinkResolver().Resolve(context.Background(), server.URL+"/short")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/final", resolved)
}
