package farcaster

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishCast(t *testing.T) {
	var received publishRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, castPath, r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"cast":{"hash":"0xabcdef1234567890","author":{"fid":42,"username":"alice"}}}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", server.URL)
	require.NoError(t, err)

	cast, err := client.PublishCast(context.Background(), "signer-1", "hello", []string{"https://x.com/a/status/1"}, "0xparent")
	require.NoError(t, err)

	assert.Equal(t, "0xabcdef1234567890", cast.Hash)
	assert.Equal(t, "https://warpcast.com/alice/0xabcdef12", cast.URL("fallback"))
	assert.Equal(t, "signer-1", received.SignerUUID)
	assert.Equal(t, "hello", received.Text)
	assert.Equal(t, "0xparent", received.Parent)
	require.Len(t, received.Embeds, 1)
	assert.Equal(t, "https://x.com/a/status/1", received.Embeds[0].URL)
}

func TestPublishCastRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"InvalidField","message":"text too long"}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", server.URL)
	require.NoError(t, err)

	_, err = client.PublishCast(context.Background(), "signer", "text", nil, "")
	var postErr *PostError
	require.True(t, errors.As(err, &postErr))
	assert.Equal(t, http.StatusBadRequest, postErr.StatusCode)
	assert.Equal(t, "text too long", postErr.Message)
}

func TestPublishCastNotConfigured(t *testing.T) {
	client, err := NewClient("", "http://127.0.0.1:0")
	require.NoError(t, err)

	_, err = client.PublishCast(context.Background(), "signer", "text", nil, "")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestLookupXUsernameCachesHitsAndMisses(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, userByXUsername, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("x_username") {
		case "bob":
			_, _ = w.Write([]byte(`{"users":[{"fid":7,"username":"bobcaster"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
		}
	}))
	defer server.Close()

	client, err := NewClient("test-key", server.URL)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		username, found, err := client.LookupXUsername(ctx, "@Bob")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "bobcaster", username)

		_, found, err = client.LookupXUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.False(t, found)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCastURLShortensHash(t *testing.T) {
	assert.Equal(t, "https://warpcast.com/u/0x12345678", CastURL("u", "0x123456789abcdef"))
	assert.Equal(t, "https://warpcast.com/u/0x1", CastURL("u", "0x1"))
}
