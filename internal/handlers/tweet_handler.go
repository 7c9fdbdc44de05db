package handlers

import (
	"net/http"
	"strconv"

	"cast-bridge/internal/models"
	"cast-bridge/internal/services"

	"github.com/gin-gonic/gin"
)

// TweetHandler lists tweets and manages rejection
type TweetHandler struct {
	tweetService *services.TweetService
}

func NewTweetHandler(tweetService *services.TweetService) *TweetHandler {
	return &TweetHandler{tweetService: tweetService}
}

// ListTweets returns the user's tweets
// GET /api/tweets?status=&limit=&offset=
func (h *TweetHandler) ListTweets(c *gin.Context) {
	fid, ok := requireFID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := models.CastStatus(c.Query("status"))

	tweets, err := h.tweetService.ListTweets(c.Request.Context(), fid, status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tweets": tweets,
		"count":  len(tweets),
	})
}

// RejectTweet excludes a tweet from casting
// POST /api/tweets/:tweet_id/reject
func (h *TweetHandler) RejectTweet(c *gin.Context) {
	fid, ok := requireFID(c)
	if !ok {
		return
	}

	tweet, err := h.tweetService.Reject(c.Request.Context(), fid, c.Param("tweet_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tweet": tweet})
}

// RestoreTweet returns a rejected tweet to pending
// POST /api/tweets/:tweet_id/restore
func (h *TweetHandler) RestoreTweet(c *gin.Context) {
	fid, ok := requireFID(c)
	if !ok {
		return
	}

	tweet, err := h.tweetService.Restore(c.Request.Context(), fid, c.Param("tweet_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tweet": tweet})
}
