package handlers

import (
	"context"

	"cast-bridge/internal/models"
	"cast-bridge/internal/services"

	"github.com/gin-gonic/gin"
)

// CastHandler handles cast and settlement endpoints
type CastHandler struct {
	casts   *services.CastService
	threads *services.ThreadCastService
}

// NewCastHandler creates a new CastHandler
func NewCastHandler(casts *services.CastService, threads *services.ThreadCastService) *CastHandler {
	return &CastHandler{
		casts:   casts,
		threads: threads,
	}
}

// detach keeps a workflow running when the client goes away, so a post is
// never left without its charge.
func detach(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// CastTweet casts a single tweet
// POST /api/casts
func (h *CastHandler) CastTweet(c *gin.Context) {
	fid, ok := requireFID(c)
	if !ok {
		return
	}

	var req models.CastTweetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, services.ErrMissingFields.WithMessage("Invalid request body: "+err.Error()))
		return
	}

	result, err := h.casts.CastTweet(detach(c), fid, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(outcomeStatus(result.Outcome), result)
}

// CastThread casts every pending tweet of a conversation
// POST /api/casts/thread
func (h *CastHandler) CastThread(c *gin.Context) {
	fid, ok := requireFID(c)
	if !ok {
		return
	}

	var req models.CastThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, services.ErrMissingFields.WithMessage("Invalid request body: "+err.Error()))
		return
	}

	result, err := h.threads.CastThread(detach(c), fid, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(outcomeStatus(result.Outcome), result)
}

// SettleTweet charges for a posted but unpaid tweet
// POST /api/casts/:tweet_id/settle
func (h *CastHandler) SettleTweet(c *gin.Context) {
	fid, ok := requireFID(c)
	if !ok {
		return
	}

	result, err := h.casts.SettleTweet(detach(c), fid, c.Param("tweet_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(outcomeStatus(result.Outcome), result)
}

// SettleThread charges for a posted but unpaid thread
// POST /api/casts/thread/:conversation_id/settle
func (h *CastHandler) SettleThread(c *gin.Context) {
	fid, ok := requireFID(c)
	if !ok {
		return
	}

	result, err := h.threads.SettleThread(detach(c), fid, c.Param("conversation_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(outcomeStatus(result.Outcome), result)
}
