package handlers

import (
	"net/http"

	"cast-bridge/internal/auth"
	"cast-bridge/internal/models"
	"cast-bridge/internal/services"

	"github.com/gin-gonic/gin"
)

// respondError writes a CastError as {"error", "code"}. Anything else is
// reported as a generic internal error.
func respondError(c *gin.Context, err error) {
	castErr := services.AsCastError(err)
	c.JSON(castErr.Status, gin.H{
		"success": false,
		"error":   castErr.Message,
		"code":    castErr.Code,
	})
}

// outcomeStatus maps a workflow outcome to an HTTP status
func outcomeStatus(outcome models.CastOutcome) int {
	switch outcome {
	case models.CastOutcomeSucceeded:
		return http.StatusOK
	case models.CastOutcomePartial:
		return http.StatusMultiStatus
	default:
		return http.StatusBadGateway
	}
}

func requireFID(c *gin.Context) (int64, bool) {
	fid, ok := auth.GetFID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "User not authenticated",
		})
		return 0, false
	}
	return fid, true
}
