package handlers

import (
	"context"
	"net/http"
	"time"

	"cast-bridge/internal/blockchain"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ChainDiagnoser reports the state of the chain connection
type ChainDiagnoser interface {
	RunDiagnostics(ctx context.Context) *blockchain.DiagnosticResult
}

// HealthHandler serves liveness and dependency checks
type HealthHandler struct {
	db    *gorm.DB
	chain ChainDiagnoser
}

func NewHealthHandler(db *gorm.DB, chain ChainDiagnoser) *HealthHandler {
	return &HealthHandler{db: db, chain: chain}
}

// Health reports whether the server and its database are up
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "ok"

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status = http.StatusServiceUnavailable
		dbStatus = "unavailable"
	}

	c.JSON(status, gin.H{
		"status":   http.StatusText(status),
		"database": dbStatus,
		"time":     time.Now().Format(time.RFC3339),
	})
}

// Chain runs the chain diagnostics
// GET /health/chain
func (h *HealthHandler) Chain(c *gin.Context) {
	if h.chain == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chain client not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result := h.chain.RunDiagnostics(ctx)
	status := http.StatusOK
	if !result.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}
