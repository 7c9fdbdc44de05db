package handlers

import (
	"net/http"
	"strconv"

	"cast-bridge/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// UserHandler handles user-related endpoints
type UserHandler struct {
	userService        *services.UserService
	transactionService *services.TransactionService
	castPrice          decimal.Decimal
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(
	userService *services.UserService,
	transactionService *services.TransactionService,
	castPrice decimal.Decimal,
) *UserHandler {
	return &UserHandler{
		userService:        userService,
		transactionService: transactionService,
		castPrice:          castPrice,
	}
}

// GetProfile returns the current user's profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	fid, ok := requireFID(c)
	if !ok {
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), fid)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       user,
		"cast_price": h.castPrice,
		"can_cast":   user.IsRegistered && user.SpendingApproved && user.HasWallet() && user.USDCBalance.GreaterThanOrEqual(h.castPrice),
	})
}

// UpdateSpendingRequest is the body of PUT /api/user/spending
type UpdateSpendingRequest struct {
	Approved bool            `json:"approved"`
	Limit    decimal.Decimal `json:"limit"`
}

// UpdateSpending approves or revokes spending
// PUT /api/user/spending
func (h *UserHandler) UpdateSpending(c *gin.Context) {
	fid, ok := requireFID(c)
	if !ok {
		return
	}

	var req UpdateSpendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, services.ErrInvalidRequest.WithMessage("Invalid request body: "+err.Error()))
		return
	}

	user, err := h.userService.UpdateSpendingApproval(c.Request.Context(), fid, req.Approved, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// RefreshBalance re-reads the wallet's USDC balance from chain
// POST /api/user/balance/refresh
func (h *UserHandler) RefreshBalance(c *gin.Context) {
	fid, ok := requireFID(c)
	if !ok {
		return
	}

	user, err := h.userService.RefreshBalance(c.Request.Context(), fid)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"usdc_balance":      user.USDCBalance,
		"balance_synced_at": user.BalanceSyncedAt,
	})
}

// GetTransactions returns the user's payment ledger
// GET /api/transactions?limit=
func (h *UserHandler) GetTransactions(c *gin.Context) {
	fid, ok := requireFID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	transactions, err := h.transactionService.ListTransactions(c.Request.Context(), fid, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"count":        len(transactions),
	})
}
