package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"p2p-market/internal/auth"
	"p2p-market/internal/services"
)

// UserHandler handles user profile endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GetProfile returns a user's public profile
// GET /api/users/:id
func (h *UserHandler) GetProfile(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.userService.GetUserByID(uint(id))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"id":           user.ID,
		"nickname":     user.Nickname,
		"kyc_verified": user.KYCVerified,
		"created_at":   user.CreatedAt,
	})
}

// UpdateNickname changes the caller's display name
// PUT /api/users/nickname
func (h *UserHandler) UpdateNickname(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Nickname string `json:"nickname" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.UpdateNickname(userID, req.Nickname); err != nil {
		respondServiceError(c, err)
		return
	}

	respondMessage(c, "nickname updated")
}

// GetBalanceHistory returns the caller's balance ledger
// GET /api/users/balance-history
func (h *UserHandler) GetBalanceHistory(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, _ := pagination(c)
	entries, err := h.userService.GetBalanceHistory(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load balance history")
		return
	}

	respondOK(c, entries)
}

// GetLeaderboard returns the top users by token balance
// GET /api/users/leaderboard
func (h *UserHandler) GetLeaderboard(c *gin.Context) {
	limit, _ := pagination(c)
	users, err := h.userService.GetLeaderboard(limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	type entry struct {
		ID           uint   `json:"id"`
		Nickname     string `json:"nickname"`
		TokenBalance string `json:"token_balance"`
	}
	board := make([]entry, 0, len(users))
	for _, u := range users {
		board = append(board, entry{ID: u.ID, Nickname: u.Nickname, TokenBalance: u.TokenBalance.String()})
	}

	respondOK(c, board)
}
