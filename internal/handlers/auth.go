package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"p2p-market/internal/auth"
	"p2p-market/internal/services"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService  *services.AuthService
	adminService *services.AdminService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService, adminService *services.AdminService) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		adminService: adminService,
	}
}

// WalletLogin authenticates a user by wallet address, creating the account
// on first login. A referral code may accompany the first login.
// POST /api/auth/wallet
func (h *AuthHandler) WalletLogin(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required,min=10,max=255"`
		ReferralCode  string `json:"referral_code"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authService.ProcessWalletLogin(req.WalletAddress, req.ReferralCode)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.WalletAddress)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to generate token")
		return
	}

	respondOK(c, gin.H{
		"token": token,
		"user":  user,
	})
}

// Logout handles user logout (stateless JWT, client-side only)
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	respondMessage(c, "successfully logged out")
}

// GetMe returns the currently authenticated user's profile
// GET /api/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		respondError(c, http.StatusNotFound, "user not found")
		return
	}

	respondOK(c, gin.H{
		"user":     user,
		"is_admin": h.adminService.IsAdmin(userID),
	})
}
