package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"p2p-market/internal/auth"
	"p2p-market/internal/services"
)

// WalletHandler handles external wallet connection endpoints
type WalletHandler struct {
	walletService *services.WalletService
}

func NewWalletHandler(walletService *services.WalletService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
	}
}

// Connect links an external wallet and pays the one-time bonus
// POST /api/wallet/connect
func (h *WalletHandler) Connect(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
		Network       string `json:"network"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.walletService.Connect(userID, req.WalletAddress, req.Network)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, conn)
}

// GetConnection returns the caller's wallet connection
// GET /api/wallet
func (h *WalletHandler) GetConnection(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := h.walletService.GetConnection(userID)
	if err == gorm.ErrRecordNotFound {
		respondOK(c, nil)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load wallet")
		return
	}

	respondOK(c, conn)
}
