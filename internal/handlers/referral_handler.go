package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"p2p-market/internal/auth"
	"p2p-market/internal/services"
)

// ReferralHandler handles referral program endpoints
type ReferralHandler struct {
	referralService *services.ReferralService
}

func NewReferralHandler(referralService *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
	}
}

// GetMyCode returns (or creates) the caller's referral code
// GET /api/referrals/code
func (h *ReferralHandler) GetMyCode(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	code, err := h.referralService.GetUserReferralCode(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load referral code")
		return
	}

	respondOK(c, code)
}

// ApplyCode links the caller to a referrer
// POST /api/referrals/apply
func (h *ReferralHandler) ApplyCode(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.referralService.ValidateAndApplyReferralCode(userID, req.Code); err != nil {
		respondServiceError(c, err)
		return
	}

	respondMessage(c, "referral code applied")
}

// GetMyReferrals lists the users the caller referred
// GET /api/referrals
func (h *ReferralHandler) GetMyReferrals(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	referrals, err := h.referralService.GetUserReferrals(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load referrals")
		return
	}

	respondOK(c, referrals)
}

// GetMyRebates lists the rebates the caller earned
// GET /api/referrals/rebates
func (h *ReferralHandler) GetMyRebates(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	rebates, err := h.referralService.GetReferralRebates(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load rebates")
		return
	}

	respondOK(c, rebates)
}

// GetMyStats returns the caller's referral statistics
// GET /api/referrals/stats
func (h *ReferralHandler) GetMyStats(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.referralService.GetReferralStats(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load stats")
		return
	}

	respondOK(c, stats)
}
