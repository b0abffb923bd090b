package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"p2p-market/internal/auth"
	"p2p-market/internal/models"
	"p2p-market/internal/repository"
	"p2p-market/internal/services"
)

type TradeHandler struct {
	tradeService *services.TradeService
	repo         *repository.Repository
	uploadDir    string
}

func NewTradeHandler(tradeService *services.TradeService, repo *repository.Repository, uploadDir string) *TradeHandler {
	return &TradeHandler{
		tradeService: tradeService,
		repo:         repo,
		uploadDir:    uploadDir,
	}
}

// CreateTrade posts a new listing
// POST /api/p2p/trades
func (h *TradeHandler) CreateTrade(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	trade, err := h.tradeService.CreateTrade(c.Request.Context(), userID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, trade)
}

// ListOpenTrades lists ACTIVE listings with optional filters
// GET /api/p2p/trades
func (h *TradeHandler) ListOpenTrades(c *gin.Context) {
	filter := models.TradeFilter{
		Kind:          models.TradeKind(c.Query("kind")),
		PaymentMethod: c.Query("payment_method"),
	}
	if minStr := c.Query("min_amount"); minStr != "" {
		if min, err := decimal.NewFromString(minStr); err == nil {
			filter.MinAmount = min
		}
	}

	limit, offset := pagination(c)
	trades, total, err := h.repo.ListOpenTrades(c.Request.Context(), filter, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list trades")
		return
	}

	respondOK(c, gin.H{"trades": trades, "total": total})
}

// ListMyTrades lists trades the caller participates in
// GET /api/p2p/trades/my
func (h *TradeHandler) ListMyTrades(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := pagination(c)
	trades, total, err := h.repo.ListUserTrades(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list trades")
		return
	}

	respondOK(c, gin.H{"trades": trades, "total": total})
}

// GetTrade retrieves a trade by ID
// GET /api/p2p/trades/:id
func (h *TradeHandler) GetTrade(c *gin.Context) {
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	trade, err := h.tradeService.GetTradeByID(c.Request.Context(), tradeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, trade)
}

// AcceptTrade accepts an open listing
// POST /api/p2p/trades/:id/initiate
func (h *TradeHandler) AcceptTrade(c *gin.Context) {
	h.runTransition(c, func(tradeID uuid.UUID, userID uint) (*models.Trade, error) {
		return h.tradeService.AcceptTrade(c.Request.Context(), tradeID, userID)
	})
}

// UploadProof attaches a payment proof file to a trade
// POST /api/p2p/trades/:id/upload-proof
func (h *TradeHandler) UploadProof(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "proof file is required")
		return
	}
	if file.Size > 10<<20 {
		respondError(c, http.StatusBadRequest, "proof file exceeds 10MB limit")
		return
	}

	dir := filepath.Join(h.uploadDir, "proofs", tradeID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to store proof")
		return
	}

	dst := filepath.Join(dir, fmt.Sprintf("%s_%s", uuid.NewString()[:8], filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to store proof")
		return
	}

	proof, err := h.tradeService.UploadProof(c.Request.Context(), tradeID, userID, dst, c.PostForm("description"))
	if err != nil {
		os.Remove(dst)
		respondServiceError(c, err)
		return
	}

	respondCreated(c, proof)
}

// ListProofs lists the proofs attached to a trade
// GET /api/p2p/trades/:id/proofs
func (h *TradeHandler) ListProofs(c *gin.Context) {
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	proofs, err := h.repo.ListTradeProofs(c.Request.Context(), tradeID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list proofs")
		return
	}

	respondOK(c, proofs)
}

// MarkPaid records that the paying side sent payment
// POST /api/p2p/trades/:id/mark-paid
func (h *TradeHandler) MarkPaid(c *gin.Context) {
	h.runTransition(c, func(tradeID uuid.UUID, userID uint) (*models.Trade, error) {
		return h.tradeService.MarkPaid(c.Request.Context(), tradeID, userID)
	})
}

// ConfirmPayment confirms receipt of payment and releases the tokens
// POST /api/p2p/trades/:id/confirm-payment
func (h *TradeHandler) ConfirmPayment(c *gin.Context) {
	h.runTransition(c, func(tradeID uuid.UUID, userID uint) (*models.Trade, error) {
		return h.tradeService.ConfirmPayment(c.Request.Context(), tradeID, userID)
	})
}

// RejectPayment disputes a claimed payment
// POST /api/p2p/trades/:id/reject-payment
func (h *TradeHandler) RejectPayment(c *gin.Context) {
	var req models.RejectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	h.runTransition(c, func(tradeID uuid.UUID, userID uint) (*models.Trade, error) {
		return h.tradeService.RejectPayment(c.Request.Context(), tradeID, userID, req.Reason)
	})
}

// CancelTrade cancels a trade
// POST /api/p2p/trades/:id/cancel
func (h *TradeHandler) CancelTrade(c *gin.Context) {
	var req models.CancelTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	h.runTransition(c, func(tradeID uuid.UUID, userID uint) (*models.Trade, error) {
		return h.tradeService.CancelTrade(c.Request.Context(), tradeID, userID, req.Reason)
	})
}

// DeleteTrade removes an unaccepted listing
// DELETE /api/p2p/trades/:id
func (h *TradeHandler) DeleteTrade(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	if err := h.tradeService.DeleteTrade(c.Request.Context(), tradeID, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	respondMessage(c, "trade deleted")
}

// RaiseDispute opens a dispute on a processing trade
// POST /api/p2p/trades/:id/dispute
func (h *TradeHandler) RaiseDispute(c *gin.Context) {
	var req models.DisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	h.runTransition(c, func(tradeID uuid.UUID, userID uint) (*models.Trade, error) {
		return h.tradeService.RaiseDispute(c.Request.Context(), tradeID, userID, req.Reason, req.Evidence)
	})
}

// UpdatePaymentDetails edits a trade's payment details while processing
// PUT /api/p2p/trades/:id/payment-details
func (h *TradeHandler) UpdatePaymentDetails(c *gin.Context) {
	var req models.UpdatePaymentDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	h.runTransition(c, func(tradeID uuid.UUID, userID uint) (*models.Trade, error) {
		return h.tradeService.UpdatePaymentDetails(c.Request.Context(), tradeID, userID, req.PaymentDetails)
	})
}

// ListMessages returns a trade's chat and system log
// GET /api/p2p/trades/:id/messages
func (h *TradeHandler) ListMessages(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	trade, err := h.tradeService.GetTradeByID(c.Request.Context(), tradeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if trade.SellerID != userID && (trade.BuyerID == nil || *trade.BuyerID != userID) {
		respondError(c, http.StatusForbidden, "only trade participants can view messages")
		return
	}

	messages, err := h.repo.ListTradeMessages(c.Request.Context(), tradeID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list messages")
		return
	}

	respondOK(c, messages)
}

// PostMessage posts a chat message to a trade
// POST /api/p2p/trades/:id/messages
func (h *TradeHandler) PostMessage(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	var req models.TradeMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.tradeService.AddMessage(c.Request.Context(), tradeID, userID, req.Body)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, msg)
}

// runTransition wraps the shared auth + id parsing around a state change.
func (h *TradeHandler) runTransition(c *gin.Context, fn func(uuid.UUID, uint) (*models.Trade, error)) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	trade, err := fn(tradeID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, trade)
}

func parseTradeID(c *gin.Context) (uuid.UUID, bool) {
	tradeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid trade id")
		return uuid.Nil, false
	}
	return tradeID, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, offset = 20, 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}
