package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"p2p-market/internal/auth"
	"p2p-market/internal/models"
	"p2p-market/internal/repository"
	"p2p-market/internal/services"
)

type AdminHandler struct {
	adminService *services.AdminService
	tradeService *services.TradeService
	kycService   *services.KYCService
	taskService  *services.TaskService
	repo         *repository.Repository
}

func NewAdminHandler(
	adminService *services.AdminService,
	tradeService *services.TradeService,
	kycService *services.KYCService,
	taskService *services.TaskService,
	repo *repository.Repository,
) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		tradeService: tradeService,
		kycService:   kycService,
		taskService:  taskService,
		repo:         repo,
	}
}

// AdminMiddleware checks if the authenticated user is an admin
func (h *AdminHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := auth.GetUserID(c)
		if !exists {
			respondError(c, http.StatusUnauthorized, "unauthorized")
			c.Abort()
			return
		}

		admin, err := h.adminService.GetAdminByUserID(userID)
		if err != nil {
			respondError(c, http.StatusForbidden, "not an admin")
			c.Abort()
			return
		}

		c.Set("admin_id", admin.ID)
		c.Set("admin_role", admin.Role)
		c.Next()
	}
}

// SuperAdminMiddleware checks if user is super admin
func (h *AdminHandler) SuperAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("admin_role")
		if !exists || role != "SUPER_ADMIN" {
			respondError(c, http.StatusForbidden, "super admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetDashboard returns platform statistics and recent admin activity
// GET /api/admin/dashboard
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load stats")
		return
	}

	recentLogs, _ := h.adminService.GetAdminLogs(10, 0)

	respondOK(c, gin.H{
		"stats":       stats,
		"recent_logs": recentLogs,
	})
}

// ListUsers returns users with optional search
// GET /api/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := pagination(c)
	users, total, err := h.adminService.GetAllUsers(limit, offset, c.Query("search"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list users")
		return
	}

	respondOK(c, gin.H{"users": users, "total": total})
}

// PromoteUser promotes a user to admin
// POST /api/admin/users/:id/promote
func (h *AdminHandler) PromoteUser(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var req struct {
		Role string `json:"role" binding:"required,oneof=ADMIN MODERATOR"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	adminUser, err := h.adminService.PromoteUserToAdmin(uint(userID), req.Role, c.GetUint("admin_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, adminUser)
}

// DemoteAdmin removes a user's admin role
// DELETE /api/admin/users/:id/admin
func (h *AdminHandler) DemoteAdmin(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.adminService.DemoteAdmin(uint(userID), c.GetUint("admin_id")); err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, nil)
}

// ListTrades returns trades filtered by status
// GET /api/admin/trades
func (h *AdminHandler) ListTrades(c *gin.Context) {
	limit, offset := pagination(c)
	status := models.TradeStatus(c.Query("status"))

	trades, total, err := h.repo.ListTradesByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list trades")
		return
	}

	respondOK(c, gin.H{"trades": trades, "total": total})
}

// GetTradeAudit returns a trade with its messages, proofs and balance log
// GET /api/admin/trades/:id
func (h *AdminHandler) GetTradeAudit(c *gin.Context) {
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	trade, err := h.repo.GetTradeByID(c.Request.Context(), tradeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	messages, _ := h.repo.ListTradeMessages(c.Request.Context(), tradeID)
	proofs, _ := h.repo.ListTradeProofs(c.Request.Context(), tradeID)
	entries, _ := h.repo.ListBalanceEntries(c.Request.Context(), tradeID)

	respondOK(c, gin.H{
		"trade":           trade,
		"messages":        messages,
		"proofs":          proofs,
		"balance_entries": entries,
	})
}

// ForceCompleteTrade settles a trade in favour of the token buyer
// POST /api/admin/trades/:id/force-complete
func (h *AdminHandler) ForceCompleteTrade(c *gin.Context) {
	h.runOverride(c, "FORCE_COMPLETE_TRADE", func(tradeID uuid.UUID, adminID uint, reason string) (*models.Trade, error) {
		return h.tradeService.ForceComplete(c.Request.Context(), tradeID, adminID, reason)
	})
}

// ForceCancelTrade cancels a trade and refunds any locked balance
// POST /api/admin/trades/:id/force-cancel
func (h *AdminHandler) ForceCancelTrade(c *gin.Context) {
	h.runOverride(c, "FORCE_CANCEL_TRADE", func(tradeID uuid.UUID, adminID uint, reason string) (*models.Trade, error) {
		return h.tradeService.ForceCancel(c.Request.Context(), tradeID, adminID, reason)
	})
}

// ListDisputes returns disputes filtered by status
// GET /api/admin/disputes
func (h *AdminHandler) ListDisputes(c *gin.Context) {
	limit, offset := pagination(c)
	status := models.DisputeStatus(c.Query("status"))

	disputes, total, err := h.repo.ListDisputes(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list disputes")
		return
	}

	respondOK(c, gin.H{"disputes": disputes, "total": total})
}

// ResolveDispute closes a dispute, cancelling and refunding the trade
// POST /api/admin/disputes/:id/resolve
func (h *AdminHandler) ResolveDispute(c *gin.Context) {
	adminID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid dispute id")
		return
	}

	var req models.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	dispute, err := h.tradeService.ResolveDispute(c.Request.Context(), disputeID, adminID, req.Resolution)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.adminService.LogAdminAction(adminID, "RESOLVE_DISPUTE", "DISPUTE", disputeID.String(), map[string]interface{}{
		"resolution": req.Resolution,
	})

	respondOK(c, dispute)
}

// ListPendingKYC returns submissions awaiting review
// GET /api/admin/kyc/pending
func (h *AdminHandler) ListPendingKYC(c *gin.Context) {
	submissions, err := h.kycService.ListPending()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list submissions")
		return
	}

	respondOK(c, submissions)
}

// ReviewKYC approves or rejects a submission
// POST /api/admin/kyc/:id/review
func (h *AdminHandler) ReviewKYC(c *gin.Context) {
	adminID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	submissionID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid submission id")
		return
	}

	var req struct {
		Approve bool   `json:"approve"`
		Note    string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	submission, err := h.kycService.Review(uint(submissionID), adminID, req.Approve, req.Note)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.adminService.LogAdminAction(adminID, "REVIEW_KYC", "KYC_SUBMISSION", fmt.Sprint(submissionID), map[string]interface{}{
		"approve": req.Approve,
		"note":    req.Note,
	})

	respondOK(c, submission)
}

// CreateTask adds a new platform task
// POST /api/admin/tasks
func (h *AdminHandler) CreateTask(c *gin.Context) {
	adminID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Title       string          `json:"title" binding:"required"`
		Description string          `json:"description"`
		Reward      decimal.Decimal `json:"reward" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskService.CreateTask(req.Title, req.Description, req.Reward)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.adminService.LogAdminAction(adminID, "CREATE_TASK", "TASK", fmt.Sprint(task.ID), nil)

	respondCreated(c, task)
}

// SetTaskActive enables or disables a task
// PUT /api/admin/tasks/:id/active
func (h *AdminHandler) SetTaskActive(c *gin.Context) {
	adminID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	taskID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid task id")
		return
	}

	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.taskService.SetTaskActive(uint(taskID), *req.Active); err != nil {
		respondServiceError(c, err)
		return
	}

	h.adminService.LogAdminAction(adminID, "SET_TASK_ACTIVE", "TASK", fmt.Sprint(taskID), map[string]interface{}{
		"active": *req.Active,
	})

	respondMessage(c, "task updated")
}

// GetLogs returns the admin audit log
// GET /api/admin/logs
func (h *AdminHandler) GetLogs(c *gin.Context) {
	limit, offset := pagination(c)
	logs, err := h.adminService.GetAdminLogs(limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load logs")
		return
	}

	respondOK(c, logs)
}

// ExportTradesCSV streams trades in a status as CSV
// GET /api/admin/trades/export
func (h *AdminHandler) ExportTradesCSV(c *gin.Context) {
	status := models.TradeStatus(c.Query("status"))
	trades, _, err := h.repo.ListTradesByStatus(c.Request.Context(), status, 10000, 0)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to export trades")
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=trades_%s.csv", time.Now().Format("2006-01-02")))

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"id", "kind", "status", "seller_id", "buyer_id", "amount", "unit_price", "total", "payment_method", "created_at", "completed_at", "cancelled_at"})
	for _, t := range trades {
		buyer := ""
		if t.BuyerID != nil {
			buyer = fmt.Sprint(*t.BuyerID)
		}
		completed, cancelled := "", ""
		if t.CompletedAt != nil {
			completed = t.CompletedAt.Format(time.RFC3339)
		}
		if t.CancelledAt != nil {
			cancelled = t.CancelledAt.Format(time.RFC3339)
		}
		w.Write([]string{
			t.ID.String(),
			string(t.Kind),
			string(t.Status),
			fmt.Sprint(t.SellerID),
			buyer,
			t.Amount.String(),
			t.UnitPrice.String(),
			t.Total.String(),
			t.PaymentMethod,
			t.CreatedAt.Format(time.RFC3339),
			completed,
			cancelled,
		})
	}
	w.Flush()
}

// runOverride wraps the shared auth + parsing around an admin trade override.
func (h *AdminHandler) runOverride(c *gin.Context, action string, fn func(uuid.UUID, uint, string) (*models.Trade, error)) {
	adminID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	trade, err := fn(tradeID, adminID, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.adminService.LogAdminAction(adminID, action, "TRADE", tradeID.String(), map[string]interface{}{
		"reason": req.Reason,
	})

	respondOK(c, trade)
}
