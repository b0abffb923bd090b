package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"p2p-market/internal/auth"
	"p2p-market/internal/services"
)

// KYCHandler handles identity verification endpoints
type KYCHandler struct {
	kycService *services.KYCService
	uploadDir  string
}

func NewKYCHandler(kycService *services.KYCService, uploadDir string) *KYCHandler {
	return &KYCHandler{
		kycService: kycService,
		uploadDir:  uploadDir,
	}
}

// Submit files a verification request with an identity document
// POST /api/kyc/submit
func (h *KYCHandler) Submit(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	fullName := c.PostForm("full_name")
	documentType := c.PostForm("document_type")
	if fullName == "" || documentType == "" {
		respondError(c, http.StatusBadRequest, "full_name and document_type are required")
		return
	}

	file, err := c.FormFile("document")
	if err != nil {
		respondError(c, http.StatusBadRequest, "document file is required")
		return
	}
	if file.Size > 10<<20 {
		respondError(c, http.StatusBadRequest, "document exceeds 10MB limit")
		return
	}

	dir := filepath.Join(h.uploadDir, "kyc", fmt.Sprint(userID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to store document")
		return
	}

	dst := filepath.Join(dir, fmt.Sprintf("%s_%s", uuid.NewString()[:8], filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to store document")
		return
	}

	submission, err := h.kycService.Submit(userID, fullName, documentType, dst)
	if err != nil {
		os.Remove(dst)
		respondServiceError(c, err)
		return
	}

	respondCreated(c, submission)
}

// GetStatus returns the caller's verification history
// GET /api/kyc/status
func (h *KYCHandler) GetStatus(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	submissions, err := h.kycService.GetUserSubmissions(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load submissions")
		return
	}

	respondOK(c, submissions)
}
