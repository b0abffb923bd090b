package services

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"p2p-market/internal/models"
)

// KYCService handles identity verification submissions and review.
type KYCService struct {
	db *gorm.DB
}

func NewKYCService(db *gorm.DB) *KYCService {
	return &KYCService{db: db}
}

// Submit files a verification request. A pending submission or an already
// verified account blocks resubmission; a rejected one may try again.
func (s *KYCService) Submit(userID uint, fullName, documentType, documentPath string) (*models.KYCSubmission, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	if user.KYCVerified {
		return nil, newPrecondition("account is already verified")
	}

	var pending int64
	if err := s.db.Model(&models.KYCSubmission{}).
		Where("user_id = ? AND status = ?", userID, models.KYCStatusPending).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, newPrecondition("a verification request is already under review")
	}

	submission := &models.KYCSubmission{
		UserID:       userID,
		FullName:     fullName,
		DocumentType: documentType,
		DocumentPath: documentPath,
		Status:       models.KYCStatusPending,
	}
	if err := s.db.Create(submission).Error; err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	log.Printf("KYC submission %d filed by user %d", submission.ID, userID)
	return submission, nil
}

// GetUserSubmissions returns a user's verification history, newest first.
func (s *KYCService) GetUserSubmissions(userID uint) ([]models.KYCSubmission, error) {
	var submissions []models.KYCSubmission
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

// ListPending returns submissions awaiting review, oldest first.
func (s *KYCService) ListPending() ([]models.KYCSubmission, error) {
	var submissions []models.KYCSubmission
	err := s.db.Where("status = ?", models.KYCStatusPending).
		Preload("User").
		Order("created_at ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

// Review approves or rejects a pending submission. Approval flips the
// user's verified flag, unlocking trading.
func (s *KYCService) Review(submissionID uint, adminID uint, approve bool, note string) (*models.KYCSubmission, error) {
	var submission models.KYCSubmission
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&submission, submissionID).Error; err != nil {
			return err
		}
		if submission.Status != models.KYCStatusPending {
			return newPrecondition("submission already reviewed, current status: %s", submission.Status)
		}

		now := time.Now()
		submission.ReviewNote = note
		submission.ReviewedByID = &adminID
		submission.ReviewedAt = &now
		if approve {
			submission.Status = models.KYCStatusApproved
		} else {
			submission.Status = models.KYCStatusRejected
		}

		if err := tx.Save(&submission).Error; err != nil {
			return fmt.Errorf("failed to update submission: %w", err)
		}

		if approve {
			return tx.Model(&models.User{}).Where("id = ?", submission.UserID).
				Update("kyc_verified", true).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("KYC submission %d reviewed by admin %d: %s", submissionID, adminID, submission.Status)
	return &submission, nil
}
