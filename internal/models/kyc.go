package models

import (
	"time"
)

type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "PENDING"
	KYCStatusApproved KYCStatus = "APPROVED"
	KYCStatusRejected KYCStatus = "REJECTED"
)

// KYCSubmission is a user's identity document awaiting admin review.
// Approval flips User.KYCVerified, which gates trade creation and acceptance.
type KYCSubmission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	User         *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	DocumentType string     `gorm:"size:50;not null" json:"document_type"`
	DocumentPath string     `gorm:"size:500;not null" json:"document_path"`
	FullName     string     `gorm:"size:255;not null" json:"full_name"`
	Status       KYCStatus  `gorm:"size:20;not null;default:PENDING;index" json:"status"`
	ReviewNote   string     `gorm:"type:text" json:"review_note"`
	ReviewedByID *uint      `json:"reviewed_by_id,omitempty"`
	ReviewedAt   *time.Time `json:"reviewed_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (KYCSubmission) TableName() string {
	return "kyc_submissions"
}
