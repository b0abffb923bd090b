package services

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"p2p-market/internal/models"
)

func setupKYCDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.KYCSubmission{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func TestKYCApprovalFlips(t *testing.T) {
	db := setupKYCDB(t)
	service := NewKYCService(db)

	user := models.User{WalletAddress: "applicant", Nickname: "applicant"}
	db.Create(&user)

	submission, err := service.Submit(user.ID, "Jane Doe", "passport", "/uploads/kyc/1/doc.png")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if submission.Status != models.KYCStatusPending {
		t.Fatalf("expected PENDING, got %s", submission.Status)
	}

	// A second submission while one is pending is rejected.
	if _, err := service.Submit(user.ID, "Jane Doe", "passport", "/uploads/kyc/1/doc2.png"); !IsPrecondition(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}

	reviewed, err := service.Review(submission.ID, 99, true, "looks good")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if reviewed.Status != models.KYCStatusApproved {
		t.Fatalf("expected APPROVED, got %s", reviewed.Status)
	}

	var reloaded models.User
	db.First(&reloaded, user.ID)
	if !reloaded.KYCVerified {
		t.Error("expected user to be verified after approval")
	}

	// Further submissions after verification are rejected.
	if _, err := service.Submit(user.ID, "Jane Doe", "passport", "/x.png"); !IsPrecondition(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}

	// Reviewing the same submission again is rejected.
	if _, err := service.Review(submission.ID, 99, false, "flip-flop"); !IsPrecondition(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestKYCRejectionAllowsRetry(t *testing.T) {
	db := setupKYCDB(t)
	service := NewKYCService(db)

	user := models.User{WalletAddress: "retrier", Nickname: "retrier"}
	db.Create(&user)

	first, err := service.Submit(user.ID, "John Doe", "id_card", "/uploads/kyc/2/blurry.png")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	rejected, err := service.Review(first.ID, 99, false, "document unreadable")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if rejected.Status != models.KYCStatusRejected {
		t.Fatalf("expected REJECTED, got %s", rejected.Status)
	}

	var reloaded models.User
	db.First(&reloaded, user.ID)
	if reloaded.KYCVerified {
		t.Error("rejection must not verify the user")
	}

	// The user may try again after rejection.
	if _, err := service.Submit(user.ID, "John Doe", "id_card", "/uploads/kyc/2/sharp.png"); err != nil {
		t.Fatalf("resubmission after rejection failed: %v", err)
	}

	submissions, err := service.GetUserSubmissions(user.ID)
	if err != nil {
		t.Fatalf("GetUserSubmissions failed: %v", err)
	}
	if len(submissions) != 2 {
		t.Errorf("expected 2 submissions, got %d", len(submissions))
	}
}
