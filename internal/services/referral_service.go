package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	"p2p-market/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReferralService struct {
	db        *gorm.DB
	rebatePct decimal.Decimal
	mu        sync.Mutex
}

// NewReferralService wires the referral program. rebatePct is the flat
// percentage of a completed trade's total credited to the trader's referrer.
func NewReferralService(db *gorm.DB, rebatePct decimal.Decimal) *ReferralService {
	return &ReferralService{
		db:        db,
		rebatePct: rebatePct,
	}
}

// GenerateReferralCode generates a unique referral code for a user
func (s *ReferralService) GenerateReferralCode(userID uint) (*models.ReferralCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.generateRandomCode()
	if err != nil {
		return nil, err
	}

	referralCode := models.ReferralCode{
		UserID:   userID,
		Code:     code,
		IsActive: true,
	}

	if err := s.db.Create(&referralCode).Error; err != nil {
		return nil, fmt.Errorf("failed to create referral code: %w", err)
	}

	log.Printf("Generated referral code %s for user %d", code, userID)
	return &referralCode, nil
}

// generateRandomCode generates a random 8-character code
func (s *ReferralService) generateRandomCode() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b)[:8], nil
}

// GetUserReferralCode gets or creates a referral code for a user
func (s *ReferralService) GetUserReferralCode(userID uint) (*models.ReferralCode, error) {
	var code models.ReferralCode
	result := s.db.Where("user_id = ? AND is_active = ?", userID, true).First(&code)

	if result.Error == gorm.ErrRecordNotFound {
		return s.GenerateReferralCode(userID)
	}

	if result.Error != nil {
		return nil, result.Error
	}

	return &code, nil
}

// ValidateAndApplyReferralCode validates a referral code and creates the
// referral relationship. A user gets at most one referrer, ever.
func (s *ReferralService) ValidateAndApplyReferralCode(referredUserID uint, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var referralCode models.ReferralCode
	if err := s.db.Where("code = ? AND is_active = ?", code, true).First(&referralCode).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return newValidation("code", "invalid referral code")
		}
		return err
	}

	if referralCode.UserID == referredUserID {
		return newValidation("code", "cannot use your own referral code")
	}

	var existingReferral models.Referral
	if err := s.db.Where("referred_user_id = ?", referredUserID).First(&existingReferral).Error; err == nil {
		return newPrecondition("user already has a referrer")
	}

	referral := models.Referral{
		ReferrerID:     referralCode.UserID,
		ReferredUserID: referredUserID,
		ReferralCodeID: &referralCode.ID,
		Status:         "ACTIVE",
	}

	if err := s.db.Create(&referral).Error; err != nil {
		return fmt.Errorf("failed to create referral: %w", err)
	}

	if err := s.db.Model(&models.User{}).Where("id = ?", referredUserID).
		Update("referrer_id", referralCode.UserID).Error; err != nil {
		return err
	}

	s.updateReferralStats(referralCode.UserID)

	log.Printf("Applied referral code %s: user %d referred by user %d", code, referredUserID, referralCode.UserID)
	return nil
}

// ProcessTradeRebate credits the trader's referrer a share of a completed
// trade's total. No referrer or a zero percentage means no rebate.
func (s *ReferralService) ProcessTradeRebate(tradeID uuid.UUID, traderID uint, tradeTotal decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var trader models.User
	if err := s.db.Where("id = ?", traderID).First(&trader).Error; err != nil {
		return err
	}

	if trader.ReferrerID == nil {
		return nil
	}
	if s.rebatePct.IsZero() || !tradeTotal.IsPositive() {
		return nil
	}

	rebateAmount := tradeTotal.Mul(s.rebatePct).Div(decimal.NewFromInt(100))

	rebate := models.ReferralRebate{
		ReferrerID:       *trader.ReferrerID,
		ReferredUserID:   traderID,
		TradeID:          tradeID,
		RebatePercentage: s.rebatePct,
		RebateAmount:     rebateAmount,
		Status:           "PENDING",
	}

	if err := s.db.Create(&rebate).Error; err != nil {
		return fmt.Errorf("failed to create rebate: %w", err)
	}

	// Immediately pay the rebate
	if err := s.payRebate(&rebate); err != nil {
		log.Printf("Error paying rebate: %v", err)
	}

	log.Printf("Rebate created: %s for referrer %d from trade %s", rebateAmount, *trader.ReferrerID, tradeID)
	return nil
}

// payRebate pays out a pending rebate and records it in the balance log.
func (s *ReferralService) payRebate(rebate *models.ReferralRebate) error {
	if rebate.Status != "PENDING" {
		return fmt.Errorf("rebate already paid or invalid status")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", rebate.ReferrerID).
			Update("token_balance", gorm.Expr("token_balance + ?", rebate.RebateAmount)).Error; err != nil {
			return err
		}

		tradeID := rebate.TradeID
		entry := models.BalanceEntry{
			ID:        uuid.New(),
			UserID:    rebate.ReferrerID,
			TradeID:   &tradeID,
			EntryType: models.BalanceEntryTypeReward,
			Amount:    rebate.RebateAmount,
			Note:      "referral rebate",
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(rebate).Updates(map[string]interface{}{
			"status":  "PAID",
			"paid_at": now,
		}).Error; err != nil {
			return err
		}

		return s.updateReferralStatsTx(tx, rebate.ReferrerID)
	})
}

// GetReferralStats returns referral statistics for a user
func (s *ReferralService) GetReferralStats(userID uint) (*models.ReferralStats, error) {
	var stats models.ReferralStats
	result := s.db.Where("user_id = ?", userID).First(&stats)

	if result.Error == gorm.ErrRecordNotFound {
		stats = models.ReferralStats{
			UserID:             userID,
			TotalRebatesEarned: decimal.Zero,
			TotalRebatesPaid:   decimal.Zero,
		}
		if err := s.db.Create(&stats).Error; err != nil {
			return nil, err
		}
		return &stats, nil
	}

	if result.Error != nil {
		return nil, result.Error
	}

	return &stats, nil
}

func (s *ReferralService) updateReferralStats(userID uint) error {
	return s.updateReferralStatsTx(s.db, userID)
}

// updateReferralStatsTx recomputes a user's referral aggregates from the
// source tables.
func (s *ReferralService) updateReferralStatsTx(tx *gorm.DB, userID uint) error {
	var totalReferrals int64
	if err := tx.Model(&models.Referral{}).Where("referrer_id = ?", userID).
		Count(&totalReferrals).Error; err != nil {
		return err
	}

	var activeReferrals int64
	if err := tx.Model(&models.Referral{}).Where("referrer_id = ? AND status = ?", userID, "ACTIVE").
		Count(&activeReferrals).Error; err != nil {
		return err
	}

	var totalRebatesEarned decimal.Decimal
	row := tx.Model(&models.ReferralRebate{}).Where("referrer_id = ?", userID).
		Select("COALESCE(SUM(rebate_amount), 0)").Row()
	if err := row.Scan(&totalRebatesEarned); err != nil {
		totalRebatesEarned = decimal.Zero
	}

	var totalRebatesPaid decimal.Decimal
	row = tx.Model(&models.ReferralRebate{}).Where("referrer_id = ? AND status = ?", userID, "PAID").
		Select("COALESCE(SUM(rebate_amount), 0)").Row()
	if err := row.Scan(&totalRebatesPaid); err != nil {
		totalRebatesPaid = decimal.Zero
	}

	var stats models.ReferralStats
	result := tx.Where("user_id = ?", userID).First(&stats)

	if result.Error == gorm.ErrRecordNotFound {
		stats = models.ReferralStats{
			UserID:             userID,
			TotalReferrals:     int(totalReferrals),
			ActiveReferrals:    int(activeReferrals),
			TotalRebatesEarned: totalRebatesEarned,
			TotalRebatesPaid:   totalRebatesPaid,
		}
		return tx.Create(&stats).Error
	}

	return tx.Model(&stats).Updates(map[string]interface{}{
		"total_referrals":      totalReferrals,
		"active_referrals":     activeReferrals,
		"total_rebates_earned": totalRebatesEarned,
		"total_rebates_paid":   totalRebatesPaid,
		"updated_at":           time.Now(),
	}).Error
}

// GetUserReferrals returns all referrals made by a user
func (s *ReferralService) GetUserReferrals(userID uint) ([]models.Referral, error) {
	var referrals []models.Referral
	if err := s.db.Where("referrer_id = ?", userID).Preload("ReferredUser").Find(&referrals).Error; err != nil {
		return nil, err
	}
	return referrals, nil
}

// GetReferralRebates returns all rebates earned by a user
func (s *ReferralService) GetReferralRebates(userID uint) ([]models.ReferralRebate, error) {
	var rebates []models.ReferralRebate
	if err := s.db.Where("referrer_id = ?", userID).Order("created_at DESC").Find(&rebates).Error; err != nil {
		return nil, err
	}
	return rebates, nil
}
