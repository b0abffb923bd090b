package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"p2p-market/internal/models"
)

func setupReferralDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.ReferralCode{},
		&models.Referral{},
		&models.ReferralRebate{},
		&models.ReferralStats{},
		&models.BalanceEntry{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func TestApplyReferralCode(t *testing.T) {
	db := setupReferralDB(t)
	service := NewReferralService(db, decimal.NewFromInt(5))

	referrer := models.User{WalletAddress: "referrer", Nickname: "referrer"}
	referred := models.User{WalletAddress: "referred", Nickname: "referred"}
	db.Create(&referrer)
	db.Create(&referred)

	code, err := service.GetUserReferralCode(referrer.ID)
	if err != nil {
		t.Fatalf("GetUserReferralCode failed: %v", err)
	}
	if code.Code == "" {
		t.Fatal("expected non-empty code")
	}

	// The same call returns the existing code.
	again, err := service.GetUserReferralCode(referrer.ID)
	if err != nil {
		t.Fatalf("second GetUserReferralCode failed: %v", err)
	}
	if again.Code != code.Code {
		t.Errorf("expected stable code, got %s then %s", code.Code, again.Code)
	}

	// Own code is rejected.
	if err := service.ValidateAndApplyReferralCode(referrer.ID, code.Code); err == nil {
		t.Error("expected self-referral to fail")
	}

	if err := service.ValidateAndApplyReferralCode(referred.ID, code.Code); err != nil {
		t.Fatalf("ValidateAndApplyReferralCode failed: %v", err)
	}

	var user models.User
	db.First(&user, referred.ID)
	if user.ReferrerID == nil || *user.ReferrerID != referrer.ID {
		t.Error("expected referrer to be linked")
	}

	// A second referrer is rejected.
	if err := service.ValidateAndApplyReferralCode(referred.ID, code.Code); err == nil {
		t.Error("expected second referral to fail")
	}

	// Unknown codes are rejected.
	if err := service.ValidateAndApplyReferralCode(referred.ID, "nope1234"); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	stats, err := service.GetReferralStats(referrer.ID)
	if err != nil {
		t.Fatalf("GetReferralStats failed: %v", err)
	}
	if stats.TotalReferrals != 1 {
		t.Errorf("expected 1 referral, got %d", stats.TotalReferrals)
	}
}

func TestProcessTradeRebate(t *testing.T) {
	db := setupReferralDB(t)
	service := NewReferralService(db, decimal.NewFromInt(5))

	referrer := models.User{WalletAddress: "referrer", Nickname: "referrer"}
	db.Create(&referrer)
	trader := models.User{WalletAddress: "trader", Nickname: "trader", ReferrerID: &referrer.ID}
	db.Create(&trader)

	tradeID := uuid.New()
	total := decimal.NewFromInt(200)

	if err := service.ProcessTradeRebate(tradeID, trader.ID, total); err != nil {
		t.Fatalf("ProcessTradeRebate failed: %v", err)
	}

	// 5% of 200 = 10, paid immediately.
	var user models.User
	db.First(&user, referrer.ID)
	if !user.TokenBalance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected referrer balance 10, got %s", user.TokenBalance)
	}

	var rebate models.ReferralRebate
	if err := db.Where("referrer_id = ?", referrer.ID).First(&rebate).Error; err != nil {
		t.Fatalf("expected rebate record: %v", err)
	}
	if rebate.Status != "PAID" {
		t.Errorf("expected PAID rebate, got %s", rebate.Status)
	}
	if rebate.TradeID != tradeID {
		t.Errorf("rebate bound to wrong trade: %s", rebate.TradeID)
	}

	var entry models.BalanceEntry
	if err := db.Where("user_id = ? AND entry_type = ?", referrer.ID, models.BalanceEntryTypeReward).
		First(&entry).Error; err != nil {
		t.Fatalf("expected reward ledger entry: %v", err)
	}
	if !entry.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected entry amount 10, got %s", entry.Amount)
	}

	stats, err := service.GetReferralStats(referrer.ID)
	if err != nil {
		t.Fatalf("GetReferralStats failed: %v", err)
	}
	if !stats.TotalRebatesPaid.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected rebates paid 10, got %s", stats.TotalRebatesPaid)
	}
}

func TestRebateSkippedWithoutReferrer(t *testing.T) {
	db := setupReferralDB(t)
	service := NewReferralService(db, decimal.NewFromInt(5))

	trader := models.User{WalletAddress: "loner", Nickname: "loner"}
	db.Create(&trader)

	if err := service.ProcessTradeRebate(uuid.New(), trader.ID, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("ProcessTradeRebate failed: %v", err)
	}

	var count int64
	db.Model(&models.ReferralRebate{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no rebate without referrer, got %d", count)
	}
}
