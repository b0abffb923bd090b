package services

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"p2p-market/internal/models"
)

func setupWalletDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.WalletConnection{},
		&models.BalanceEntry{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func TestWalletConnectPaysBonusOnce(t *testing.T) {
	db := setupWalletDB(t)
	service := NewWalletService(db, decimal.NewFromInt(50))

	user := models.User{WalletAddress: "login-wallet", Nickname: "user"}
	db.Create(&user)

	conn, err := service.Connect(user.ID, "0xabc123", "")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if conn.Network != "ETHEREUM" {
		t.Errorf("expected default network, got %s", conn.Network)
	}
	if !conn.BonusPaid.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected bonus 50, got %s", conn.BonusPaid)
	}

	var reloaded models.User
	db.First(&reloaded, user.ID)
	if !reloaded.TokenBalance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected balance 50, got %s", reloaded.TokenBalance)
	}

	// Reconnecting pays nothing.
	if _, err := service.Connect(user.ID, "0xdef456", "ETHEREUM"); !IsConflict(err) {
		t.Fatalf("expected conflict on second connection, got %v", err)
	}
	db.First(&reloaded, user.ID)
	if !reloaded.TokenBalance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("double bonus detected: %s", reloaded.TokenBalance)
	}

	// A used address cannot be claimed by another user.
	other := models.User{WalletAddress: "other-wallet", Nickname: "other"}
	db.Create(&other)
	if _, err := service.Connect(other.ID, "0xabc123", "ETHEREUM"); !IsConflict(err) {
		t.Fatalf("expected conflict on address reuse, got %v", err)
	}
}
