package services

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"p2p-market/internal/models"
)

// WalletService handles external wallet connections and the one-time
// connection bonus.
type WalletService struct {
	db    *gorm.DB
	bonus decimal.Decimal
}

func NewWalletService(db *gorm.DB, bonus decimal.Decimal) *WalletService {
	return &WalletService{db: db, bonus: bonus}
}

// Connect links an external wallet to the user's account. The first
// connection pays the configured bonus; the unique indexes on user and
// address make a second connection or a reused address fail cleanly.
func (s *WalletService) Connect(userID uint, walletAddress, network string) (*models.WalletConnection, error) {
	if walletAddress == "" {
		return nil, newValidation("wallet_address", "is required")
	}
	if network == "" {
		network = "ETHEREUM"
	}

	conn := &models.WalletConnection{
		UserID:        userID,
		WalletAddress: walletAddress,
		Network:       network,
		BonusPaid:     s.bonus,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conn).Error; err != nil {
			if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate") {
				return newConflict("wallet already connected")
			}
			return fmt.Errorf("failed to connect wallet: %w", err)
		}

		if !s.bonus.IsPositive() {
			return nil
		}

		if err := creditBalance(tx, userID, s.bonus); err != nil {
			return err
		}

		entry := models.BalanceEntry{
			ID:        uuid.New(),
			UserID:    userID,
			EntryType: models.BalanceEntryTypeBonus,
			Amount:    s.bonus,
			Note:      "wallet connection bonus",
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Wallet %s connected for user %d, bonus %s", walletAddress, userID, s.bonus)
	return conn, nil
}

// GetConnection returns the user's wallet connection, if any.
func (s *WalletService) GetConnection(userID uint) (*models.WalletConnection, error) {
	var conn models.WalletConnection
	if err := s.db.Where("user_id = ?", userID).First(&conn).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}
