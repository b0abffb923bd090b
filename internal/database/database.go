package database

import (
	"fmt"
	"log"

	"p2p-market/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established successfully")
	return nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate runs migrations against the given database handle
func Migrate(db *gorm.DB) error {
	// Core account models first
	coreModels := []interface{}{
		&models.User{},
		&models.BalanceEntry{},
		&models.KYCSubmission{},
		&models.WalletConnection{},
	}

	for _, model := range coreModels {
		if err := db.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// P2P trade models
	tradeModels := []interface{}{
		&models.Trade{},
		&models.TradeProof{},
		&models.TradeMessage{},
		&models.Dispute{},
	}

	for _, model := range tradeModels {
		if err := db.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// Referral models
	referralModels := []interface{}{
		&models.ReferralCode{},
		&models.Referral{},
		&models.ReferralRebate{},
		&models.ReferralStats{},
	}

	for _, model := range referralModels {
		if err := db.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// Task and admin models
	otherModels := []interface{}{
		&models.Task{},
		&models.TaskCompletion{},
		&models.AdminUser{},
		&models.AdminLog{},
	}

	for _, model := range otherModels {
		if err := db.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
