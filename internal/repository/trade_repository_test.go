package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"p2p-market/internal/models"
)

func setupRepoDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(&models.User{}, &models.Trade{}, &models.TradeMessage{})
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func seedTrade(t *testing.T, db *gorm.DB, kind models.TradeKind, status models.TradeStatus, price int64, expiresAt *time.Time) *models.Trade {
	trade := &models.Trade{
		ID:               uuid.New(),
		Kind:             kind,
		SellerID:         1,
		Amount:           decimal.NewFromInt(10),
		UnitPrice:        decimal.NewFromInt(price),
		Total:            decimal.NewFromInt(10 * price),
		PaymentMethod:    "bank_transfer",
		TimeLimitMinutes: 30,
		Status:           status,
		ExpiresAt:        expiresAt,
	}
	if err := db.Create(trade).Error; err != nil {
		t.Fatalf("failed to seed trade: %v", err)
	}
	return trade
}

func TestListOpenTradesOrderingAndFilter(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedTrade(t, db, models.TradeKindSell, models.TradeStatusActive, 5, nil)
	seedTrade(t, db, models.TradeKindSell, models.TradeStatusActive, 2, nil)
	seedTrade(t, db, models.TradeKindSell, models.TradeStatusActive, 8, nil)
	seedTrade(t, db, models.TradeKindBuy, models.TradeStatusActive, 7, nil)
	seedTrade(t, db, models.TradeKindSell, models.TradeStatusCompleted, 1, nil)

	// SELL listings sort cheapest first; completed trades never appear.
	trades, total, err := repo.ListOpenTrades(ctx, models.TradeFilter{Kind: models.TradeKindSell}, 10, 0)
	if err != nil {
		t.Fatalf("ListOpenTrades failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 SELL listings, got %d", total)
	}
	if !trades[0].UnitPrice.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected cheapest first, got %s", trades[0].UnitPrice)
	}
	if !trades[2].UnitPrice.Equal(decimal.NewFromInt(8)) {
		t.Errorf("expected dearest last, got %s", trades[2].UnitPrice)
	}

	// BUY listings sort highest bid first.
	trades, total, err = repo.ListOpenTrades(ctx, models.TradeFilter{Kind: models.TradeKindBuy}, 10, 0)
	if err != nil {
		t.Fatalf("ListOpenTrades failed: %v", err)
	}
	if total != 1 || !trades[0].UnitPrice.Equal(decimal.NewFromInt(7)) {
		t.Errorf("unexpected BUY listing result: total=%d", total)
	}

	// Amount filter.
	_, total, err = repo.ListOpenTrades(ctx, models.TradeFilter{MinAmount: decimal.NewFromInt(100)}, 10, 0)
	if err != nil {
		t.Fatalf("ListOpenTrades failed: %v", err)
	}
	if total != 0 {
		t.Errorf("expected no listings above amount 100, got %d", total)
	}
}

func TestListExpiredProcessingIDs(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	expired := seedTrade(t, db, models.TradeKindSell, models.TradeStatusProcessing, 1, &past)
	seedTrade(t, db, models.TradeKindSell, models.TradeStatusProcessing, 1, &future)
	seedTrade(t, db, models.TradeKindSell, models.TradeStatusActive, 1, nil)
	seedTrade(t, db, models.TradeKindSell, models.TradeStatusDisputed, 1, &past)

	ids, err := repo.ListExpiredProcessingIDs(ctx, now)
	if err != nil {
		t.Fatalf("ListExpiredProcessingIDs failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 expired id, got %d", len(ids))
	}
	if ids[0] != expired.ID {
		t.Errorf("wrong trade flagged as expired: %s", ids[0])
	}
}
