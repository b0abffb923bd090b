package repository

import (
	"context"
	"time"

	"p2p-market/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetTradeByID retrieves a trade by ID
func (r *Repository) GetTradeByID(ctx context.Context, tradeID uuid.UUID) (*models.Trade, error) {
	var trade models.Trade
	err := r.db.WithContext(ctx).Where("id = ?", tradeID).First(&trade).Error
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// ListOpenTrades retrieves ACTIVE listings matching the filter. SELL
// listings sort cheapest first, BUY listings highest bid first; a mixed
// listing falls back to newest first.
func (r *Repository) ListOpenTrades(
	ctx context.Context,
	filter models.TradeFilter,
	limit, offset int,
) ([]*models.Trade, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Trade{}).
		Where("status = ?", models.TradeStatusActive)

	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.PaymentMethod != "" {
		q = q.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.MinAmount.IsPositive() {
		q = q.Where("amount >= ?", filter.MinAmount)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch filter.Kind {
	case models.TradeKindSell:
		q = q.Order("unit_price ASC")
	case models.TradeKindBuy:
		q = q.Order("unit_price DESC")
	default:
		q = q.Order("created_at DESC")
	}

	var trades []*models.Trade
	err := q.Limit(limit).Offset(offset).Find(&trades).Error
	if err != nil {
		return nil, 0, err
	}

	return trades, total, nil
}

// ListUserTrades retrieves all trades a user participates in
func (r *Repository) ListUserTrades(
	ctx context.Context,
	userID uint,
	limit, offset int,
) ([]*models.Trade, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Trade{}).
		Where("seller_id = ? OR buyer_id = ?", userID, userID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var trades []*models.Trade
	err = r.db.WithContext(ctx).
		Where("seller_id = ? OR buyer_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&trades).Error
	if err != nil {
		return nil, 0, err
	}

	return trades, total, nil
}

// ListTradesByStatus retrieves trades in a given status (admin view).
// An empty status lists everything.
func (r *Repository) ListTradesByStatus(
	ctx context.Context,
	status models.TradeStatus,
	limit, offset int,
) ([]*models.Trade, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Trade{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var trades []*models.Trade
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&trades).Error
	if err != nil {
		return nil, 0, err
	}

	return trades, total, nil
}

// ListExpiredProcessingIDs returns ids of PROCESSING trades whose deadline
// has passed. The sweeper re-checks state under the trade lock before
// acting, so a stale id here is harmless.
func (r *Repository) ListExpiredProcessingIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Trade{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.TradeStatusProcessing, now).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListTradeProofs retrieves all proofs for a trade
func (r *Repository) ListTradeProofs(ctx context.Context, tradeID uuid.UUID) ([]*models.TradeProof, error) {
	var proofs []*models.TradeProof
	err := r.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		Order("created_at ASC").
		Find(&proofs).Error
	if err != nil {
		return nil, err
	}
	return proofs, nil
}

// CountTradeProofs counts proofs attached to a trade
func (r *Repository) CountTradeProofs(ctx context.Context, tradeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TradeProof{}).
		Where("trade_id = ?", tradeID).
		Count(&count).Error
	return count, err
}

// ListTradeMessages retrieves the message log for a trade, oldest first
func (r *Repository) ListTradeMessages(ctx context.Context, tradeID uuid.UUID) ([]*models.TradeMessage, error) {
	var messages []*models.TradeMessage
	err := r.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetDisputeByID retrieves a dispute by ID
func (r *Repository) GetDisputeByID(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).Where("id = ?", disputeID).First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// GetDisputeByTradeID retrieves the dispute attached to a trade, if any
func (r *Repository) GetDisputeByTradeID(ctx context.Context, tradeID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).Where("trade_id = ?", tradeID).First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// ListDisputes retrieves disputes by status; empty status lists all
func (r *Repository) ListDisputes(
	ctx context.Context,
	status models.DisputeStatus,
	limit, offset int,
) ([]*models.Dispute, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Dispute{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var disputes []*models.Dispute
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&disputes).Error
	if err != nil {
		return nil, 0, err
	}

	return disputes, total, nil
}

// ListBalanceEntries retrieves the balance audit log for a trade
func (r *Repository) ListBalanceEntries(ctx context.Context, tradeID uuid.UUID) ([]*models.BalanceEntry, error) {
	var entries []*models.BalanceEntry
	err := r.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
