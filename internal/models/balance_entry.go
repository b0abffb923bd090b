package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BalanceEntryType string

const (
	BalanceEntryTypeLock     BalanceEntryType = "LOCK"
	BalanceEntryTypeTransfer BalanceEntryType = "TRANSFER"
	BalanceEntryTypeRefund   BalanceEntryType = "REFUND"
	BalanceEntryTypeReward   BalanceEntryType = "REWARD"
	BalanceEntryTypeBonus    BalanceEntryType = "BONUS"
)

// BalanceEntry is an append-only record of every balance mutation. The user
// row remains the balance authority; this log exists so a trade's fund
// movements can be replayed and audited.
type BalanceEntry struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	TradeID   *uuid.UUID       `gorm:"type:uuid;index" json:"trade_id,omitempty"`
	EntryType BalanceEntryType `gorm:"size:20;not null;index" json:"entry_type"`
	Amount    decimal.Decimal  `gorm:"type:decimal(18,8);not null" json:"amount"`
	Note      string           `gorm:"size:255" json:"note"`
	CreatedAt time.Time        `json:"created_at"`
}

func (BalanceEntry) TableName() string {
	return "balance_entries"
}
