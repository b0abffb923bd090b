package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletConnection records a user's externally connected wallet. The first
// connection credits a one-time token bonus; reconnecting pays nothing.
type WalletConnection struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	User          *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	WalletAddress string          `gorm:"uniqueIndex;size:255;not null" json:"wallet_address"`
	Network       string          `gorm:"size:50;default:ETHEREUM" json:"network"`
	BonusPaid     decimal.Decimal `gorm:"type:decimal(18,8);default:0" json:"bonus_paid"`
	ConnectedAt   time.Time       `gorm:"autoCreateTime" json:"connected_at"`
}

func (WalletConnection) TableName() string {
	return "wallet_connections"
}
