package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user account with its internal token balances.
// Balances are bookkeeping values, not on-chain state.
type User struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	WalletAddress string          `gorm:"uniqueIndex;not null" json:"wallet_address"`
	Nickname      string          `gorm:"uniqueIndex;not null" json:"nickname"`
	TokenBalance  decimal.Decimal `gorm:"type:decimal(18,8);default:0" json:"token_balance"`
	UsdcBalance   decimal.Decimal `gorm:"type:decimal(18,8);default:0" json:"usdc_balance"`
	KYCVerified   bool            `gorm:"default:false" json:"kyc_verified"`
	ReferrerID    *uint           `gorm:"index" json:"referrer_id,omitempty"`
	Referrer      *User           `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
