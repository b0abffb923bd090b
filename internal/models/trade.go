package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TradeKind string

const (
	TradeKindSell TradeKind = "SELL"
	TradeKindBuy  TradeKind = "BUY"
)

type TradeStatus string

const (
	TradeStatusActive     TradeStatus = "ACTIVE"
	TradeStatusProcessing TradeStatus = "PROCESSING"
	TradeStatusCompleted  TradeStatus = "COMPLETED"
	TradeStatusCancelled  TradeStatus = "CANCELLED"
	TradeStatusDisputed   TradeStatus = "DISPUTED"
)

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "OPEN"
	DisputeStatusResolved DisputeStatus = "RESOLVED"
)

// Trade represents a P2P trade listing and its lifecycle state.
//
// The user who posted the listing is the "seller" regardless of kind, for
// historical reasons: a SELL listing offers tokens for sale, a BUY listing
// asks to buy tokens from whoever accepts. The accepting user is the "buyer".
//
// LockedAmount/LockedUserID track which side currently holds the token debit.
// They are set when a balance is locked and cleared exactly once, either by
// the transfer on completion or by a refund. A refund-eligible transition
// finding LockedUserID nil credits nothing.
type Trade struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Kind               TradeKind       `gorm:"size:10;not null;index" json:"kind"`
	SellerID           uint            `gorm:"not null;index" json:"seller_id"`
	Seller             *User           `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
	BuyerID            *uint           `gorm:"index" json:"buyer_id"`
	Buyer              *User           `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	Amount             decimal.Decimal `gorm:"type:decimal(18,8);not null" json:"amount"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(18,8);not null" json:"unit_price"`
	Total              decimal.Decimal `gorm:"type:decimal(18,8);not null" json:"total"`
	PaymentMethod      string          `gorm:"size:100;not null" json:"payment_method"`
	PaymentDetails     string          `gorm:"type:text" json:"payment_details"`
	Terms              string          `gorm:"type:text" json:"terms"`
	TimeLimitMinutes   int             `gorm:"not null;default:30" json:"time_limit_minutes"`
	Status             TradeStatus     `gorm:"size:20;not null;default:ACTIVE;index" json:"status"`
	LockedAmount       decimal.Decimal `gorm:"type:decimal(18,8);default:0" json:"locked_amount"`
	LockedUserID       *uint           `json:"locked_user_id,omitempty"`
	ExpiresAt          *time.Time      `json:"expires_at"`
	PaidAt             *time.Time      `json:"paid_at"`
	CompletedAt        *time.Time      `json:"completed_at"`
	CancelledAt        *time.Time      `json:"cancelled_at"`
	CancellationReason string          `gorm:"type:text" json:"cancellation_reason"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (Trade) TableName() string {
	return "p2p_trades"
}

// TradeProof is an append-only payment proof attached to a trade while it
// is PROCESSING. Proofs are never edited or deleted.
type TradeProof struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TradeID      uuid.UUID `gorm:"type:uuid;not null;index" json:"trade_id"`
	UploadedByID uint      `gorm:"not null" json:"uploaded_by_id"`
	UploadedBy   *User     `gorm:"foreignKey:UploadedByID" json:"uploaded_by,omitempty"`
	Kind         string    `gorm:"size:50;not null;default:payment_proof" json:"kind"`
	FilePath     string    `gorm:"size:500;not null" json:"file_path"`
	Description  string    `gorm:"type:text" json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

func (TradeProof) TableName() string {
	return "p2p_trade_proofs"
}

// TradeMessage is the audit trail of a trade: user chat between the two
// parties plus one system entry per state transition. SenderID is nil for
// system entries.
type TradeMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TradeID   uuid.UUID `gorm:"type:uuid;not null;index" json:"trade_id"`
	SenderID  *uint     `json:"sender_id,omitempty"`
	Sender    *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	IsSystem  bool      `gorm:"default:false;index" json:"is_system"`
	CreatedAt time.Time `json:"created_at"`
}

func (TradeMessage) TableName() string {
	return "p2p_trade_messages"
}

// Dispute is the single optional dispute attached to a trade. Resolution is
// a manual admin decision; the resolution text never drives fund movement.
type Dispute struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	TradeID      uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex" json:"trade_id"`
	RaisedByID   uint          `gorm:"not null" json:"raised_by_id"`
	RaisedBy     *User         `gorm:"foreignKey:RaisedByID" json:"raised_by,omitempty"`
	Reason       string        `gorm:"type:text;not null" json:"reason"`
	Evidence     JSONB         `gorm:"type:jsonb" json:"evidence"`
	Status       DisputeStatus `gorm:"size:20;not null;default:OPEN;index" json:"status"`
	Resolution   string        `gorm:"type:text" json:"resolution"`
	ResolvedByID *uint         `json:"resolved_by_id,omitempty"`
	ResolvedAt   *time.Time    `json:"resolved_at"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (Dispute) TableName() string {
	return "p2p_disputes"
}

// CreateTradeRequest represents a request to post a new trade listing
type CreateTradeRequest struct {
	Kind             TradeKind       `json:"kind" binding:"required,oneof=SELL BUY"`
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	UnitPrice        decimal.Decimal `json:"unit_price" binding:"required"`
	PaymentMethod    string          `json:"payment_method" binding:"required"`
	TimeLimitMinutes int             `json:"time_limit_minutes" binding:"omitempty,min=5,max=1440"`
	Terms            string          `json:"terms"`
	PaymentDetails   string          `json:"payment_details"`
}

// CancelTradeRequest carries the cancellation reason
type CancelTradeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectPaymentRequest carries the rejection reason
type RejectPaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// DisputeRequest opens a dispute on a processing trade
type DisputeRequest struct {
	Reason   string `json:"reason" binding:"required"`
	Evidence JSONB  `json:"evidence"`
}

// ResolveDisputeRequest carries the admin's free-text resolution
type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

// TradeMessageRequest posts a chat message on a trade
type TradeMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// UpdatePaymentDetailsRequest edits payment details while processing
type UpdatePaymentDetailsRequest struct {
	PaymentDetails string `json:"payment_details" binding:"required"`
}

// TradeFilter narrows the open-trade listing
type TradeFilter struct {
	Kind          TradeKind
	PaymentMethod string
	MinAmount     decimal.Decimal
}
