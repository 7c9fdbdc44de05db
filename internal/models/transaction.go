package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionType string

const (
	TransactionTypeCastPayment TransactionType = "cast_payment"
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeRefund      TransactionType = "refund"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Transaction is an append-only ledger record of a charge
type Transaction struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Reference   uuid.UUID         `gorm:"type:uuid;uniqueIndex;not null" json:"reference"`
	UserID      uint              `gorm:"not null;index" json:"user_id"`
	TweetID     *uint             `gorm:"index" json:"tweet_id,omitempty"`
	Type        TransactionType   `gorm:"size:50;not null;index" json:"type"`
	Amount      decimal.Decimal   `gorm:"type:decimal(18,6);not null" json:"amount"`
	Currency    string            `gorm:"size:10;not null;default:USDC" json:"currency"`
	Status      TransactionStatus `gorm:"size:20;not null;index" json:"status"`
	TxHash      string            `gorm:"size:80" json:"tx_hash"`
	Description string            `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSON    `json:"metadata"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

// CastPaymentMetadata is stored in Transaction.Metadata for cast payments
type CastPaymentMetadata struct {
	ConversationID string            `json:"conversation_id,omitempty"`
	CastResults    []TweetCastResult `json:"cast_results"`
}
