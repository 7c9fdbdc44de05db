package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a Farcaster account that casts its Twitter/X content through the bridge
type User struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	FID              int64           `gorm:"column:fid;uniqueIndex;not null" json:"fid"`
	Username         string          `gorm:"size:255" json:"username"`
	WalletAddress    string          `gorm:"size:64;index" json:"wallet_address"`
	SignerUUID       string          `gorm:"size:64" json:"-"`
	IsRegistered     bool            `gorm:"default:false" json:"is_registered"`
	SpendingApproved bool            `gorm:"default:false" json:"spending_approved"`
	SpendingLimit    decimal.Decimal `gorm:"type:decimal(18,6);default:0" json:"spending_limit"`
	USDCBalance      decimal.Decimal `gorm:"column:usdc_balance;type:decimal(18,6);default:0" json:"usdc_balance"`
	TotalSpent       decimal.Decimal `gorm:"type:decimal(18,6);default:0" json:"total_spent"`
	BalanceSyncedAt  *time.Time      `json:"balance_synced_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// HasWallet reports whether a wallet address is on file
func (u *User) HasWallet() bool {
	return u.WalletAddress != ""
}
