// models/wallet_mirror.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet mirrors the user's ZAR wallet from the sync service.
// The ledger never writes Balance directly, only relative increments.
type Wallet struct {
	ID        string          `gorm:"primaryKey;type:uuid;not null" json:"id"`
	UserID    string          `gorm:"not null;uniqueIndex" json:"user_id"` // External user ID
	Currency  string          `gorm:"type:varchar(8);not null;default:'ZAR'" json:"currency"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"balance"`
	IsActive  bool            `gorm:"not null" json:"is_active"` // always set explicitly, false must survive inserts
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}
