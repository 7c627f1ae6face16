package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType is the business event that triggers commissions.
type EventType string

const (
	EventTypeSignup  EventType = "SIGNUP"
	EventTypeUpgrade EventType = "UPGRADE"
)

func (e EventType) Valid() bool {
	return e == EventTypeSignup || e == EventTypeUpgrade
}

// CommissionStatus is terminal on creation; there is no pending lifecycle.
type CommissionStatus string

const (
	CommissionStatusPaid CommissionStatus = "PAID"
)

// ReferralCommission is one ledger line: a commission credited to a referrer
// for a single (event, level). Rows are never updated or deleted.
type ReferralCommission struct {
	ID             string           `gorm:"primaryKey;type:uuid" json:"id"` // uuid v5 of (event_id, level, referrer_id)
	ReferrerID     string           `gorm:"index;not null" json:"referrer_id"`
	ReferredUserID string           `gorm:"index;not null" json:"referred_user_id"`
	EventType      EventType        `gorm:"type:varchar(16);not null" json:"event_type"`
	EventID        string           `gorm:"not null;uniqueIndex:idx_commission_event_level,priority:1" json:"event_id"`
	Level          int              `gorm:"not null;uniqueIndex:idx_commission_event_level,priority:2" json:"level"`
	Amount         decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"amount"`
	Rate           decimal.Decimal  `gorm:"type:numeric(6,2);not null" json:"rate"`
	ReferrerTier   string           `gorm:"type:varchar(32);not null" json:"referrer_tier"` // snapshot at credit time
	Status         CommissionStatus `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt      time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	PaidAt         *time.Time       `json:"paid_at,omitempty"`
}

// ReferralStats is the per-referrer aggregate, created lazily by the ledger.
type ReferralStats struct {
	ID                 string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID             string          `gorm:"uniqueIndex;not null" json:"user_id"`
	TotalCommissions   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"total_commissions"`
	PendingCommissions decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"pending_commissions"`
	ActiveReferrals    int64           `gorm:"not null;default:0" json:"active_referrals"`
	TotalReferrals     int64           `gorm:"not null;default:0" json:"total_referrals"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	LastUpdated        time.Time       `json:"last_updated"`
}

func (ReferralStats) TableName() string { return "referral_stats" }
