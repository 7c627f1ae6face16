package models

import (
	"time"

	"gorm.io/gorm"
)

// ReferralUser is a local snapshot of the profile service's users, reduced to
// what the ledger needs: identity plus the weak referrer link.
// Populated via the user sync worker.
type ReferralUser struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service's users.external_id
	Username       string  `gorm:"index" json:"username"`
	ReferrerID     *string `gorm:"index" json:"referrer_id,omitempty"` // ExternalUserID of whoever referred this user
	ReferralCode   string  `json:"referral_code,omitempty"`
	AccountStatus  string  `gorm:"type:varchar(32);default:'active'" json:"account_status"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsActive reports whether the account counts towards active referrals.
func (u ReferralUser) IsActive() bool {
	return u.AccountStatus == "" || u.AccountStatus == "active"
}
