package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserBadge is an awarded badge instance. (user_id, badge_key) is unique, which
// is what makes a grant happen at most once.
type UserBadge struct {
	ID            string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string          `gorm:"not null;uniqueIndex:idx_user_badge,priority:1" json:"user_id"`
	BadgeKey      string          `gorm:"type:varchar(16);not null;uniqueIndex:idx_user_badge,priority:2" json:"badge_key"` // BRONZE, SILVER, ...
	XPReward      int64           `gorm:"not null" json:"xp_reward"`
	RewardAmount  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"reward_amount"`
	ReferralCount int64           `json:"referral_count"` // direct referrals at award time
	AwardedAt     time.Time       `gorm:"autoCreateTime" json:"awarded_at"`
}

// UserAchievement tracks XP earned through badges (denormalized).
// The unlocked badge set lives in user_badges.
type UserAchievement struct {
	ID                  string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID              string     `gorm:"uniqueIndex;not null" json:"user_id"`
	TotalXP             int64      `gorm:"not null;default:0" json:"total_xp"`
	LastBadgeUnlockedAt *time.Time `json:"last_badge_unlocked_at,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
