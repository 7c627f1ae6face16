package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"referral-ledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BadgeTier orders referral badges; a higher tier needs more direct referrals.
type BadgeTier int

const (
	BadgeNone BadgeTier = iota
	BadgeBronze
	BadgeSilver
	BadgeGold
	BadgeDiamond
)

type BadgeSpec struct {
	Tier                    BadgeTier       `json:"-"`
	Key                     string          `json:"key"`
	Name                    string          `json:"name"`
	DirectReferralsRequired int64           `json:"direct_referrals_required"`
	XPReward                int64           `json:"xp_reward"`
	RewardAmount            decimal.Decimal `json:"reward_amount"`
}

var badgeRegistry = map[BadgeTier]BadgeSpec{
	BadgeBronze:  {BadgeBronze, "BRONZE", "Bronze Recruiter", 5, 50, decimal.NewFromInt(50)},
	BadgeSilver:  {BadgeSilver, "SILVER", "Silver Recruiter", 15, 100, decimal.NewFromInt(150)},
	BadgeGold:    {BadgeGold, "GOLD", "Gold Recruiter", 30, 150, decimal.NewFromInt(300)},
	BadgeDiamond: {BadgeDiamond, "DIAMOND", "Diamond Recruiter", 50, 200, decimal.NewFromInt(500)},
}

func (t BadgeTier) Spec() (BadgeSpec, bool) {
	spec, ok := badgeRegistry[t]
	return spec, ok
}

func (t BadgeTier) Key() string {
	if spec, ok := badgeRegistry[t]; ok {
		return spec.Key
	}
	return ""
}

var badgeByKey = func() map[string]BadgeTier {
	m := make(map[string]BadgeTier, len(badgeRegistry))
	for tier, spec := range badgeRegistry {
		m[spec.Key] = tier
	}
	return m
}()

// ParseBadgeKey maps a stored badge key back to its tier.
func ParseBadgeKey(key string) BadgeTier {
	if tier, ok := badgeByKey[key]; ok {
		return tier
	}
	return BadgeNone
}

func highestTier(unlocked []BadgeTier) BadgeTier {
	highest := BadgeNone
	for _, t := range unlocked {
		if t > highest {
			highest = t
		}
	}
	return highest
}

// QualifyBadge picks the badge to grant for a direct-referral count: the highest
// tier whose threshold is met, considering only tiers above the highest one
// already unlocked. Tiers jumped over are not granted later.
func QualifyBadge(directReferrals int64, unlocked []BadgeTier) (BadgeSpec, bool) {
	floor := highestTier(unlocked)
	for t := BadgeDiamond; t > floor; t-- {
		spec := badgeRegistry[t]
		if directReferrals >= spec.DirectReferralsRequired {
			return spec, true
		}
	}
	return BadgeSpec{}, false
}

// NextBadge is the badge a user is working towards: a pending qualified badge
// if there is one, otherwise the tier right above the highest unlocked.
func NextBadge(directReferrals int64, unlocked []BadgeTier) (BadgeSpec, bool) {
	if spec, ok := QualifyBadge(directReferrals, unlocked); ok {
		return spec, true
	}
	return (highestTier(unlocked) + 1).Spec()
}

var errBadgeAlreadyGranted = errors.New("badge already granted")

type BadgeService struct {
	DB       *gorm.DB
	Wallets  WalletStore
	Notifier Notifier
}

func NewBadgeService(db *gorm.DB, wallets WalletStore, notifier Notifier) *BadgeService {
	return &BadgeService{DB: db, Wallets: wallets, Notifier: notifier}
}

// BadgeAward describes a badge granted by EvaluateAchievements.
type BadgeAward struct {
	UserID          string    `json:"user_id"`
	Badge           BadgeSpec `json:"badge"`
	DirectReferrals int64     `json:"direct_referrals"`
	TotalXP         int64     `json:"total_xp"`
}

// EvaluateAchievements grants at most one new badge to userID based on their
// direct referral count. Returns nil when nothing was granted.
func (s *BadgeService) EvaluateAchievements(ctx context.Context, userID string) (*BadgeAward, error) {
	unlocked, err := UnlockedBadges(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	count, err := CountDirectReferrals(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}

	badge, ok := QualifyBadge(count, unlocked)
	if !ok {
		return nil, nil
	}

	award := &BadgeAward{UserID: userID, Badge: badge, DirectReferrals: count}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		grant := models.UserBadge{
			ID:            uuid.NewSHA1(uuid.NameSpaceOID, []byte("badge:"+userID+":"+badge.Key)).String(),
			UserID:        userID,
			BadgeKey:      badge.Key,
			XPReward:      badge.XPReward,
			RewardAmount:  badge.RewardAmount,
			ReferralCount: count,
			AwardedAt:     now,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grant)
		if res.Error != nil {
			return fmt.Errorf("insert badge: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errBadgeAlreadyGranted
		}

		ach := models.UserAchievement{
			ID:                  uuid.NewString(),
			UserID:              userID,
			TotalXP:             badge.XPReward,
			LastBadgeUnlockedAt: &now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_xp":               gorm.Expr("user_achievements.total_xp + ?", badge.XPReward),
				"last_badge_unlocked_at": now,
				"updated_at":             now,
			}),
		}).Create(&ach).Error; err != nil {
			return fmt.Errorf("upsert achievement: %w", err)
		}

		if badge.RewardAmount.IsPositive() {
			if err := s.Wallets.Credit(tx, userID, badge.RewardAmount); err != nil {
				return err
			}
		}

		var fresh models.UserAchievement
		if err := tx.Where("user_id = ?", userID).First(&fresh).Error; err != nil {
			return err
		}
		award.TotalXP = fresh.TotalXP
		return nil
	})
	if errors.Is(err, errBadgeAlreadyGranted) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("grant %s to %s: %w", badge.Key, userID, err)
	}

	log.Printf("🎖️ [Badge] %s awarded to %s: %s + %d XP (%d direct referrals)",
		badge.Key, userID, badge.RewardAmount.StringFixed(2), badge.XPReward, count)

	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, NotificationRequest{
			UserID:   userID,
			Type:     models.NotificationTypeAchievement,
			Title:    fmt.Sprintf("🏆 %s Badge Unlocked!", badge.Name),
			Message:  fmt.Sprintf("You've earned %s and %d XP for referring %d users!", formatRand(badge.RewardAmount), badge.XPReward, count),
			Priority: models.PriorityHigh,
			Metadata: map[string]interface{}{
				"badge":  badge.Key,
				"amount": badge.RewardAmount.StringFixed(2),
			},
		}); err != nil {
			log.Printf("⚠️ [Badge] notification for %s failed: %v", userID, err)
		}
	}
	return award, nil
}

// UnlockedBadges returns the tiers already granted to userID, lowest first.
func UnlockedBadges(ctx context.Context, db *gorm.DB, userID string) ([]BadgeTier, error) {
	var keys []string
	if err := db.WithContext(ctx).Model(&models.UserBadge{}).
		Where("user_id = ?", userID).
		Pluck("badge_key", &keys).Error; err != nil {
		return nil, fmt.Errorf("load badges of %s: %w", userID, err)
	}
	tiers := make([]BadgeTier, 0, len(keys))
	for _, k := range keys {
		if t := ParseBadgeKey(k); t != BadgeNone {
			tiers = append(tiers, t)
		}
	}
	slices.Sort(tiers)
	return tiers, nil
}

// CountDirectReferrals counts users whose referrer is userID.
func CountDirectReferrals(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.ReferralUser{}).
		Where("referrer_id = ?", userID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count referrals of %s: %w", userID, err)
	}
	return n, nil
}
