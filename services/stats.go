package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"referral-ledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferralStatsView is the read model behind the referral dashboard.
type ReferralStatsView struct {
	DirectReferrals    int64           `json:"direct_referrals"`
	Level2Referrals    int64           `json:"level2_referrals"`
	Level3Referrals    int64           `json:"level3_referrals"`
	TotalCommissions   decimal.Decimal `json:"total_commissions"`
	PendingCommissions decimal.Decimal `json:"pending_commissions"`
	BadgesUnlocked     []string        `json:"badges_unlocked"`
	TotalXP            int64           `json:"total_xp"`
	NextBadge          *string         `json:"next_badge"`
	NextBadgeProgress  float64         `json:"next_badge_progress"`
}

type StatsService struct {
	DB *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db}
}

// GetUserReferralStats aggregates referral tree sizes, commission totals and
// badge progress for userID. Cost grows with the size of the first two tree levels.
func (s *StatsService) GetUserReferralStats(ctx context.Context, userID string) (*ReferralStatsView, error) {
	db := s.DB.WithContext(ctx)
	view := &ReferralStatsView{
		TotalCommissions:   decimal.Zero,
		PendingCommissions: decimal.Zero,
		BadgesUnlocked:     []string{},
	}

	level1, err := referredBy(db, []string{userID})
	if err != nil {
		return nil, err
	}
	level2, err := referredBy(db, level1)
	if err != nil {
		return nil, err
	}
	view.DirectReferrals = int64(len(level1))
	view.Level2Referrals = int64(len(level2))
	if len(level2) > 0 {
		if err := db.Model(&models.ReferralUser{}).
			Where("referrer_id IN ?", level2).
			Count(&view.Level3Referrals).Error; err != nil {
			return nil, fmt.Errorf("count level 3 referrals: %w", err)
		}
	}

	var stats models.ReferralStats
	err = db.Where("user_id = ?", userID).First(&stats).Error
	switch {
	case err == nil:
		view.TotalCommissions = stats.TotalCommissions
		view.PendingCommissions = stats.PendingCommissions
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load referral stats: %w", err)
	}

	var ach models.UserAchievement
	err = db.Where("user_id = ?", userID).First(&ach).Error
	switch {
	case err == nil:
		view.TotalXP = ach.TotalXP
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load achievements: %w", err)
	}

	unlocked, err := UnlockedBadges(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	for _, t := range unlocked {
		view.BadgesUnlocked = append(view.BadgesUnlocked, t.Key())
	}

	view.NextBadgeProgress = 100
	if next, ok := NextBadge(view.DirectReferrals, unlocked); ok {
		name := next.Name
		view.NextBadge = &name
		view.NextBadgeProgress = badgeProgress(view.DirectReferrals, next.DirectReferralsRequired)
	}
	return view, nil
}

func badgeProgress(have, required int64) float64 {
	if required <= 0 {
		return 100
	}
	p := float64(have) / float64(required) * 100
	if p > 100 {
		return 100
	}
	return p
}

// referredBy returns the users directly referred by any of referrerIDs.
func referredBy(db *gorm.DB, referrerIDs []string) ([]string, error) {
	if len(referrerIDs) == 0 {
		return nil, nil
	}
	var ids []string
	if err := db.Model(&models.ReferralUser{}).
		Where("referrer_id IN ?", referrerIDs).
		Pluck("external_user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("load referrals: %w", err)
	}
	return ids, nil
}

// ListCommissions returns a page of userID's ledger, newest first.
func (s *StatsService) ListCommissions(ctx context.Context, userID string, page, size int) (map[string]interface{}, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	db := s.DB.WithContext(ctx)
	var total int64
	if err := db.Model(&models.ReferralCommission{}).Where("referrer_id = ?", userID).Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []models.ReferralCommission
	if err := db.Where("referrer_id = ?", userID).
		Order("created_at DESC").
		Limit(size).Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"commissions": rows,
		"page":        page,
		"size":        size,
		"total_items": total,
		"total_pages": int((total + int64(size) - 1) / int64(size)),
	}, nil
}

// RefreshReferralCounters recomputes total/active direct referral counters on
// every existing stats row. Commission totals are left to the ledger.
func (s *StatsService) RefreshReferralCounters(ctx context.Context) (int, error) {
	type counter struct {
		ReferrerID string
		Total      int64
		Active     int64
	}
	var counts []counter
	if err := s.DB.WithContext(ctx).Model(&models.ReferralUser{}).
		Select("referrer_id, COUNT(*) AS total, SUM(CASE WHEN account_status = 'active' OR account_status = '' THEN 1 ELSE 0 END) AS active").
		Where("referrer_id IS NOT NULL").
		Group("referrer_id").
		Scan(&counts).Error; err != nil {
		return 0, fmt.Errorf("aggregate referral counters: %w", err)
	}

	now := time.Now()
	for _, c := range counts {
		row := models.ReferralStats{
			ID:                 uuid.NewString(),
			UserID:             c.ReferrerID,
			TotalCommissions:   decimal.Zero,
			PendingCommissions: decimal.Zero,
			TotalReferrals:     c.Total,
			ActiveReferrals:    c.Active,
			LastUpdated:        now,
		}
		if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_referrals":  c.Total,
				"active_referrals": c.Active,
				"last_updated":     now,
			}),
		}).Create(&row).Error; err != nil {
			return 0, fmt.Errorf("refresh counters for %s: %w", c.ReferrerID, err)
		}
	}
	return len(counts), nil
}
