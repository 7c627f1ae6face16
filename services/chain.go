package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"referral-ledger/models"

	"gorm.io/gorm"
)

// ReferralChain holds up to three ancestors of a referred user.
// Empty string means the hop is absent.
type ReferralChain struct {
	Level1 string
	Level2 string
	Level3 string
}

// At returns the referrer at the given level (1..3).
func (c ReferralChain) At(level int) string {
	switch level {
	case 1:
		return c.Level1
	case 2:
		return c.Level2
	case 3:
		return c.Level3
	}
	return ""
}

func (c ReferralChain) Empty() bool { return c.Level1 == "" }

// ResolveChain walks referrer-of-referrer links, at most MaxCommissionLevel hops.
// The walk stops at the first missing hop. A hop that points back into the
// chain (self-referral or a short cycle) is treated as missing.
func ResolveChain(ctx context.Context, db *gorm.DB, referredUserID string) (ReferralChain, error) {
	var chain ReferralChain
	seen := map[string]bool{referredUserID: true}
	current := referredUserID

	for level := 1; level <= MaxCommissionLevel; level++ {
		next, err := referrerOf(ctx, db, current)
		if err != nil {
			return chain, err
		}
		if next == "" {
			break
		}
		if seen[next] {
			log.Printf("⚠️ [Chain] cycle in referral ancestry of %s at level %d (%s), stopping", referredUserID, level, next)
			break
		}
		seen[next] = true

		switch level {
		case 1:
			chain.Level1 = next
		case 2:
			chain.Level2 = next
		case 3:
			chain.Level3 = next
		}
		current = next
	}
	return chain, nil
}

func referrerOf(ctx context.Context, db *gorm.DB, userID string) (string, error) {
	var u models.ReferralUser
	err := db.WithContext(ctx).Select("external_user_id", "referrer_id").
		Where("external_user_id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load referrer of %s: %w", userID, err)
	}
	if u.ReferrerID == nil {
		return "", nil
	}
	return *u.ReferrerID, nil
}
