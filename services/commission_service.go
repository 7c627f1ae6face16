package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"referral-ledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAlreadyProcessed = errors.New("event already processed")
	ErrInvalidEvent     = errors.New("invalid commission event")
)

// Messages surfaced in CommissionResult.Error.
const (
	MsgAlreadyProcessed = "Event already processed"
	MsgNoReferrer       = "No referrer"
)

// commissionNamespace seeds the deterministic ledger keys.
var commissionNamespace = uuid.MustParse("6f1c2a4e-8d3b-5e7f-9a1b-2c3d4e5f6a7b")

// CommissionKey is the ledger row id for (eventID, level, referrerID). Inserting
// the same key twice is a no-op, which is what makes crediting idempotent.
func CommissionKey(eventID string, level int, referrerID string) string {
	return uuid.NewSHA1(commissionNamespace, []byte(fmt.Sprintf("%s|%d|%s", eventID, level, referrerID))).String()
}

type LevelOutcome string

const (
	OutcomeCredited          LevelOutcome = "credited"
	OutcomeAlreadyProcessed  LevelOutcome = "already_processed"
	OutcomeSkipped           LevelOutcome = "skipped"
	OutcomeTransactionFailed LevelOutcome = "failed"
)

type LevelResult struct {
	Level      int             `json:"level"`
	ReferrerID string          `json:"referrer_id"`
	Tier       MembershipTier  `json:"tier"`
	Rate       decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal `json:"amount"`
	Outcome    LevelOutcome    `json:"outcome"`
	Reason     string          `json:"reason,omitempty"`
}

type CommissionResult struct {
	Success              bool            `json:"success"`
	CommissionsProcessed int             `json:"commissions_processed"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	Error                string          `json:"error,omitempty"`
	Levels               []LevelResult   `json:"levels,omitempty"`
	Badge                *BadgeAward     `json:"badge,omitempty"`
}

// CommissionService credits multi-level referral commissions for signup and
// upgrade events.
type CommissionService struct {
	DB         *gorm.DB
	Membership MembershipLookup
	Wallets    WalletStore
	Notifier   Notifier
	Badges     *BadgeService
}

func NewCommissionService(db *gorm.DB, membership MembershipLookup, wallets WalletStore, notifier Notifier) *CommissionService {
	return &CommissionService{
		DB:         db,
		Membership: membership,
		Wallets:    wallets,
		Notifier:   notifier,
		Badges:     NewBadgeService(db, wallets, notifier),
	}
}

// ProcessCommissions credits every referrer in the chain of referredUserID for
// one event. Safe to call again with the same eventID: already credited levels
// are never credited twice. Per-level failures are folded into the result; only
// an unexpected failure yields Success=false.
func (s *CommissionService) ProcessCommissions(ctx context.Context, referredUserID string, eventType models.EventType, membershipFee decimal.Decimal, eventID string) (result CommissionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [Commission] panic processing event %s: %v", eventID, r)
			result = CommissionResult{Success: false, TotalAmount: decimal.Zero, Error: fmt.Sprint(r)}
		}
	}()

	if err := validateEvent(referredUserID, eventType, membershipFee, eventID); err != nil {
		return failed(err)
	}

	processed, err := s.eventProcessed(ctx, eventID)
	if err != nil {
		return failed(err)
	}
	if processed {
		log.Printf("[Commission] Event %s already processed. Skipping.", eventID)
		return alreadyProcessed()
	}

	chain, err := ResolveChain(ctx, s.DB, referredUserID)
	if err != nil {
		return failed(err)
	}
	if chain.Empty() {
		log.Printf("[Commission] No referrer found for user %s", referredUserID)
		return CommissionResult{Success: true, TotalAmount: decimal.Zero, Error: MsgNoReferrer}
	}

	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	// Once the first level may commit, the event runs to the end: a partial
	// event could never be replayed past the pre-check above.
	ctx = context.WithoutCancel(ctx)

	result = CommissionResult{Success: true, TotalAmount: decimal.Zero}
	attempted, duplicates := 0, 0
	for level := 1; level <= MaxCommissionLevel; level++ {
		referrerID := chain.At(level)
		if referrerID == "" {
			break
		}

		lr := s.creditLevel(ctx, referrerID, referredUserID, eventType, eventID, membershipFee, level)
		result.Levels = append(result.Levels, lr)
		attempted++
		switch lr.Outcome {
		case OutcomeCredited:
			result.CommissionsProcessed++
			result.TotalAmount = result.TotalAmount.Add(lr.Amount)
		case OutcomeAlreadyProcessed:
			duplicates++
		}
	}

	award, err := s.Badges.EvaluateAchievements(ctx, chain.Level1)
	if err != nil {
		log.Printf("❌ [Commission] badge evaluation for %s failed: %v", chain.Level1, err)
	}
	result.Badge = award

	if duplicates > 0 && duplicates == attempted {
		log.Printf("[Commission] Event %s was credited by a concurrent delivery. Skipping.", eventID)
		dup := alreadyProcessed()
		dup.Levels = result.Levels
		dup.Badge = result.Badge
		return dup
	}

	log.Printf("✅ [Commission] Processed %d commissions for event %s, total: %s",
		result.CommissionsProcessed, eventID, result.TotalAmount.StringFixed(2))
	return result
}

func validateEvent(referredUserID string, eventType models.EventType, fee decimal.Decimal, eventID string) error {
	switch {
	case referredUserID == "":
		return fmt.Errorf("%w: referred user id is required", ErrInvalidEvent)
	case eventID == "":
		return fmt.Errorf("%w: event id is required", ErrInvalidEvent)
	case !eventType.Valid():
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, eventType)
	case fee.IsNegative():
		return fmt.Errorf("%w: negative membership fee", ErrInvalidEvent)
	}
	return nil
}

func failed(err error) CommissionResult {
	log.Printf("❌ [Commission] %v", err)
	return CommissionResult{Success: false, TotalAmount: decimal.Zero, Error: err.Error()}
}

func alreadyProcessed() CommissionResult {
	return CommissionResult{Success: true, TotalAmount: decimal.Zero, Error: MsgAlreadyProcessed}
}

// eventProcessed is the cheap pre-check; the unique ledger key is what actually
// prevents double credit under concurrency.
func (s *CommissionService) eventProcessed(ctx context.Context, eventID string) (bool, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.ReferralCommission{}).
		Where("event_id = ?", eventID).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("check event %s: %w", eventID, err)
	}
	return n > 0, nil
}

func (s *CommissionService) tierOf(ctx context.Context, userID string) MembershipTier {
	if s.Membership == nil {
		return DefaultTier
	}
	tier, err := s.Membership.GetTier(ctx, userID)
	if err != nil {
		log.Printf("⚠️ [Commission] tier lookup for %s failed, using %s: %v", userID, DefaultTier, err)
		return DefaultTier
	}
	if tier == "" {
		return DefaultTier
	}
	return tier
}

// creditLevel records one commission, credits the wallet and bumps the
// referrer's stats in a single transaction.
func (s *CommissionService) creditLevel(ctx context.Context, referrerID, referredUserID string, eventType models.EventType, eventID string, fee decimal.Decimal, level int) LevelResult {
	lr := LevelResult{Level: level, ReferrerID: referrerID, Amount: decimal.Zero}

	lr.Tier = s.tierOf(ctx, referrerID)
	lr.Rate = CommissionRate(lr.Tier, level)
	amount := CommissionAmount(fee, lr.Rate)
	if !amount.IsPositive() {
		lr.Outcome = OutcomeSkipped
		lr.Reason = "no commission for tier/level"
		return lr
	}

	now := time.Now()
	row := models.ReferralCommission{
		ID:             CommissionKey(eventID, level, referrerID),
		ReferrerID:     referrerID,
		ReferredUserID: referredUserID,
		EventType:      eventType,
		EventID:        eventID,
		Level:          level,
		Amount:         amount,
		Rate:           lr.Rate,
		ReferrerTier:   string(lr.Tier),
		Status:         models.CommissionStatusPaid,
		CreatedAt:      now,
		PaidAt:         &now,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("insert commission: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}

		if err := s.Wallets.Credit(tx, referrerID, amount); err != nil {
			return err
		}

		stats := models.ReferralStats{
			ID:                 uuid.NewString(),
			UserID:             referrerID,
			TotalCommissions:   amount,
			PendingCommissions: decimal.Zero,
			LastUpdated:        now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_commissions": gorm.Expr("referral_stats.total_commissions + ?", amount),
				"last_updated":      now,
			}),
		}).Create(&stats).Error; err != nil {
			return fmt.Errorf("upsert referral stats: %w", err)
		}
		return nil
	})

	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		lr.Outcome = OutcomeAlreadyProcessed
		lr.Reason = MsgAlreadyProcessed
		return lr
	case errors.Is(err, ErrWalletNotFound):
		log.Printf("⚠️ [Commission] no wallet for %s, level %d of event %s not credited", referrerID, level, eventID)
		lr.Outcome = OutcomeSkipped
		lr.Reason = ErrWalletNotFound.Error()
		return lr
	case err != nil:
		log.Printf("❌ [Commission] level %d for %s (event %s) failed: %v", level, referrerID, eventID, err)
		lr.Outcome = OutcomeTransactionFailed
		lr.Reason = err.Error()
		return lr
	}

	lr.Outcome = OutcomeCredited
	lr.Amount = amount
	log.Printf("💸 [Commission] Credited %s to %s (Level %d, %s tier)", amount.StringFixed(2), referrerID, level, lr.Tier)

	s.notifyCommission(ctx, referrerID, eventType, level, amount)
	return lr
}

func (s *CommissionService) notifyCommission(ctx context.Context, referrerID string, eventType models.EventType, level int, amount decimal.Decimal) {
	if s.Notifier == nil {
		return
	}
	what := "membership upgrade"
	if eventType == models.EventTypeSignup {
		what = "new signup"
	}
	err := s.Notifier.Notify(ctx, NotificationRequest{
		UserID:   referrerID,
		Type:     models.NotificationTypeCommission,
		Title:    fmt.Sprintf("Level %d Commission Earned!", level),
		Message:  fmt.Sprintf("You earned %s from a %s.", formatRand(amount), what),
		Priority: models.PriorityNormal,
		Metadata: map[string]interface{}{
			"amount": amount.StringFixed(2),
			"level":  level,
		},
	})
	if err != nil {
		log.Printf("⚠️ [Commission] notification for %s failed: %v", referrerID, err)
	}
}
