package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"referral-ledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection serializes writers the way row locks would in postgres
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.ReferralUser{},
		&models.ReferralCommission{},
		&models.ReferralStats{},
		&models.UserBadge{},
		&models.UserAchievement{},
		&models.Wallet{},
		&models.Notification{},
		&models.StatementExport{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// addUser inserts a user with an optional referrer and an empty wallet.
func addUser(t *testing.T, db *gorm.DB, id, referrer string) {
	t.Helper()
	u := models.ReferralUser{ID: uuid.NewString(), ExternalUserID: id, Username: id, AccountStatus: "active"}
	if referrer != "" {
		r := referrer
		u.ReferrerID = &r
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	if err := EnsureWallet(db, id); err != nil {
		t.Fatalf("create wallet %s: %v", id, err)
	}
}

func balanceOf(t *testing.T, db *gorm.DB, userID string) decimal.Decimal {
	t.Helper()
	b, err := WalletBalance(db, userID)
	if err != nil {
		t.Fatalf("balance of %s: %v", userID, err)
	}
	return b
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tiers(m map[string]MembershipTier) MembershipLookup {
	return MembershipLookupFunc(func(_ context.Context, userID string) (MembershipTier, error) {
		if t, ok := m[userID]; ok {
			return t, nil
		}
		return DefaultTier, nil
	})
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []NotificationRequest
}

func (n *recordingNotifier) Notify(_ context.Context, req NotificationRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, req)
	return nil
}

func (n *recordingNotifier) byType(typ models.NotificationType) []NotificationRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []NotificationRequest
	for _, r := range n.sent {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

// chainFixture builds A <- B <- C <- D (D was referred by C, and so on).
func chainFixture(t *testing.T, db *gorm.DB) {
	t.Helper()
	addUser(t, db, "A", "")
	addUser(t, db, "B", "A")
	addUser(t, db, "C", "B")
	addUser(t, db, "D", "C")
}
