package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"referral-ledger/models"
	"referral-ledger/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "routes.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
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
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, u := range [][2]string{{"A", ""}, {"B", "A"}} {
		user := models.ReferralUser{ID: uuid.NewString(), ExternalUserID: u[0], Username: u[0]}
		if u[1] != "" {
			ref := u[1]
			user.ReferrerID = &ref
		}
		if err := db.Create(&user).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
		if err := services.EnsureWallet(db, u[0]); err != nil {
			t.Fatalf("seed wallet: %v", err)
		}
	}

	notifications := services.NewNotificationService(db)
	lookup := services.MembershipLookupFunc(func(_ context.Context, _ string) (services.MembershipTier, error) {
		return services.TierBasic, nil
	})
	commissions := services.NewCommissionService(db, lookup, services.DBWalletStore{}, notifications)

	app := fiber.New()
	SetupReferralRoutes(app, commissions, services.NewStatsService(db), notifications)
	return app, db
}

func postEvent(t *testing.T, app *fiber.App, roles, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/s/admin/commissions/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "ops")
	req.Header.Set("X-User-Roles", roles)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]interface{}{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestCommissionEventRoute(t *testing.T) {
	app, _ := newTestApp(t)
	body := `{"referred_user_id":"B","event_type":"SIGNUP","membership_fee":"1000","event_id":"evt-1"}`

	if status, _ := postEvent(t, app, "gamer", body); status != fiber.StatusForbidden {
		t.Fatalf("non-admin status %d", status)
	}

	status, out := postEvent(t, app, "admin", body)
	if status != fiber.StatusOK {
		t.Fatalf("status %d: %v", status, out)
	}
	if out["success"] != true || out["commissions_processed"] != float64(1) || out["total_amount"] != "100" {
		t.Fatalf("result = %v", out)
	}

	status, out = postEvent(t, app, "admin", body)
	if status != fiber.StatusOK || out["error"] != services.MsgAlreadyProcessed {
		t.Fatalf("replay = %d %v", status, out)
	}

	status, _ = postEvent(t, app, "admin", `{"referred_user_id":"B","event_type":"REFUND","membership_fee":10,"event_id":"evt-2"}`)
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("invalid event status %d", status)
	}

	if status, _ = postEvent(t, app, "admin", `{not json`); status != fiber.StatusBadRequest {
		t.Fatalf("bad json status %d", status)
	}
}

func TestUserReferralRoutes(t *testing.T) {
	app, _ := newTestApp(t)
	postEvent(t, app, "admin", `{"referred_user_id":"B","event_type":"UPGRADE","membership_fee":500,"event_id":"up-1"}`)

	get := func(path string) (int, []byte) {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("X-User-ID", "A")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		raw, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, raw
	}

	status, raw := get("/user/referrals/stats")
	if status != fiber.StatusOK {
		t.Fatalf("stats status %d", status)
	}
	var view services.ReferralStatsView
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if view.DirectReferrals != 1 || view.TotalCommissions.String() != "50" {
		t.Fatalf("stats = %+v", view)
	}

	status, raw = get("/user/referrals/commissions?page=1&size=10")
	if status != fiber.StatusOK || !strings.Contains(string(raw), `"total_items":1`) {
		t.Fatalf("commissions = %d %s", status, raw)
	}

	status, raw = get("/user/notifications")
	if status != fiber.StatusOK || !strings.Contains(string(raw), "Level 1 Commission Earned!") {
		t.Fatalf("notifications = %d %s", status, raw)
	}

	req := httptest.NewRequest("GET", "/user/referrals/stats", nil)
	if resp, _ := app.Test(req); resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("missing user id: %d", resp.StatusCode)
	}
}
