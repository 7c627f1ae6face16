// workers/user_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"referral-ledger/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredUserFromProfile matches the user JSON of the sync service.
type MirroredUserFromProfile struct {
	ID            string    `json:"id"`
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	AccountStatus string    `json:"account_status"`
	ReferredByID  *string   `json:"referred_by_id,omitempty"` // external id of the referrer
	ReferralCode  string    `json:"referral_code"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type GetUserChangesResponse struct {
	Users []MirroredUserFromProfile `json:"users"`
}

// ReferralUserSyncWorker mirrors users and their referrer link into referral_users.
type ReferralUserSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
}

func NewReferralUserSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *ReferralUserSyncWorker {
	return &ReferralUserSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *ReferralUserSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Referral User Sync Worker (sync-service → referral_users)…")
	go w.run(ctx)
}

func (w *ReferralUserSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial user sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncBatch(ctx, w.lastSyncTime()); err != nil {
				log.Printf("❌ User sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Referral User Sync Worker stopped")
			return
		}
	}
}

// lastSyncTime is the newest updated_at in referral_users, or the epoch.
func (w *ReferralUserSyncWorker) lastSyncTime() time.Time {
	var latest models.ReferralUser
	if err := w.db.Order("updated_at DESC").First(&latest).Error; err != nil {
		return time.Unix(0, 0)
	}
	return latest.UpdatedAt
}

// SyncBatch pulls user changes since the given time and upserts them.
// Returns the number of users written.
func (w *ReferralUserSyncWorker) SyncBatch(ctx context.Context, since time.Time) (int, error) {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return 0, fmt.Errorf("invalid base sync service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("sync service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response GetUserChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	if len(response.Users) == 0 {
		return 0, nil
	}

	var upserted, failed int
	for _, remote := range response.Users {
		if remote.ExternalID == "" {
			failed++
			continue
		}
		local := models.ReferralUser{
			ID:             uuid.NewString(),
			ExternalUserID: remote.ExternalID,
			Username:       remote.Username,
			ReferrerID:     referrerOf(remote),
			ReferralCode:   remote.ReferralCode,
			AccountStatus:  strings.ToLower(remote.AccountStatus),
			CreatedAt:      remote.CreatedAt,
			UpdatedAt:      remote.UpdatedAt,
		}

		// A referrer link, once set, is never rewritten by a later sync.
		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"username":       gorm.Expr("excluded.username"),
				"referral_code":  gorm.Expr("excluded.referral_code"),
				"account_status": gorm.Expr("excluded.account_status"),
				"updated_at":     gorm.Expr("excluded.updated_at"),
				"referrer_id":    gorm.Expr("COALESCE(referral_users.referrer_id, excluded.referrer_id)"),
			}),
		}).Create(&local).Error; err != nil {
			failed++
			log.Printf("[SYNC] ⚠️ Failed to upsert referral_user (external_id=%q): %v", remote.ExternalID, err)
			continue
		}
		upserted++
	}

	log.Printf("[SYNC] ✅ Synced %d users (%d upserted, %d errors)", len(response.Users), upserted, failed)
	return upserted, nil
}

// referrerOf drops empty and self-referencing links.
func referrerOf(u MirroredUserFromProfile) *string {
	if u.ReferredByID == nil {
		return nil
	}
	ref := strings.TrimSpace(*u.ReferredByID)
	if ref == "" || ref == u.ExternalID {
		return nil
	}
	return &ref
}
