package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"referral-ledger/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ObjectUploader stores a blob and returns where it can be fetched from.
type ObjectUploader interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// StatementService exports each UTC day's ledger lines as a CSV object.
type StatementService struct {
	DB       *gorm.DB
	Uploader ObjectUploader
}

func NewStatementService(db *gorm.DB, uploader ObjectUploader) *StatementService {
	return &StatementService{DB: db, Uploader: uploader}
}

var statementHeader = []string{
	"id", "event_id", "event_type", "level", "referrer_id", "referred_user_id",
	"referrer_tier", "rate", "amount", "status", "paid_at",
}

// StatementKey is the object key of the statement for day.
func StatementKey(day time.Time) string {
	d := day.UTC().Format("2006-01-02")
	return fmt.Sprintf("statements/%s/%s.csv", day.UTC().Format("2006/01"), slug.Make("referral commissions "+d))
}

// ExportDay uploads the statement for the UTC day containing day. A day that was
// already exported returns the existing record; a day with no ledger lines
// returns nil.
func (s *StatementService) ExportDay(ctx context.Context, day time.Time) (*models.StatementExport, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	dayKey := start.Format("2006-01-02")

	var existing models.StatementExport
	err := s.DB.WithContext(ctx).Where("day = ?", dayKey).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var rows []models.ReferralCommission
	if err := s.DB.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start, end).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load ledger for %s: %w", dayKey, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	body, total, err := renderStatement(rows)
	if err != nil {
		return nil, err
	}

	key := StatementKey(start)
	url, err := s.Uploader.Upload(ctx, key, "text/csv", body)
	if err != nil {
		return nil, err
	}

	export := models.StatementExport{
		ID:        uuid.NewString(),
		Day:       dayKey,
		ObjectKey: key,
		URL:       url,
		Rows:      len(rows),
		Total:     total.StringFixed(2),
	}
	if err := s.DB.WithContext(ctx).Create(&export).Error; err != nil {
		return nil, fmt.Errorf("record statement %s: %w", dayKey, err)
	}
	log.Printf("📄 [Statement] %s: %d lines, total %s → %s", dayKey, len(rows), export.Total, key)
	return &export, nil
}

func renderStatement(rows []models.ReferralCommission) ([]byte, decimal.Decimal, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(statementHeader); err != nil {
		return nil, decimal.Zero, err
	}

	total := decimal.Zero
	for _, r := range rows {
		paidAt := ""
		if r.PaidAt != nil {
			paidAt = r.PaidAt.UTC().Format(time.RFC3339)
		}
		if err := w.Write([]string{
			r.ID, r.EventID, string(r.EventType), strconv.Itoa(r.Level), r.ReferrerID, r.ReferredUserID,
			r.ReferrerTier, r.Rate.StringFixed(2), r.Amount.StringFixed(2), string(r.Status), paidAt,
		}); err != nil {
			return nil, decimal.Zero, err
		}
		total = total.Add(r.Amount)
	}
	w.Flush()
	return buf.Bytes(), total, w.Error()
}
