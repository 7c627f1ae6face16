package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"referral-ledger/models"
)

type memUploader struct {
	calls int
	key   string
	body  []byte
}

func (u *memUploader) Upload(_ context.Context, key, _ string, body []byte) (string, error) {
	u.calls++
	u.key = key
	u.body = body
	return "https://cdn.example.test/" + key, nil
}

func ledgerLine(t *testing.T, svc *StatementService, eventID string, level int, amount string, at time.Time) {
	t.Helper()
	paid := at
	row := models.ReferralCommission{
		ID:             CommissionKey(eventID, level, "R"),
		ReferrerID:     "R",
		ReferredUserID: "kid",
		EventType:      models.EventTypeSignup,
		EventID:        eventID,
		Level:          level,
		Amount:         dec(amount),
		Rate:           dec("10"),
		ReferrerTier:   string(TierBasic),
		Status:         models.CommissionStatusPaid,
		CreatedAt:      at,
		PaidAt:         &paid,
	}
	if err := svc.DB.Create(&row).Error; err != nil {
		t.Fatalf("insert ledger line: %v", err)
	}
}

func TestStatementKey(t *testing.T) {
	day := time.Date(2026, 3, 7, 15, 0, 0, 0, time.UTC)
	want := "statements/2026/03/referral-commissions-2026-03-07.csv"
	if got := StatementKey(day); got != want {
		t.Fatalf("key = %q want %q", got, want)
	}
}

func TestExportDayUploadsOnce(t *testing.T) {
	up := &memUploader{}
	svc := NewStatementService(newTestDB(t), up)
	ctx := context.Background()

	day := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	ledgerLine(t, svc, "e1", 1, "100", day.Add(2*time.Hour))
	ledgerLine(t, svc, "e1", 2, "20.50", day.Add(3*time.Hour))
	ledgerLine(t, svc, "e2", 1, "5", day.Add(26*time.Hour)) // next day

	export, err := svc.ExportDay(ctx, day.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if export == nil || export.Rows != 2 || export.Total != "120.50" || export.Day != "2026-03-07" {
		t.Fatalf("export = %+v", export)
	}
	if up.calls != 1 || up.key != StatementKey(day) {
		t.Fatalf("uploader calls=%d key=%s", up.calls, up.key)
	}

	records, err := csv.NewReader(bytes.NewReader(up.body)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 || records[0][0] != "id" || records[2][8] != "20.50" {
		t.Fatalf("csv = %v", records)
	}

	again, err := svc.ExportDay(ctx, day)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if up.calls != 1 || again.ObjectKey != export.ObjectKey {
		t.Fatalf("day exported twice")
	}
}

func TestExportDayWithoutLines(t *testing.T) {
	up := &memUploader{}
	svc := NewStatementService(newTestDB(t), up)

	export, err := svc.ExportDay(context.Background(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || export != nil {
		t.Fatalf("empty day = %+v, %v", export, err)
	}
	if up.calls != 0 {
		t.Fatalf("nothing should be uploaded")
	}
}
