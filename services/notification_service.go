// services/notification_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"referral-ledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notifier requests a notification for a user. Delivery is someone else's job;
// callers treat failures as best-effort.
type Notifier interface {
	Notify(ctx context.Context, n NotificationRequest) error
}

type NotificationRequest struct {
	UserID   string
	Type     models.NotificationType
	Title    string
	Message  string
	Priority models.NotificationPriority
	Metadata map[string]interface{}
}

// NotificationService writes notification outbox rows and streams them to clients.
type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

func (s *NotificationService) Notify(ctx context.Context, n NotificationRequest) error {
	if n.Priority == "" {
		n.Priority = models.PriorityNormal
	}
	row := models.Notification{
		ID:        uuid.NewString(),
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Priority:  n.Priority,
		Metadata:  datatypes.JSONMap(n.Metadata),
		CreatedAt: time.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create notification for %s: %w", n.UserID, err)
	}
	return nil
}

// ListUnviewed returns notifications not yet seen by the user, newest first.
func (s *NotificationService) ListUnviewed(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	var out []models.Notification
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND viewed = ?", userID, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkViewed flags the given notifications of userID as viewed.
func (s *NotificationService) MarkViewed(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("viewed", true)
	return res.RowsAffected, res.Error
}

var (
	zar          = currency.MustParseISO("ZAR")
	moneyPrinter = message.NewPrinter(language.English)
)

// formatRand renders an amount the way notifications show money, e.g. "R 100.00".
func formatRand(amount decimal.Decimal) string {
	return moneyPrinter.Sprint(currency.NarrowSymbol(zar.Amount(amount.InexactFloat64())))
}
