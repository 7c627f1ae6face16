package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationTypeCommission  NotificationType = "commission"
	NotificationTypeAchievement NotificationType = "achievement"
)

type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is an outbox row; delivery (push/email) belongs to another service,
// clients pick these up over the SSE stream.
type Notification struct {
	ID        string               `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string               `gorm:"index;not null" json:"user_id"`
	Type      NotificationType     `gorm:"type:varchar(16);not null" json:"type"`
	Title     string               `gorm:"not null" json:"title"`
	Message   string               `gorm:"type:text" json:"message"`
	Priority  NotificationPriority `gorm:"type:varchar(8);not null;default:'normal'" json:"priority"`
	Metadata  datatypes.JSONMap    `json:"metadata,omitempty"`
	Viewed    bool                 `gorm:"default:false;index" json:"viewed"`
	CreatedAt time.Time            `gorm:"index" json:"created_at"`
}

// StatementExport records one uploaded daily commission statement.
type StatementExport struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Day       string    `gorm:"uniqueIndex;not null" json:"day"` // YYYY-MM-DD, UTC
	ObjectKey string    `gorm:"not null" json:"object_key"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	Total     string    `json:"total"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
