package models

import "time"

const (
	NotificationTypeRegistration       = "registration"
	NotificationTypeNeighborhoodChange = "neighborhood-change"
	NotificationTypeEmergency          = "emergency"
	NotificationTypeReset              = "reset"
)

// Notification is one entry of the notification ledger (PostgreSQL).
// Rows are immutable apart from IsRead.
type Notification struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	EmitterID   string    `json:"emitter" gorm:"size:24;not null;index"`
	ReceiverID  string    `json:"receiver" gorm:"size:24;not null;index:idx_notifications_receiver_created"`
	Title       string    `json:"title" gorm:"not null"`
	Message     string    `json:"message" gorm:"not null"`
	Type        string    `json:"type" gorm:"size:30;not null;index"`
	AlertID     string    `json:"alertId,omitempty" gorm:"size:36;index"`
	LocationURL string    `json:"locationUrl,omitempty"`
	IsRead      bool      `json:"isRead" gorm:"not null"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index:idx_notifications_receiver_created"`
}
