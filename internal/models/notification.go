package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType distinguishes what the notification is about.
type NotificationType string

const (
	NotificationTypeMessage NotificationType = "message"
	NotificationTypeFriend  NotificationType = "friend"
	NotificationTypeGroup   NotificationType = "group"
	NotificationTypePost    NotificationType = "post"
)

// Notification is the persisted inbox entry. Delivered over the target
// user's personal channel only, never a shared room.
type Notification struct {
	ID        string           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string           `gorm:"type:uuid;index;not null" json:"userId"`
	Text      string           `gorm:"type:text;not null" json:"text"`
	Type      NotificationType `gorm:"size:16;not null" json:"type"`
	RelatedID string           `gorm:"type:uuid" json:"relatedId,omitempty"`
	Sender    *UserSummary     `gorm:"serializer:json" json:"sender,omitempty"`
	Read      bool             `gorm:"default:false" json:"read"`
	CreatedAt time.Time        `gorm:"index" json:"createdAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
