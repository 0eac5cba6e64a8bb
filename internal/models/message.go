package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType mirrors the content kinds the client can send.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// Message is the persisted direct message. The REST layer owns writes; the
// gateway only reads and republishes persisted records.
type Message struct {
	ID         string      `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID   string      `gorm:"type:uuid;index:idx_messages_pair;not null" json:"senderId"`
	ReceiverID string      `gorm:"type:uuid;index:idx_messages_pair;not null" json:"receiverId"`
	Content    string      `gorm:"type:text;not null" json:"content"`
	Type       MessageType `gorm:"size:16;default:'text'" json:"type"`
	Read       bool        `gorm:"default:false" json:"read"`
	ReadAt     *time.Time  `json:"readAt,omitempty"`
	DeletedFor []string    `gorm:"serializer:json" json:"-"`
	CreatedAt  time.Time   `gorm:"index" json:"createdAt"`

	// TempID is the client-supplied correlation id for optimistic UI
	// reconciliation. Never persisted, only echoed back on the wire.
	TempID string `gorm:"-" json:"tempId,omitempty"`

	// Populated variants of the participant ids.
	Sender   *UserSummary `gorm:"-" json:"sender,omitempty"`
	Receiver *UserSummary `gorm:"-" json:"receiver,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// SenderKey returns the sender id, falling back to the populated summary.
func (m *Message) SenderKey() string {
	if m.SenderID != "" {
		return m.SenderID
	}
	if m.Sender != nil {
		return m.Sender.ID
	}
	return ""
}

// ReceiverKey returns the receiver id, falling back to the populated summary.
func (m *Message) ReceiverKey() string {
	if m.ReceiverID != "" {
		return m.ReceiverID
	}
	if m.Receiver != nil {
		return m.Receiver.ID
	}
	return ""
}

// VisibleTo reports whether the message has been soft-deleted for the user.
func (m *Message) VisibleTo(userID string) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return false
		}
	}
	return true
}
