package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"social-service/internal/models"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListConversation returns the newest messages between two users, walking
// backwards from the optional cursor. Messages soft-deleted for viewerID are
// filtered out after the fetch; the deleted_for column is an opaque JSON
// blob to the database.
func (r *MessageRepository) ListConversation(ctx context.Context, viewerID, partnerID string, limit int, before *int64) ([]models.Message, error) {
	q := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			viewerID, partnerID, partnerID, viewerID).
		Order("created_at DESC").
		Limit(limit)
	if before != nil {
		q = q.Where("created_at < ?", time.Unix(*before, 0))
	}

	var rows []models.Message
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	visible := make([]models.Message, 0, len(rows))
	for _, m := range rows {
		if m.VisibleTo(viewerID) {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

// MarkRead sets the read flag. Only the receiver may mark a message read.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID, readerID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND receiver_id = ? AND read = false", messageID, readerID).
		Updates(map[string]interface{}{"read": true, "read_at": &now}).Error
}

// SoftDelete hides the message for one participant without removing it for
// the other.
func (r *MessageRepository) SoftDelete(ctx context.Context, messageID, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.Message
		if err := tx.First(&m, "id = ?", messageID).Error; err != nil {
			return err
		}
		if !m.VisibleTo(userID) {
			return nil
		}
		m.DeletedFor = append(m.DeletedFor, userID)
		return tx.Model(&m).Update("deleted_for", m.DeletedFor).Error
	})
}
