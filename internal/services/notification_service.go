package services

import (
	"context"
	"fmt"

	"social-service/internal/models"
	"social-service/internal/repositories/postgres"
)

type NotificationService struct {
	repo *postgres.NotificationRepository
}

func NewNotificationService(repo *postgres.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) Create(ctx context.Context, n *models.Notification) error {
	if n.UserID == "" {
		return fmt.Errorf("notification requires a target user id")
	}
	if n.Type == "" {
		n.Type = models.NotificationTypeMessage
	}
	return s.repo.Create(ctx, n)
}

func (s *NotificationService) List(ctx context.Context, userID string, limit int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit, unreadOnly)
}

func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	return s.repo.MarkRead(ctx, notificationID, userID)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}
