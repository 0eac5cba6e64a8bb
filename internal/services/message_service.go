package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"social-service/internal/models"
	"social-service/internal/repositories/postgres"
)

// MessageEvent is the record shape published to Kafka after a message is
// persisted. Consumed by cmd/worker to build the durable notification inbox.
type MessageEvent struct {
	Event   string          `json:"event"`
	Message *models.Message `json:"message"`
}

// MessageService persists direct messages and publishes a copy of each
// persisted event to Kafka. It implements gateway.MessageStore, so
// socket-initiated sends run through the same path as REST sends.
type MessageService struct {
	repo     *postgres.MessageRepository
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func NewMessageService(repo *postgres.MessageRepository, producer sarama.SyncProducer, topic string, logger *slog.Logger) *MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{
		repo:     repo,
		producer: producer,
		topic:    topic,
		logger:   logger.With("component", "message_service"),
	}
}

// SaveMessage writes the record, then publishes the event stream copy.
// Publishing is best-effort: the database row is the durable truth and a
// broker outage must not fail the send.
func (s *MessageService) SaveMessage(ctx context.Context, m *models.Message) error {
	if m.SenderKey() == "" || m.ReceiverKey() == "" {
		return fmt.Errorf("message requires sender and receiver ids")
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return fmt.Errorf("persist message: %w", err)
	}

	s.publish(MessageEvent{Event: "message_sent", Message: m})
	return nil
}

func (s *MessageService) MarkRead(ctx context.Context, messageID, readerID string) error {
	return s.repo.MarkRead(ctx, messageID, readerID)
}

func (s *MessageService) GetByID(ctx context.Context, id string) (*models.Message, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *MessageService) History(ctx context.Context, viewerID, partnerID string, limit int, before *int64) ([]models.Message, error) {
	return s.repo.ListConversation(ctx, viewerID, partnerID, limit, before)
}

func (s *MessageService) Delete(ctx context.Context, messageID, userID string) error {
	return s.repo.SoftDelete(ctx, messageID, userID)
}

func (s *MessageService) publish(ev MessageEvent) {
	if s.producer == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to encode message event", "error", err)
		return
	}
	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(ev.Message.ReceiverKey()),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		s.logger.Warn("failed to publish message event", "messageID", ev.Message.ID, "error", err)
	}
}
