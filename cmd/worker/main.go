package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"

	"social-service/internal/config"
	"social-service/internal/database"
	"social-service/internal/models"
	"social-service/internal/repositories/postgres"
	"social-service/internal/services"
)

// The worker consumes persisted message events and materialises them into
// the notification inbox. It runs as a separate process so a gateway restart
// never loses inbox writes.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "notification_worker")
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	userRepo := postgres.NewUserRepository(db)
	notificationService := services.NewNotificationService(postgres.NewNotificationRepository(db))

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("worker started", "topic", cfg.Kafka.Topic, "groupID", cfg.Kafka.GroupID)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to read message", "error", err)
			continue
		}

		var ev services.MessageEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Warn("skipping malformed event", "offset", msg.Offset, "error", err)
			continue
		}
		if ev.Event != "message_sent" || ev.Message == nil {
			continue
		}

		if err := handleMessageSent(ctx, userRepo, notificationService, ev.Message); err != nil {
			logger.Error("failed to write notification", "messageID", ev.Message.ID, "error", err)
		}
	}
}

func handleMessageSent(ctx context.Context, users *postgres.UserRepository, notifications *services.NotificationService, m *models.Message) error {
	n := &models.Notification{
		UserID:    m.ReceiverKey(),
		Type:      models.NotificationTypeMessage,
		RelatedID: m.ID,
		Text:      "You have a new message",
	}
	if sender, err := users.GetByID(ctx, m.SenderKey()); err == nil && sender != nil {
		n.Sender = sender.Summary()
		n.Text = fmt.Sprintf("New message from %s", sender.Username)
	}
	return notifications.Create(ctx, n)
}
