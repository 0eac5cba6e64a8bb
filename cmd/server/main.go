package main

// @title           Social Service Realtime API
// @version         1.0
// @description     Direct messaging, presence and notification delivery for the social app
// @host            localhost:8080
// @BasePath        /api/v1
// @schemes         http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"

	_ "social-service/docs"
	"social-service/internal/adapters/kafka"
	"social-service/internal/adapters/storage"
	"social-service/internal/api/routes"
	"social-service/internal/config"
	"social-service/internal/database"
	"social-service/internal/gateway"
	"social-service/internal/repositories/postgres"
	"social-service/internal/services"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("starting social service")

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	redisClient, err := database.NewRedisConnection(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	var producer sarama.SyncProducer
	if cfg.Kafka.Enabled {
		producer, err = kafka.InitProducer(cfg.Kafka.Brokers)
		if err != nil {
			// The gateway works without the event stream; the worker just
			// sees no traffic until the broker is back.
			logger.Warn("kafka unavailable, message events disabled", "error", err)
		} else {
			defer producer.Close()
		}
	}

	var attachments *storage.MinIOClient
	if cfg.Storage.Enabled {
		attachments, err = storage.NewMinIOClient(
			cfg.Storage.Endpoint,
			cfg.Storage.AccessKey,
			cfg.Storage.SecretKey,
			cfg.Storage.Bucket,
			cfg.Storage.UseSSL,
		)
		if err != nil {
			logger.Warn("object storage unavailable, attachment uploads disabled", "error", err)
		}
	}

	userRepo := postgres.NewUserRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	messageService := services.NewMessageService(messageRepo, producer, cfg.Kafka.Topic, logger)
	notificationService := services.NewNotificationService(notificationRepo)
	presenceStore := services.NewPresenceStore(redisClient)

	verifier := gateway.NewJWTVerifier(cfg.JWT.Secret)

	gwCfg := gateway.DefaultConfig()
	gwCfg.PresenceScope = cfg.Gateway.PresenceScope
	if cfg.Gateway.ProbeInterval > 0 {
		gwCfg.Sweeper.ProbeInterval = cfg.Gateway.ProbeInterval
	}
	if cfg.Gateway.EvictInterval > 0 {
		gwCfg.Sweeper.EvictInterval = cfg.Gateway.EvictInterval
	}
	if cfg.Gateway.StaleThreshold > 0 {
		gwCfg.Sweeper.StaleThreshold = cfg.Gateway.StaleThreshold
	}

	gw := gateway.New(gwCfg, verifier, messageService, presenceStore, logger)
	gw.StartSweeper()

	router := routes.NewRouter(gw, verifier, messageService, notificationService, presenceStore, attachments, userRepo, cfg.JWT.Secret, logger)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gw.StopSweeper()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}

	logger.Info("server stopped")
}
