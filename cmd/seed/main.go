package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"social-service/internal/config"
	"social-service/internal/database"
	"social-service/internal/models"
	"social-service/internal/repositories/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting database seeding...")

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	userRepo := postgres.NewUserRepository(db)
	ctx := context.Background()

	testUsers := []struct {
		username string
		email    string
		password string
	}{
		{"alice", "alice@social.local", "123456"},
		{"bob", "bob@social.local", "123456"},
		{"charlie", "charlie@social.local", "123456"},
		{"dana", "dana@social.local", "123456"},
	}

	for _, userData := range testUsers {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(userData.password), bcrypt.DefaultCost)
		user := &models.User{
			Username: userData.username,
			Email:    userData.email,
			Password: string(hashedPassword),
		}

		if err := userRepo.Create(ctx, user); err != nil {
			slog.Warn("User might already exist", "username", userData.username, "error", err)
		} else {
			slog.Info("Created user", "username", userData.username, "id", user.ID)
		}
	}

	slog.Info("Seeding complete")
}
