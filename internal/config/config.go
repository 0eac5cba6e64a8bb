package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Kafka    KafkaConfig
	Storage  StorageConfig
	Gateway  GatewayConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds the postgres connection string gorm expects.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Enabled bool
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Enabled   bool
}

type GatewayConfig struct {
	// PresenceScope is "global" or "contacts".
	PresenceScope  string
	ProbeInterval  time.Duration
	EvictInterval  time.Duration
	StaleThreshold time.Duration
}

func Load() (*Config, error) {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_READ_TIMEOUT", 30*time.Second)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 30*time.Second)
	viper.SetDefault("SERVER_IDLE_TIMEOUT", 60*time.Second)

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", "5432")
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "password")
	viper.SetDefault("POSTGRES_DB", "social")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")

	viper.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")

	viper.SetDefault("JWT_SECRET", "secret")

	viper.SetDefault("KAFKA_BROKERS", []string{"localhost:9092"})
	viper.SetDefault("KAFKA_TOPIC", "message-events")
	viper.SetDefault("KAFKA_GROUP_ID", "notification-worker")
	viper.SetDefault("KAFKA_ENABLED", true)

	viper.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	viper.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	viper.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	viper.SetDefault("MINIO_BUCKET", "attachments")
	viper.SetDefault("MINIO_USE_SSL", false)
	viper.SetDefault("MINIO_ENABLED", false)

	viper.SetDefault("GATEWAY_PRESENCE_SCOPE", "global")
	viper.SetDefault("GATEWAY_PROBE_INTERVAL", 2*time.Minute)
	viper.SetDefault("GATEWAY_EVICT_INTERVAL", 5*time.Minute)
	viper.SetDefault("GATEWAY_STALE_THRESHOLD", 5*time.Minute)

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:         viper.GetString("SERVER_HOST"),
			Port:         viper.GetString("SERVER_PORT"),
			ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:  viper.GetDuration("SERVER_IDLE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("POSTGRES_HOST"),
			Port:     viper.GetString("POSTGRES_PORT"),
			User:     viper.GetString("POSTGRES_USER"),
			Password: viper.GetString("POSTGRES_PASSWORD"),
			DBName:   viper.GetString("POSTGRES_DB"),
			SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("REDIS_URL"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Kafka: KafkaConfig{
			Brokers: viper.GetStringSlice("KAFKA_BROKERS"),
			Topic:   viper.GetString("KAFKA_TOPIC"),
			GroupID: viper.GetString("KAFKA_GROUP_ID"),
			Enabled: viper.GetBool("KAFKA_ENABLED"),
		},
		Storage: StorageConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: viper.GetString("MINIO_SECRET_KEY"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Enabled:   viper.GetBool("MINIO_ENABLED"),
		},
		Gateway: GatewayConfig{
			PresenceScope:  viper.GetString("GATEWAY_PRESENCE_SCOPE"),
			ProbeInterval:  viper.GetDuration("GATEWAY_PROBE_INTERVAL"),
			EvictInterval:  viper.GetDuration("GATEWAY_EVICT_INTERVAL"),
			StaleThreshold: viper.GetDuration("GATEWAY_STALE_THRESHOLD"),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}
	return cfg, nil
}
