package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	onlineUsersKey = "online_users"

	// Online entries expire if the gateway stops refreshing them, so a
	// crashed process cannot leave users online forever.
	onlineTTL = 5 * time.Minute

	// A short offline TTL keeps the last transition visible without
	// flickering on quick reconnects.
	offlineTTL = 1 * time.Minute
)

// PresenceStore mirrors gateway presence into Redis for the REST surface.
// The gateway's in-process registry stays authoritative; everything here is
// best-effort shadow state.
type PresenceStore struct {
	client *redis.Client
}

func NewPresenceStore(client *redis.Client) *PresenceStore {
	return &PresenceStore{client: client}
}

func statusKey(userID string) string {
	return fmt.Sprintf("user:%s:status", userID)
}

func (s *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, onlineUsersKey, userID)
		pipe.HSet(ctx, statusKey(userID), map[string]interface{}{
			"status":    "online",
			"last_seen": time.Now().Unix(),
		})
		pipe.Expire(ctx, statusKey(userID), onlineTTL)
		return nil
	})
	return err
}

func (s *PresenceStore) SetOffline(ctx context.Context, userID string) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, onlineUsersKey, userID)
		pipe.HSet(ctx, statusKey(userID), map[string]interface{}{
			"status":    "offline",
			"last_seen": time.Now().Unix(),
		})
		pipe.Expire(ctx, statusKey(userID), offlineTTL)
		return nil
	})
	return err
}

// LastSeen returns the mirrored last-seen timestamp, or zero when unknown.
func (s *PresenceStore) LastSeen(ctx context.Context, userID string) (time.Time, error) {
	val, err := s.client.HGet(ctx, statusKey(userID), "last_seen").Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt last_seen for %s: %w", userID, err)
	}
	return time.Unix(unix, 0), nil
}

// Allow implements a fixed-window rate limit counter for the HTTP
// middleware.
func (s *PresenceStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}
