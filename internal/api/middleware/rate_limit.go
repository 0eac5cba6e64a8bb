package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"social-service/internal/services"
)

type RateLimitMiddleware struct {
	store *services.PresenceStore
}

func NewRateLimitMiddleware(store *services.PresenceStore) *RateLimitMiddleware {
	return &RateLimitMiddleware{store: store}
}

// RateLimit caps requests per authenticated user. Requires RequireAuth to
// have run first.
func (rl *RateLimitMiddleware) RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			c.Next()
			return
		}
		rl.check(c, fmt.Sprintf("ratelimit:user:%s", userID), limit, window)
	}
}

// RateLimitIP caps requests per client IP for unauthenticated endpoints.
func (rl *RateLimitMiddleware) RateLimitIP(limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		rl.check(c, fmt.Sprintf("ratelimit:ip:%s", c.ClientIP()), limit, window)
	}
}

func (rl *RateLimitMiddleware) check(c *gin.Context, key string, limit int, window time.Duration) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	allowed, err := rl.store.Allow(ctx, key, limit, window)
	if err != nil {
		// Redis being down should not take the API with it.
		c.Next()
		return
	}
	if !allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}
	c.Next()
}
