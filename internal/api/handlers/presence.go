package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-service/internal/gateway"
	"social-service/internal/models"
	"social-service/internal/services"
)

// PresenceHandler answers presence questions for clients without an open
// socket. The gateway registry is the source of truth; the Redis mirror only
// supplies last-seen times for offline users.
type PresenceHandler struct {
	gw       *gateway.Gateway
	presence *services.PresenceStore
	logger   *slog.Logger
}

func NewPresenceHandler(gw *gateway.Gateway, presence *services.PresenceStore, logger *slog.Logger) *PresenceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PresenceHandler{
		gw:       gw,
		presence: presence,
		logger:   logger.With("component", "presence_handler"),
	}
}

// GetUserStatus godoc
// @Summary Get a user's online status
// @Tags presence
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.UserStatus
// @Router /users/{id}/status [get]
func (h *PresenceHandler) GetUserStatus(c *gin.Context) {
	userID := c.Param("id")

	status := models.UserStatus{
		UserID:   userID,
		IsOnline: h.gw.IsUserOnline(userID),
	}
	if !status.IsOnline {
		lastSeen, err := h.presence.LastSeen(c.Request.Context(), userID)
		if err != nil {
			h.logger.Warn("failed to read last seen", "userID", userID, "error", err)
		} else if !lastSeen.IsZero() {
			status.LastSeen = lastSeen.Unix()
		}
	}
	c.JSON(http.StatusOK, status)
}

// GetOnlineUsers godoc
// @Summary List currently online users
// @Tags presence
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string][]string
// @Router /users/online [get]
func (h *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.gw.Registry().OnlineUsers()})
}
