package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-service/internal/api/middleware"
	"social-service/internal/gateway"
	"social-service/internal/models"
	"social-service/internal/services"
)

type NotificationHandler struct {
	notifications *services.NotificationService
	gw            *gateway.Gateway
	logger        *slog.Logger
}

func NewNotificationHandler(notifications *services.NotificationService, gw *gateway.Gateway, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{
		notifications: notifications,
		gw:            gw,
		logger:        logger.With("component", "notification_handler"),
	}
}

type createNotificationRequest struct {
	UserID    string                  `json:"userId" binding:"required"`
	Text      string                  `json:"text" binding:"required"`
	Type      models.NotificationType `json:"type"`
	RelatedID string                  `json:"relatedId"`
}

// Create godoc
// @Summary Create a notification
// @Description Persists an inbox entry and pushes it to the target user's personal channel if they are online.
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param notification body createNotificationRequest true "Notification to create"
// @Success 201 {object} models.Notification
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /notifications [post]
func (h *NotificationHandler) Create(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: http.StatusBadRequest, Message: "invalid request body", Details: err.Error()})
		return
	}

	n := models.Notification{
		UserID:    req.UserID,
		Text:      req.Text,
		Type:      req.Type,
		RelatedID: req.RelatedID,
	}
	if err := h.notifications.Create(c.Request.Context(), &n); err != nil {
		h.logger.Error("failed to create notification", "userID", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: http.StatusInternalServerError, Message: "failed to create notification"})
		return
	}

	if err := h.gw.EmitNotificationEvent(n.UserID, &n); err != nil {
		h.logger.Debug("notification not delivered realtime", "notificationID", n.ID, "error", err)
	}

	c.JSON(http.StatusCreated, n)
}

// List godoc
// @Summary List the calling user's notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 50)"
// @Param unread query bool false "Only unread notifications"
// @Success 200 {array} models.Notification
// @Failure 500 {object} models.ErrorResponse
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}
	unreadOnly := c.Query("unread") == "true"

	items, err := h.notifications.List(c.Request.Context(), userID, limit, unreadOnly)
	if err != nil {
		h.logger.Error("failed to list notifications", "userID", userID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: http.StatusInternalServerError, Message: "failed to list notifications"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// CountUnread godoc
// @Summary Count unread notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) CountUnread(c *gin.Context) {
	userID := middleware.UserID(c)

	count, err := h.notifications.CountUnread(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to count notifications", "userID", userID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: http.StatusInternalServerError, Message: "failed to count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := middleware.UserID(c)

	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Code: http.StatusNotFound, Message: "notification not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
