package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"social-service/internal/api/middleware"
	"social-service/internal/gateway"
	"social-service/internal/models"
	"social-service/internal/services"
)

type MessageHandler struct {
	messages *services.MessageService
	gw       *gateway.Gateway
	logger   *slog.Logger
}

func NewMessageHandler(messages *services.MessageService, gw *gateway.Gateway, logger *slog.Logger) *MessageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageHandler{
		messages: messages,
		gw:       gw,
		logger:   logger.With("component", "message_handler"),
	}
}

type sendMessageRequest struct {
	ReceiverID string             `json:"receiverId" binding:"required"`
	Content    string             `json:"content" binding:"required"`
	Type       models.MessageType `json:"type"`
	TempID     string             `json:"tempId"`
}

// SendMessage godoc
// @Summary Send a direct message
// @Description Persists the message, then fans it out over the realtime gateway to online participants.
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param message body sendMessageRequest true "Message to send"
// @Success 201 {object} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /messages [post]
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID := middleware.UserID(c)

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: http.StatusBadRequest, Message: "invalid request body", Details: err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = models.MessageTypeText
	}

	msg := models.Message{
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		Type:       req.Type,
		TempID:     req.TempID,
	}
	if err := h.messages.SaveMessage(c.Request.Context(), &msg); err != nil {
		h.logger.Error("failed to save message", "senderID", userID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: http.StatusInternalServerError, Message: "failed to save message"})
		return
	}

	// Delivery is best-effort: offline participants catch up from history.
	if err := h.gw.EmitMessageEvent(gateway.MessageSent, &msg); err != nil {
		h.logger.Warn("partial realtime delivery", "messageID", msg.ID, "error", err)
	}

	c.JSON(http.StatusCreated, msg)
}

// GetHistory godoc
// @Summary Get conversation history with a partner
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param partnerId path string true "Partner user ID"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param before query int false "Unix timestamp cursor"
// @Success 200 {object} models.PaginatedMessages
// @Failure 500 {object} models.ErrorResponse
// @Router /messages/chat/{partnerId} [get]
func (h *MessageHandler) GetHistory(c *gin.Context) {
	userID := middleware.UserID(c)
	partnerID := c.Param("partnerId")

	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	var before *int64
	if b := c.Query("before"); b != "" {
		if parsed, err := strconv.ParseInt(b, 10, 64); err == nil {
			before = &parsed
		}
	}

	messages, err := h.messages.History(c.Request.Context(), userID, partnerID, limit, before)
	if err != nil {
		h.logger.Error("failed to load history", "userID", userID, "partnerID", partnerID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: http.StatusInternalServerError, Message: "failed to load history"})
		return
	}

	resp := models.PaginatedMessages{Items: messages, Total: len(messages)}
	if len(messages) == limit {
		cursor := messages[len(messages)-1].CreatedAt.Unix()
		resp.NextCursor = &cursor
	}
	c.JSON(http.StatusOK, resp)
}

// MarkRead godoc
// @Summary Mark a received message as read
// @Description Marks the message read and notifies the sender over the realtime gateway.
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} models.Message
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /messages/{id}/read [put]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID := middleware.UserID(c)
	messageID := c.Param("id")

	msg, err := h.messages.GetByID(c.Request.Context(), messageID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Code: http.StatusNotFound, Message: "message not found"})
		return
	}
	if msg.ReceiverID != userID {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Code: http.StatusForbidden, Message: "only the receiver can mark a message read"})
		return
	}

	if err := h.messages.MarkRead(c.Request.Context(), messageID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: http.StatusInternalServerError, Message: "failed to mark message read"})
		return
	}
	now := time.Now()
	msg.Read = true
	msg.ReadAt = &now

	if err := h.gw.EmitMessageEvent(gateway.MessageRead, msg); err != nil {
		h.logger.Warn("read receipt not delivered", "messageID", msg.ID, "error", err)
	}

	c.JSON(http.StatusOK, msg)
}

// DeleteMessage godoc
// @Summary Delete a message for the calling user
// @Description Soft delete. The message stays visible to the other participant.
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /messages/{id} [delete]
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID := middleware.UserID(c)

	if err := h.messages.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Code: http.StatusNotFound, Message: "message not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
