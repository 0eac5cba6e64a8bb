package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-service/internal/adapters/storage"
	"social-service/internal/models"
)

// 10 MB upload cap, matching the client's attachment size limit.
const maxAttachmentSize = 10 << 20

type AttachmentHandler struct {
	storage *storage.MinIOClient
	logger  *slog.Logger
}

func NewAttachmentHandler(st *storage.MinIOClient, logger *slog.Logger) *AttachmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttachmentHandler{
		storage: st,
		logger:  logger.With("component", "attachment_handler"),
	}
}

// Upload godoc
// @Summary Upload a message attachment
// @Description Stores the file in object storage and returns its URL for use as image or file message content.
// @Tags attachments
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Attachment file"
// @Success 201 {object} map[string]string
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Code: http.StatusServiceUnavailable, Message: "attachment storage is not configured"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: http.StatusBadRequest, Message: "file field is required"})
		return
	}
	if file.Size > maxAttachmentSize {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: http.StatusBadRequest, Message: "file exceeds 10MB limit"})
		return
	}

	url, err := h.storage.UploadAttachment(c.Request.Context(), file)
	if err != nil {
		h.logger.Error("attachment upload failed", "filename", file.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: http.StatusInternalServerError, Message: "failed to store attachment"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
