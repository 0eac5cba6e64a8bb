package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"social-service/internal/gateway"
)

// WSHandler upgrades HTTP requests and hands the socket to the gateway.
// Authentication happens in-band after the upgrade, so this endpoint itself
// is unauthenticated.
type WSHandler struct {
	gw       *gateway.Gateway
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(gw *gateway.Gateway, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		gw: gw,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.With("component", "ws_handler"),
	}
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := []string{"http://localhost:3000", "http://localhost:5173"}
	if env := os.Getenv("ALLOWED_ORIGINS"); env != "" {
		allowed = strings.Split(env, ",")
	}
	for _, a := range allowed {
		if strings.TrimSpace(a) == origin {
			return true
		}
	}
	return false
}

// HandleWebSocket godoc
// @Summary Open the realtime gateway connection
// @Description Upgrades to WebSocket. The client must send an authenticate event before any other operation.
// @Tags gateway
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", c.ClientIP(), "error", err)
		return
	}
	h.logger.Info("websocket connection opened", "remote", c.ClientIP())
	h.gw.Attach(conn)
}
