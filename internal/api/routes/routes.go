package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"social-service/internal/adapters/storage"
	"social-service/internal/api/handlers"
	"social-service/internal/api/middleware"
	"social-service/internal/gateway"
	"social-service/internal/repositories/postgres"
	"social-service/internal/services"
)

type Router struct {
	engine              *gin.Engine
	wsHandler           *handlers.WSHandler
	messageHandler      *handlers.MessageHandler
	notificationHandler *handlers.NotificationHandler
	presenceHandler     *handlers.PresenceHandler
	attachmentHandler   *handlers.AttachmentHandler
	userHandler         *handlers.UserHandler
	authMW              *middleware.AuthMiddleware
	rateLimitMW         *middleware.RateLimitMiddleware
}

func NewRouter(
	gw *gateway.Gateway,
	verifier gateway.TokenVerifier,
	messages *services.MessageService,
	notifications *services.NotificationService,
	presence *services.PresenceStore,
	attachments *storage.MinIOClient,
	users *postgres.UserRepository,
	jwtSecret string,
	logger *slog.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORSMiddleware())
	engine.Use(middleware.RequestLogger(logger))

	return &Router{
		engine:              engine,
		wsHandler:           handlers.NewWSHandler(gw, logger),
		messageHandler:      handlers.NewMessageHandler(messages, gw, logger),
		notificationHandler: handlers.NewNotificationHandler(notifications, gw, logger),
		presenceHandler:     handlers.NewPresenceHandler(gw, presence, logger),
		attachmentHandler:   handlers.NewAttachmentHandler(attachments, logger),
		userHandler:         handlers.NewUserHandler(users, jwtSecret, logger),
		authMW:              middleware.NewAuthMiddleware(verifier),
		rateLimitMW:         middleware.NewRateLimitMiddleware(presence),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.engine.Group("/api/v1")

	// Socket clients authenticate in-band after the upgrade.
	api.GET("/ws",
		r.rateLimitMW.RateLimitIP(10, time.Minute),
		r.wsHandler.HandleWebSocket,
	)

	api.POST("/auth/login",
		r.rateLimitMW.RateLimitIP(10, time.Minute),
		r.userHandler.Login,
	)

	auth := api.Group("/")
	auth.Use(r.authMW.RequireAuth())
	auth.Use(r.rateLimitMW.RateLimit(120, time.Minute))
	{
		messages := auth.Group("/messages")
		{
			messages.POST("", r.messageHandler.SendMessage)
			messages.GET("/chat/:partnerId", r.messageHandler.GetHistory)
			messages.PUT("/:id/read", r.messageHandler.MarkRead)
			messages.DELETE("/:id", r.messageHandler.DeleteMessage)
		}

		notifications := auth.Group("/notifications")
		{
			notifications.POST("", r.notificationHandler.Create)
			notifications.GET("", r.notificationHandler.List)
			notifications.GET("/unread-count", r.notificationHandler.CountUnread)
			notifications.PUT("/:id/read", r.notificationHandler.MarkRead)
		}

		users := auth.Group("/users")
		{
			users.GET("/online", r.presenceHandler.GetOnlineUsers)
			users.GET("/search", r.userHandler.Search)
			users.GET("/:id/status", r.presenceHandler.GetUserStatus)
		}

		auth.POST("/attachments", r.attachmentHandler.Upload)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
