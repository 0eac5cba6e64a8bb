package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"social-service/internal/models"
)

const tokenTTL = 24 * time.Hour

// userStore is the slice of the user repository the handler needs.
type userStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SearchByUsername(ctx context.Context, query string, limit int) ([]models.User, error)
}

type UserHandler struct {
	users     userStore
	jwtSecret []byte
	logger    *slog.Logger
}

func NewUserHandler(users userStore, jwtSecret string, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		logger:    logger.With("component", "user_handler"),
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string              `json:"token"`
	User  *models.UserSummary `json:"user"`
}

// Login godoc
// @Summary Log in with email and password
// @Description Returns a JWT accepted by both the REST API and the websocket authenticate event.
// @Tags users
// @Accept json
// @Produce json
// @Param credentials body loginRequest true "Login credentials"
// @Success 200 {object} loginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: http.StatusBadRequest, Message: "invalid request body", Details: err.Error()})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Code: http.StatusUnauthorized, Message: "invalid email or password"})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(tokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	})
	signed, err := token.SignedString(h.jwtSecret)
	if err != nil {
		h.logger.Error("failed to sign token", "userID", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: http.StatusInternalServerError, Message: "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, loginResponse{Token: signed, User: user.Summary()})
}

// Search godoc
// @Summary Search users by username
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param q query string true "Username fragment"
// @Success 200 {array} models.UserSummary
// @Failure 400 {object} models.ErrorResponse
// @Router /users/search [get]
func (h *UserHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: http.StatusBadRequest, Message: "q parameter is required"})
		return
	}

	users, err := h.users.SearchByUsername(c.Request.Context(), query, 20)
	if err != nil {
		h.logger.Error("user search failed", "query", query, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Code: http.StatusInternalServerError, Message: "search failed"})
		return
	}

	summaries := make([]*models.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}
	c.JSON(http.StatusOK, summaries)
}
