package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"roulette-miniapp-backend/internal/models"
	"roulette-miniapp-backend/internal/services"
)

// AuthHandler is the stand-in for the external auth collaborator: it
// resolves a username to a stable account identity and issues the
// session token every other endpoint and the websocket require.
type AuthHandler struct {
	redisService *services.RedisService
	jwtService   *services.JWTService
}

func NewAuthHandler(redisService *services.RedisService, jwtService *services.JWTService) *AuthHandler {
	return &AuthHandler{
		redisService: redisService,
		jwtService:   jwtService,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32,alphanum"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	user, err := h.redisService.GetOrCreateUser(ctx, req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve user"})
		return
	}

	session := &models.UserSession{
		UserID:       user.ID,
		SessionID:    models.GenerateSessionID(),
		Username:     user.Username,
		CreatedAt:    time.Now(),
		LastAccessed: time.Now(),
	}
	if err := h.redisService.StoreUserSession(ctx, session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Username, session.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	wallet, err := h.redisService.GetWallet(ctx, user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
		},
		"balance": wallet.Balance,
	})
}
