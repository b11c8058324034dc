package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"roulette-miniapp-backend/internal/services"
)

type GameHandler struct {
	gameEngine   *services.GameEngine
	redisService *services.RedisService
}

func NewGameHandler(gameEngine *services.GameEngine, redisService *services.RedisService) *GameHandler {
	return &GameHandler{
		gameEngine:   gameEngine,
		redisService: redisService,
	}
}

// GetRoundState serves the same snapshot the websocket sends on
// subscribe, for clients polling over plain HTTP.
func (h *GameHandler) GetRoundState(c *gin.Context) {
	state, err := h.gameEngine.RoundState(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoOpenRound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No round yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load round state"})
		return
	}

	c.JSON(http.StatusOK, state)
}

// GetWheelInfo returns the fixed wheel layout, multipliers and win
// probabilities so clients can render the wheel and the odds table.
func (h *GameHandler) GetWheelInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"wheel_size":    services.WheelSize,
		"layout":        services.Wheel,
		"categories":    services.WheelConfig,
		"probabilities": services.CategoryProbabilities(),
	})
}

func (h *GameHandler) GetHistory(c *gin.Context) {
	history, err := h.redisService.GetRoundHistory(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *GameHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64("user_id")
	username := c.GetString("username")

	wallet, err := h.redisService.GetWallet(c.Request.Context(), userID, username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":       wallet.Balance,
		"total_wagered": wallet.TotalWagered,
		"total_won":     wallet.TotalWon,
	})
}

// GetLedger lists the user's recent balance mutations with their
// reasons.
func (h *GameHandler) GetLedger(c *gin.Context) {
	userID := c.GetInt64("user_id")
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	entries, err := h.redisService.GetUserLedger(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load ledger"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *GameHandler) GetPayouts(c *gin.Context) {
	userID := c.GetInt64("user_id")
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	records, err := h.redisService.GetUserPayouts(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payouts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payouts": records})
}
