package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"roulette-miniapp-backend/internal/models"
	"roulette-miniapp-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	gameEngine   *services.GameEngine
	redisService *services.RedisService
	hub          *WebSocketHub
}

type WebSocketHub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *hubEvent
}

type Client struct {
	UserID   int64
	Username string
	Conn     *websocket.Conn

	// Guards concurrent writes from the hub goroutine and the
	// session's own read loop.
	writeMu sync.Mutex
}

func (c *Client) send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// hubEvent is one published event. When personalize is set the hub
// delivers its per-recipient result instead of the shared message.
type hubEvent struct {
	message     interface{}
	personalize func(*Client) interface{}
}

func NewWebSocketHandler(gameEngine *services.GameEngine, redisService *services.RedisService) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *hubEvent, 100),
	}

	go hub.run()

	return &WebSocketHandler{
		gameEngine:   gameEngine,
		redisService: redisService,
		hub:          hub,
	}
}

// HandleWebSocket is the connection session: the auth middleware has
// already established identity, the upgrade subscribes the session to
// the hub, the snapshot brings it up to date, and the read loop relays
// bets until the client goes away. A disconnect affects nothing but
// this session.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetInt64("user_id")
	username := c.GetString("username")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		UserID:   userID,
		Username: username,
		Conn:     conn,
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	h.sendRoundState(client)
	h.sendBalance(client)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg models.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(client, "Invalid JSON")
			continue
		}

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *models.ClientMessage) {
	switch msg.Type {
	case models.ClientMsgPlaceBet:
		h.handlePlaceBet(client, msg)
	case models.ClientMsgGetState:
		h.sendRoundState(client)
	default:
		h.sendError(client, "Unknown message type")
	}
}

func (h *WebSocketHandler) handlePlaceBet(client *Client, msg *models.ClientMessage) {
	req := &models.PlaceBetRequest{
		Category: models.Category(strings.ToUpper(msg.Category)),
		Amount:   msg.Amount,
	}

	result, err := h.gameEngine.PlaceBet(context.Background(), client.UserID, client.Username, req)
	if err != nil {
		h.sendError(client, err.Error())
		return
	}

	// The accepted bet itself is broadcast to the room by the engine;
	// only the acting session gets its balance.
	client.send(models.BalanceUpdateMessage{
		Type:    "balance_update",
		Balance: result.NewBalance,
	})
}

func (h *WebSocketHandler) sendRoundState(client *Client) {
	state, err := h.gameEngine.RoundState(context.Background())
	if err != nil {
		if errors.Is(err, services.ErrNoOpenRound) {
			// First round not created yet; the round_starting
			// broadcast will catch this session up.
			return
		}
		log.Printf("Failed to build round state: %v", err)
		h.sendError(client, "Failed to load game state")
		return
	}

	client.send(state)
}

func (h *WebSocketHandler) sendBalance(client *Client) {
	wallet, err := h.redisService.GetWallet(context.Background(), client.UserID, client.Username)
	if err != nil {
		log.Printf("Failed to get wallet for WS: %v", err)
		return
	}

	client.send(models.BalanceUpdateMessage{
		Type:    "balance_update",
		Balance: wallet.Balance,
	})
}

func (h *WebSocketHandler) sendError(client *Client, message string) {
	client.send(models.ErrorMessage{
		Type:    "error",
		Message: message,
	})
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client] = true
			log.Printf("Client registered: %s (%d)", client.Username, client.UserID)

		case client := <-hub.unregister:
			if _, ok := hub.clients[client]; ok {
				delete(hub.clients, client)
				log.Printf("Client unregistered: %s (%d)", client.Username, client.UserID)
			}

		case event := <-hub.broadcast:
			for client := range hub.clients {
				msg := event.message
				if event.personalize != nil {
					msg = event.personalize(client)
				}
				if err := client.send(msg); err != nil {
					log.Printf("Failed to deliver to %s: %v", client.Username, err)
				}
			}
		}
	}
}

// --- services.Broadcaster ---

func (h *WebSocketHandler) BroadcastRoundStarting(roundNumber int64, timeRemaining float64) {
	h.hub.broadcast <- &hubEvent{
		message: models.RoundStartingMessage{
			Type:          "round_starting",
			RoundNumber:   roundNumber,
			TimeRemaining: timeRemaining,
		},
	}
}

func (h *WebSocketHandler) BroadcastRoundSpinning(roundNumber int64, category models.Category, slot int) {
	h.hub.broadcast <- &hubEvent{
		message: models.RoundSpinningMessage{
			Type:            "round_spinning",
			RoundNumber:     roundNumber,
			WinningCategory: category,
			WinningSlot:     slot,
		},
	}
}

// BroadcastRoundResult delivers each session its own payout and
// balance; no session sees another user's amounts.
func (h *WebSocketHandler) BroadcastRoundResult(roundNumber int64, category models.Category, slot int) {
	h.hub.broadcast <- &hubEvent{
		personalize: func(client *Client) interface{} {
			msg := models.RoundResultMessage{
				Type:            "round_result",
				RoundNumber:     roundNumber,
				WinningCategory: category,
				WinningSlot:     slot,
			}

			payout, balance, err := h.gameEngine.UserRoundResult(context.Background(), client.UserID, client.Username, roundNumber)
			if err != nil {
				// Shared outcome only; the personal fields are
				// omitted rather than reported as zero.
				log.Printf("Failed to personalize result for %s: %v", client.Username, err)
				return msg
			}

			msg.YourPayout = &payout
			msg.YourBalance = &balance
			return msg
		},
	}
}

func (h *WebSocketHandler) BroadcastBetPlaced(username string, category models.Category, amount, roundNumber int64) {
	h.hub.broadcast <- &hubEvent{
		message: models.BetPlacedMessage{
			Type:        "bet_placed",
			Username:    username,
			Category:    category,
			Amount:      amount,
			RoundNumber: roundNumber,
		},
	}
}
