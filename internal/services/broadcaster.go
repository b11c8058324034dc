package services

import "roulette-miniapp-backend/internal/models"

// Broadcaster decouples the round driver from the websocket hub. Every
// event is delivered at least once to the sessions subscribed at
// publish time; round results are personalized per recipient by the
// implementation.
type Broadcaster interface {
	BroadcastRoundStarting(roundNumber int64, timeRemaining float64)
	BroadcastRoundSpinning(roundNumber int64, category models.Category, slot int)
	BroadcastRoundResult(roundNumber int64, category models.Category, slot int)
	BroadcastBetPlaced(username string, category models.Category, amount, roundNumber int64)
}
