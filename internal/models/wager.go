package models

import "fmt"

// Wager is one user's position on one category within one round. There
// is at most one wager per (user, round, category); repeat bets on the
// same category add to Amount. Payout is written exactly once, during
// settlement, with Settled guarding against a second write.
type Wager struct {
	UserID   int64    `json:"user_id"`
	Username string   `json:"username"`
	Category Category `json:"category"`
	Amount   int64    `json:"amount"`
	Payout   int64    `json:"payout"`
	Settled  bool     `json:"settled,omitempty"`
	PlacedAt int64    `json:"placed_at"`
}

// WagerField is the hash field identifying the unique
// (user, round, category) wager row inside a round's wager hash.
func WagerField(userID int64, category Category) string {
	return fmt.Sprintf("%d:%s", userID, category)
}

// PayoutRecord is an append-only record of a positive disbursement,
// written only alongside a winning settlement.
type PayoutRecord struct {
	UserID      int64 `json:"user_id"`
	Amount      int64 `json:"amount"`
	RoundNumber int64 `json:"round_number"`
	SettledAt   int64 `json:"settled_at"`
}

// LedgerEntry records a single balance mutation together with the
// human-readable reason it happened.
type LedgerEntry struct {
	Amount       int64  `json:"amount"` // negative for debits
	Reason       string `json:"reason"`
	BalanceAfter int64  `json:"balance_after"`
	CreatedAt    int64  `json:"created_at"`
}
