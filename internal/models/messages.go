package models

// ClientMessage is everything a websocket client may send.
type ClientMessage struct {
	Type     string `json:"type"`
	Category string `json:"category,omitempty"`
	Amount   int64  `json:"amount,omitempty"`
}

const (
	ClientMsgPlaceBet = "place_bet"
	ClientMsgGetState = "get_state"
)

type BetInfo struct {
	Username string   `json:"username"`
	Category Category `json:"category"`
	Amount   int64    `json:"amount"`
}

// RoundStateMessage is the full snapshot sent on subscribe and on
// get_state requests.
type RoundStateMessage struct {
	Type          string      `json:"type"` // "round_state"
	RoundNumber   int64       `json:"round_number"`
	Phase         RoundStatus `json:"phase"`
	TimeRemaining float64     `json:"time_remaining"` // seconds
	TotalBets     int         `json:"total_bets"`
	History       []Category  `json:"history"`
	Bets          []BetInfo   `json:"bets"`
}

type RoundStartingMessage struct {
	Type          string  `json:"type"` // "round_starting"
	RoundNumber   int64   `json:"round_number"`
	TimeRemaining float64 `json:"time_remaining"`
}

type RoundSpinningMessage struct {
	Type            string   `json:"type"` // "round_spinning"
	RoundNumber     int64    `json:"round_number"`
	WinningCategory Category `json:"winning_category"`
	WinningSlot     int      `json:"winning_slot"`
}

// RoundResultMessage is personalized per recipient: YourPayout and
// YourBalance are the receiving session's own numbers. When the
// personal figures cannot be determined the fields are omitted, never
// sent as zero.
type RoundResultMessage struct {
	Type            string   `json:"type"` // "round_result"
	RoundNumber     int64    `json:"round_number"`
	WinningCategory Category `json:"winning_category"`
	WinningSlot     int      `json:"winning_slot"`
	YourPayout      *int64   `json:"your_payout,omitempty"`
	YourBalance     *int64   `json:"your_balance,omitempty"`
}

type BetPlacedMessage struct {
	Type        string   `json:"type"` // "bet_placed"
	Username    string   `json:"username"`
	Category    Category `json:"category"`
	Amount      int64    `json:"amount"`
	RoundNumber int64    `json:"round_number"`
}

type BalanceUpdateMessage struct {
	Type    string `json:"type"` // "balance_update"
	Balance int64  `json:"balance"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
