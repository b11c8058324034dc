package models

// Wallet holds a user's balance in cents. Balance is never negative;
// it is mutated only through the atomic debit/credit scripts in the
// redis service, each of which also writes the ledger entry for the
// change.
type Wallet struct {
	UserID       int64  `json:"user_id" redis:"user_id"`
	Username     string `json:"username" redis:"username"`
	Balance      int64  `json:"balance" redis:"balance"`
	TotalWagered int64  `json:"total_wagered" redis:"total_wagered"`
	TotalWon     int64  `json:"total_won" redis:"total_won"`
}

type BalanceResponse struct {
	Balance      int64 `json:"balance"`
	TotalWagered int64 `json:"total_wagered"`
	TotalWon     int64 `json:"total_won"`
}
