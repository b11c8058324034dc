package services

import "time"

const (
	KeyUserSession = "user:%d:session:%s"
	KeyUserInfo    = "user:%d:info"
	KeyUserByName  = "username:%s"
	KeyUserCounter = "user:counter"
	KeyWallet      = "wallet:%d"
	KeyUserLedger  = "user:%d:ledger"
	KeyUserPayouts = "user:%d:payouts"
	KeyRound       = "roulette:round:%d"
	KeyRoundWagers = "roulette:round:%d:wagers"
	KeyLatestRound = "roulette:round:latest"
	KeyRouletteLog = "roulette:history"
	KeyRateLimit   = "ratelimit:%d:%s"

	TTLUserSession = 24 * time.Hour
	TTLUserInfo    = 30 * 24 * time.Hour

	// Capped audit trails.
	MaxLedgerEntries = 200
	MaxPayoutRecords = 100
	MaxRoundHistory  = 10

	DefaultRateLimitBets = 60 // Max 60 bets per minute
)
