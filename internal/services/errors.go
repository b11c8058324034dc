package services

import "errors"

var (
	// ErrInsufficientFunds means the debit would drive the balance
	// negative; nothing was mutated.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrNoOpenRound means the bet arrived while no round was in the
	// BETTING phase.
	ErrNoOpenRound = errors.New("no active betting round")

	// ErrTimeout means the bet transaction could not complete within
	// the configured bound.
	ErrTimeout = errors.New("bet timed out, please try again")

	// ErrDuplicateDriver means another process already created the
	// round this driver tried to create. The losing driver must exit
	// rather than double-drive rounds.
	ErrDuplicateDriver = errors.New("round already exists: another game driver is running")

	ErrRateLimited = errors.New("too many bets, please wait")

	ErrWagerNotFound = errors.New("wager not found")
)
