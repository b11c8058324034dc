package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roulette-miniapp-backend/internal/config"
	"roulette-miniapp-backend/internal/models"
)

// GameEngine owns bet acceptance and round advancement. Exactly one
// process runs the round loop; any number of sessions call PlaceBet
// and the snapshot methods concurrently.
type GameEngine struct {
	redisService    *RedisService
	broadcaster     Broadcaster
	bettingTime     time.Duration
	spinTime        time.Duration
	betTimeout      time.Duration
	validCategories map[models.Category]bool
}

type BetResult struct {
	RoundNumber int64 `json:"round_number"`
	NewBalance  int64 `json:"new_balance"`
	WagerTotal  int64 `json:"wager_total"`
}

func NewGameEngine(redisService *RedisService, cfg *config.Config) (*GameEngine, error) {
	if err := ValidateWheelConfig(); err != nil {
		return nil, fmt.Errorf("bad wheel configuration: %v", err)
	}

	return &GameEngine{
		redisService:    redisService,
		bettingTime:     cfg.BettingTime,
		spinTime:        cfg.SpinTime,
		betTimeout:      cfg.BetTimeout,
		validCategories: ValidCategories(),
	}, nil
}

// SetBroadcaster wires the websocket hub in after construction; the
// hub needs the engine first for personalized results.
func (ge *GameEngine) SetBroadcaster(b Broadcaster) {
	ge.broadcaster = b
}

// PlaceBet validates and records a wager against the currently open
// round, debiting the balance atomically. Duplicate bets on the same
// category merge into one wager row.
func (ge *GameEngine) PlaceBet(ctx context.Context, userID int64, username string, req *models.PlaceBetRequest) (*BetResult, error) {
	if err := req.Validate(ge.validCategories); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ge.betTimeout)
	defer cancel()

	allowed, err := ge.redisService.CheckRateLimit(ctx, userID, "bet", DefaultRateLimitBets, time.Minute)
	if err != nil {
		return nil, betError(ctx, fmt.Errorf("rate limit check failed: %v", err))
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	// Ensure the wallet exists before the atomic script touches it.
	if _, err := ge.redisService.GetWallet(ctx, userID, username); err != nil {
		return nil, betError(ctx, err)
	}

	round, err := ge.redisService.GetOpenRound(ctx)
	if err != nil {
		return nil, betError(ctx, err)
	}
	if round == nil || round.Status != models.RoundStatusBetting {
		return nil, ErrNoOpenRound
	}

	// The script re-checks the round phase and the balance under
	// atomicity; the reads above only pick the target round.
	newBalance, wagerTotal, err := ge.redisService.PlaceWager(ctx, round.RoundNumber, userID, username, req.Category, req.Amount)
	if err != nil {
		return nil, betError(ctx, err)
	}

	if ge.broadcaster != nil {
		ge.broadcaster.BroadcastBetPlaced(username, req.Category, req.Amount, round.RoundNumber)
	}

	return &BetResult{
		RoundNumber: round.RoundNumber,
		NewBalance:  newBalance,
		WagerTotal:  wagerTotal,
	}, nil
}

// RoundState builds the full snapshot of the current (or most recent)
// round for late joiners and get_state requests.
func (ge *GameEngine) RoundState(ctx context.Context) (*models.RoundStateMessage, error) {
	round, err := ge.redisService.GetOpenRound(ctx)
	if err != nil {
		return nil, err
	}
	if round == nil {
		latest, err := ge.redisService.GetLatestRoundNumber(ctx)
		if err != nil {
			return nil, err
		}
		if latest == 0 {
			return nil, ErrNoOpenRound
		}
		round, err = ge.redisService.GetRound(ctx, latest)
		if err != nil {
			return nil, err
		}
		if round == nil {
			return nil, ErrNoOpenRound
		}
	}

	wagers, err := ge.redisService.GetRoundWagers(ctx, round.RoundNumber)
	if err != nil {
		return nil, err
	}

	history, err := ge.redisService.GetRoundHistory(ctx)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []models.Category{}
	}

	bets := make([]models.BetInfo, 0, len(wagers))
	for _, wager := range wagers {
		bets = append(bets, models.BetInfo{
			Username: wager.Username,
			Category: wager.Category,
			Amount:   wager.Amount,
		})
	}

	return &models.RoundStateMessage{
		Type:          "round_state",
		RoundNumber:   round.RoundNumber,
		Phase:         round.Status,
		TimeRemaining: ge.timeRemaining(round),
		TotalBets:     len(wagers),
		History:       history,
		Bets:          bets,
	}, nil
}

// timeRemaining reports seconds left in the round's current phase,
// clamped at zero.
func (ge *GameEngine) timeRemaining(round *models.Round) float64 {
	var deadline time.Time
	switch round.Status {
	case models.RoundStatusBetting:
		deadline = time.Unix(round.CreatedAt, 0).Add(ge.bettingTime)
	case models.RoundStatusSpinning:
		deadline = time.Unix(round.SpinAt, 0).Add(ge.spinTime)
	default:
		return 0
	}

	remaining := time.Until(deadline).Seconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UserRoundResult returns one user's total payout for a round and
// their current balance, for the personalized round_result message.
func (ge *GameEngine) UserRoundResult(ctx context.Context, userID int64, username string, roundNumber int64) (int64, int64, error) {
	payout, err := ge.redisService.GetUserRoundPayout(ctx, userID, roundNumber)
	if err != nil {
		return 0, 0, err
	}

	wallet, err := ge.redisService.GetWallet(ctx, userID, username)
	if err != nil {
		return 0, 0, err
	}

	return payout, wallet.Balance, nil
}

// betError folds context expiry into the timeout rejection so the
// caller sees ErrTimeout no matter which call tripped the deadline.
func betError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
