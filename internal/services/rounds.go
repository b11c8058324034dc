package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"roulette-miniapp-backend/internal/models"
)

// driverRetryPause is how long the loop waits after an unexpected
// error before retrying the same phase.
const driverRetryPause = time.Second

// RunRoundLoop drives rounds forever: BETTING for the configured
// window, SPINNING for the animation hold, settlement, then the next
// round. It is the only writer of round phase and outcome. A second
// concurrent driver loses the round-creation race and the loop returns
// ErrDuplicateDriver so the process can exit.
func (ge *GameEngine) RunRoundLoop(ctx context.Context) error {
	log.Println("Starting roulette round loop...")

	for {
		if err := ge.runRound(ctx); err != nil {
			if errors.Is(err, ErrDuplicateDriver) {
				log.Printf("Round loop stopping: %v", err)
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Round loop error: %v", err)
			if !sleepUntil(ctx, time.Now().Add(driverRetryPause)) {
				return ctx.Err()
			}
		}
	}
}

// runRound advances the open round through its remaining phases,
// creating a fresh round first if none is open. Re-entering after an
// error or restart resumes whatever phase the stored round is in.
func (ge *GameEngine) runRound(ctx context.Context) error {
	round, err := ge.redisService.GetOpenRound(ctx)
	if err != nil {
		return err
	}
	if round == nil {
		round, err = ge.startNextRound(ctx)
		if err != nil {
			return err
		}
	}

	if round.Status == models.RoundStatusBetting {
		deadline := time.Unix(round.CreatedAt, 0).Add(ge.bettingTime)
		if !sleepUntil(ctx, deadline) {
			return ctx.Err()
		}
		if err := ge.beginSpin(ctx, round); err != nil {
			return err
		}
	}

	if round.Status == models.RoundStatusSpinning {
		deadline := time.Unix(round.SpinAt, 0).Add(ge.spinTime)
		if !sleepUntil(ctx, deadline) {
			return ctx.Err()
		}
		if err := ge.completeRound(ctx, round); err != nil {
			return err
		}
	}

	return nil
}

func (ge *GameEngine) startNextRound(ctx context.Context) (*models.Round, error) {
	latest, err := ge.redisService.GetLatestRoundNumber(ctx)
	if err != nil {
		return nil, err
	}

	round := &models.Round{
		RoundNumber: latest + 1,
		Status:      models.RoundStatusBetting,
		CreatedAt:   time.Now().Unix(),
	}

	if err := ge.redisService.CreateRound(ctx, round); err != nil {
		return nil, err
	}

	log.Printf("Round %d - BETTING phase started", round.RoundNumber)

	if ge.broadcaster != nil {
		ge.broadcaster.BroadcastRoundStarting(round.RoundNumber, ge.bettingTime.Seconds())
	}

	return round, nil
}

// beginSpin locks bets, draws the outcome, persists it, then
// broadcasts it so every client animates toward the same slot. The
// broadcast happens at the start of SPINNING, never after it.
func (ge *GameEngine) beginSpin(ctx context.Context, round *models.Round) error {
	category, slot, err := SpinWheel()
	if err != nil {
		return err
	}

	round.Status = models.RoundStatusSpinning
	round.WinningCategory = category
	round.WinningSlot = &slot
	round.SpinAt = time.Now().Unix()

	if err := ge.redisService.SaveRound(ctx, round); err != nil {
		return err
	}

	log.Printf("Round %d - SPINNING: %s (slot %d)", round.RoundNumber, category, slot)

	if ge.broadcaster != nil {
		ge.broadcaster.BroadcastRoundSpinning(round.RoundNumber, category, slot)
	}

	return nil
}

// completeRound settles every wager, and only once all settlement
// writes have committed marks the round COMPLETED and broadcasts the
// result, so a client personalizing its payout never sees an
// unsettled row.
func (ge *GameEngine) completeRound(ctx context.Context, round *models.Round) error {
	if err := ge.settleRound(ctx, round); err != nil {
		return err
	}

	round.Status = models.RoundStatusCompleted
	if err := ge.redisService.SaveRound(ctx, round); err != nil {
		return err
	}

	if err := ge.redisService.PushRoundWinner(ctx, round.WinningCategory); err != nil {
		return err
	}

	log.Printf("Round %d - COMPLETED", round.RoundNumber)

	if ge.broadcaster != nil {
		slot := 0
		if round.WinningSlot != nil {
			slot = *round.WinningSlot
		}
		ge.broadcaster.BroadcastRoundResult(round.RoundNumber, round.WinningCategory, slot)
	}

	return nil
}

// settleRound writes the payout for every wager of the round. Wagers
// settle independently; each wager's credit and payout write is one
// atomic script, and re-settling a wager is a no-op, so a retry after
// a partial failure cannot double-credit anyone.
func (ge *GameEngine) settleRound(ctx context.Context, round *models.Round) error {
	wagers, err := ge.redisService.GetRoundWagers(ctx, round.RoundNumber)
	if err != nil {
		return err
	}

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		firstErr    error
		winners     int
		totalPayout int64
	)

	for _, wager := range wagers {
		wager := wager
		wg.Add(1)
		go func() {
			defer wg.Done()

			payout := CalculatePayout(wager.Amount, wager.Category, round.WinningCategory)
			applied, err := ge.redisService.SettleWager(ctx, round.RoundNumber, wager, payout)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if applied > 0 {
				winners++
				totalPayout += applied
				log.Printf("  Winner: %s won %s on %s", wager.Username, models.FormatCurrency(applied), wager.Category)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	log.Printf("  Processed %d wagers, %d winners, total payout: %s",
		len(wagers), winners, models.FormatCurrency(totalPayout))
	return nil
}

// sleepUntil blocks until the deadline or context cancellation,
// reporting false when cancelled.
func sleepUntil(ctx context.Context, deadline time.Time) bool {
	wait := time.Until(deadline)
	if wait <= 0 {
		return true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
