package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"roulette-miniapp-backend/internal/config"
	"roulette-miniapp-backend/internal/models"
	"roulette-miniapp-backend/internal/services"
)

func testConfig() *config.Config {
	return &config.Config{
		RedisURL:        "localhost:6379",
		RedisPass:       "",
		RedisDB:         0,
		JWTSecret:       "test-secret",
		BettingTime:     15 * time.Second,
		SpinTime:        3 * time.Second,
		BetTimeout:      5 * time.Second,
		StartingBalance: 10000,
	}
}

func setupTestRedis(t *testing.T) *services.RedisService {
	redisService, err := services.NewRedisService(testConfig())
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return redisService
}

// newTestRound creates a BETTING round with a number unique to this
// test run.
func newTestRound(t *testing.T, rs *services.RedisService) *models.Round {
	round := &models.Round{
		RoundNumber: time.Now().UnixNano(),
		Status:      models.RoundStatusBetting,
		CreatedAt:   time.Now().Unix(),
	}
	if err := rs.CreateRound(context.Background(), round); err != nil {
		t.Fatalf("Failed to create test round: %v", err)
	}
	return round
}

func TestWalletLifecycle(t *testing.T) {
	rs := setupTestRedis(t)
	defer rs.Close()

	ctx := context.Background()
	userID := int64(990001)
	defer rs.DeleteWallet(ctx, userID)

	wallet, err := rs.GetWallet(ctx, userID, "walletuser")
	if err != nil {
		t.Fatalf("Failed to get wallet: %v", err)
	}
	if wallet.Balance != 10000 {
		t.Errorf("Expected starting balance 10000, got %d", wallet.Balance)
	}

	wallet.Balance = 1000
	if err := rs.SaveWallet(ctx, wallet); err != nil {
		t.Fatalf("Failed to save wallet: %v", err)
	}

	wallet, err = rs.GetWallet(ctx, userID, "walletuser")
	if err != nil {
		t.Fatalf("Failed to reload wallet: %v", err)
	}
	if wallet.Balance != 1000 {
		t.Errorf("Expected balance 1000 after save, got %d", wallet.Balance)
	}
}

// TestWalletCreateKeepsExistingBalance enacts two sessions first-touching
// the same account: the slower creation attempt must read back the wallet
// the faster session already debited, never reset it.
func TestWalletCreateKeepsExistingBalance(t *testing.T) {
	rs := setupTestRedis(t)
	defer rs.Close()

	ctx := context.Background()
	userID := int64(990006)
	round := newTestRound(t, rs)
	defer rs.DeleteWallet(ctx, userID)
	defer rs.DeleteRound(ctx, round.RoundNumber)
	defer rs.DeleteUserLedger(ctx, userID)

	if _, err := rs.GetWallet(ctx, userID, "firsttouch"); err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}
	if _, _, err := rs.PlaceWager(ctx, round.RoundNumber, userID, "firsttouch", models.CategoryRed, 500); err != nil {
		t.Fatalf("Failed to place wager: %v", err)
	}

	// A session that saw no wallet before the debit committed now runs
	// its creation attempt.
	wallet, err := rs.CreateWalletIfAbsent(ctx, userID, "firsttouch")
	if err != nil {
		t.Fatalf("Failed on late create: %v", err)
	}
	if wallet.Balance != 9500 {
		t.Errorf("Late create should read the debited wallet, got balance %d", wallet.Balance)
	}

	wallet, err = rs.GetWallet(ctx, userID, "firsttouch")
	if err != nil {
		t.Fatalf("Failed to reload wallet: %v", err)
	}
	if wallet.Balance != 9500 {
		t.Errorf("Late create overwrote a committed debit, balance %d", wallet.Balance)
	}

	wagers, err := rs.GetRoundWagers(ctx, round.RoundNumber)
	if err != nil {
		t.Fatalf("Failed to get wagers: %v", err)
	}
	if len(wagers) != 1 || wagers[0].Amount != 500 {
		t.Errorf("Wager row should still hold the 500 debit, got %+v", wagers)
	}
}

func TestPlaceWager(t *testing.T) {
	rs := setupTestRedis(t)
	defer rs.Close()

	ctx := context.Background()
	userID := int64(990002)
	round := newTestRound(t, rs)
	defer rs.DeleteWallet(ctx, userID)
	defer rs.DeleteRound(ctx, round.RoundNumber)
	defer rs.DeleteUserLedger(ctx, userID)

	wallet, err := rs.GetWallet(ctx, userID, "bettor")
	if err != nil {
		t.Fatalf("Failed to get wallet: %v", err)
	}
	wallet.Balance = 1000
	if err := rs.SaveWallet(ctx, wallet); err != nil {
		t.Fatalf("Failed to save wallet: %v", err)
	}

	balance, total, err := rs.PlaceWager(ctx, round.RoundNumber, userID, "bettor", models.CategoryRed, 50)
	if err != nil {
		t.Fatalf("Failed to place wager: %v", err)
	}
	if balance != 950 || total != 50 {
		t.Errorf("Expected balance 950 / total 50, got %d / %d", balance, total)
	}

	// Repeat bet on the same category merges into the existing row.
	balance, total, err = rs.PlaceWager(ctx, round.RoundNumber, userID, "bettor", models.CategoryRed, 30)
	if err != nil {
		t.Fatalf("Failed to place repeat wager: %v", err)
	}
	if balance != 920 || total != 80 {
		t.Errorf("Expected balance 920 / total 80, got %d / %d", balance, total)
	}

	// A different category creates a second row.
	if _, _, err := rs.PlaceWager(ctx, round.RoundNumber, userID, "bettor", models.CategoryBlue, 20); err != nil {
		t.Fatalf("Failed to place second-category wager: %v", err)
	}

	wagers, err := rs.GetRoundWagers(ctx, round.RoundNumber)
	if err != nil {
		t.Fatalf("Failed to get round wagers: %v", err)
	}
	if len(wagers) != 2 {
		t.Errorf("Expected 2 wager rows, got %d", len(wagers))
	}
	for _, wager := range wagers {
		if wager.Category == models.CategoryRed && wager.Amount != 80 {
			t.Errorf("Expected merged RED wager of 80, got %d", wager.Amount)
		}
	}

	// Insufficient funds leaves everything untouched.
	_, _, err = rs.PlaceWager(ctx, round.RoundNumber, userID, "bettor", models.CategoryGold, 100000)
	if !errors.Is(err, services.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	wallet, _ = rs.GetWallet(ctx, userID, "bettor")
	if wallet.Balance != 900 {
		t.Errorf("Balance should be unchanged at 900 after rejection, got %d", wallet.Balance)
	}
	wagers, _ = rs.GetRoundWagers(ctx, round.RoundNumber)
	if len(wagers) != 2 {
		t.Errorf("Rejected bet should not create a wager row, have %d rows", len(wagers))
	}

	// The ledger carries a reason-tagged entry per debit.
	entries, err := rs.GetUserLedger(ctx, userID, 10)
	if err != nil {
		t.Fatalf("Failed to get ledger: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("Expected 3 ledger entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Reason == "" {
			t.Error("Ledger entry should carry a reason")
		}
		if entry.Amount >= 0 {
			t.Error("Bet ledger entries should be debits")
		}
	}
}

func TestPlaceWagerNoOpenRound(t *testing.T) {
	rs := setupTestRedis(t)
	defer rs.Close()

	ctx := context.Background()
	userID := int64(990003)
	round := newTestRound(t, rs)
	defer rs.DeleteWallet(ctx, userID)
	defer rs.DeleteRound(ctx, round.RoundNumber)

	if _, err := rs.GetWallet(ctx, userID, "lateuser"); err != nil {
		t.Fatalf("Failed to get wallet: %v", err)
	}

	round.Status = models.RoundStatusSpinning
	round.SpinAt = time.Now().Unix()
	if err := rs.SaveRound(ctx, round); err != nil {
		t.Fatalf("Failed to save round: %v", err)
	}

	_, _, err := rs.PlaceWager(ctx, round.RoundNumber, userID, "lateuser", models.CategoryRed, 100)
	if !errors.Is(err, services.ErrNoOpenRound) {
		t.Fatalf("Expected ErrNoOpenRound for locked round, got %v", err)
	}

	wallet, _ := rs.GetWallet(ctx, userID, "lateuser")
	if wallet.Balance != 10000 {
		t.Errorf("Balance should be unchanged after rejection, got %d", wallet.Balance)
	}
}

func TestSettleWagerOnce(t *testing.T) {
	rs := setupTestRedis(t)
	defer rs.Close()

	ctx := context.Background()
	userID := int64(990004)
	round := newTestRound(t, rs)
	defer rs.DeleteWallet(ctx, userID)
	defer rs.DeleteRound(ctx, round.RoundNumber)
	defer rs.DeleteUserLedger(ctx, userID)

	wallet, err := rs.GetWallet(ctx, userID, "winner")
	if err != nil {
		t.Fatalf("Failed to get wallet: %v", err)
	}
	wallet.Balance = 1000
	if err := rs.SaveWallet(ctx, wallet); err != nil {
		t.Fatalf("Failed to save wallet: %v", err)
	}

	if _, _, err := rs.PlaceWager(ctx, round.RoundNumber, userID, "winner", models.CategoryRed, 100); err != nil {
		t.Fatalf("Failed to place wager: %v", err)
	}

	wager := &models.Wager{UserID: userID, Category: models.CategoryRed, Amount: 100}
	payout := services.CalculatePayout(100, models.CategoryRed, models.CategoryRed)
	if payout != 300 {
		t.Fatalf("Expected payout 300, got %d", payout)
	}

	applied, err := rs.SettleWager(ctx, round.RoundNumber, wager, payout)
	if err != nil {
		t.Fatalf("Failed to settle wager: %v", err)
	}
	if applied != 300 {
		t.Errorf("Expected applied payout 300, got %d", applied)
	}

	wallet, _ = rs.GetWallet(ctx, userID, "winner")
	if wallet.Balance != 1200 {
		t.Errorf("Expected balance 1200 after win, got %d", wallet.Balance)
	}

	// Settling again must be a no-op: payout is written exactly once.
	applied, err = rs.SettleWager(ctx, round.RoundNumber, wager, payout)
	if err != nil {
		t.Fatalf("Failed on re-settle: %v", err)
	}
	if applied != -1 {
		t.Errorf("Re-settle should report already-settled, got %d", applied)
	}
	wallet, _ = rs.GetWallet(ctx, userID, "winner")
	if wallet.Balance != 1200 {
		t.Errorf("Re-settle must not touch the balance, got %d", wallet.Balance)
	}

	// Exactly one payout record for the win.
	records, err := rs.GetUserPayouts(ctx, userID, 10)
	if err != nil {
		t.Fatalf("Failed to get payout records: %v", err)
	}
	if len(records) != 1 || records[0].Amount != 300 {
		t.Errorf("Expected one payout record of 300, got %+v", records)
	}

	payoutTotal, err := rs.GetUserRoundPayout(ctx, userID, round.RoundNumber)
	if err != nil {
		t.Fatalf("Failed to get round payout: %v", err)
	}
	if payoutTotal != 300 {
		t.Errorf("Expected round payout 300, got %d", payoutTotal)
	}
}

func TestSettleLosingWager(t *testing.T) {
	rs := setupTestRedis(t)
	defer rs.Close()

	ctx := context.Background()
	userID := int64(990005)
	round := newTestRound(t, rs)
	defer rs.DeleteWallet(ctx, userID)
	defer rs.DeleteRound(ctx, round.RoundNumber)
	defer rs.DeleteUserLedger(ctx, userID)

	if _, err := rs.GetWallet(ctx, userID, "loser"); err != nil {
		t.Fatalf("Failed to get wallet: %v", err)
	}
	if _, _, err := rs.PlaceWager(ctx, round.RoundNumber, userID, "loser", models.CategoryBlue, 100); err != nil {
		t.Fatalf("Failed to place wager: %v", err)
	}

	wager := &models.Wager{UserID: userID, Category: models.CategoryBlue, Amount: 100}
	applied, err := rs.SettleWager(ctx, round.RoundNumber, wager, 0)
	if err != nil {
		t.Fatalf("Failed to settle losing wager: %v", err)
	}
	if applied != 0 {
		t.Errorf("Losing wager should settle at 0, got %d", applied)
	}

	wagers, _ := rs.GetRoundWagers(ctx, round.RoundNumber)
	if len(wagers) != 1 {
		t.Fatalf("Expected 1 wager, got %d", len(wagers))
	}
	if !wagers[0].Settled || wagers[0].Payout != 0 {
		t.Errorf("Losing wager should be settled with explicit payout 0, got %+v", wagers[0])
	}

	// No payout record for a loss.
	records, _ := rs.GetUserPayouts(ctx, userID, 10)
	if len(records) != 0 {
		t.Errorf("Loss should not append payout records, got %d", len(records))
	}
}

func TestCreateRoundDuplicate(t *testing.T) {
	rs := setupTestRedis(t)
	defer rs.Close()

	ctx := context.Background()
	round := newTestRound(t, rs)
	defer rs.DeleteRound(ctx, round.RoundNumber)

	err := rs.CreateRound(ctx, &models.Round{
		RoundNumber: round.RoundNumber,
		Status:      models.RoundStatusBetting,
		CreatedAt:   time.Now().Unix(),
	})
	if !errors.Is(err, services.ErrDuplicateDriver) {
		t.Fatalf("Expected ErrDuplicateDriver on duplicate round, got %v", err)
	}
}

func TestRoundHistoryCapped(t *testing.T) {
	rs := setupTestRedis(t)
	defer rs.Close()

	ctx := context.Background()
	for i := 0; i < 15; i++ {
		if err := rs.PushRoundWinner(ctx, models.CategoryGray); err != nil {
			t.Fatalf("Failed to push winner: %v", err)
		}
	}

	history, err := rs.GetRoundHistory(ctx)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) > 10 {
		t.Errorf("History should be capped at 10, got %d", len(history))
	}
}
