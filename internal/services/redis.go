package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"roulette-miniapp-backend/internal/config"
	"roulette-miniapp-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisService struct {
	client          *redis.Client
	startingBalance int64
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{
		client:          client,
		startingBalance: cfg.StartingBalance,
	}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// placeBetScript is the atomic bet transaction: re-read the wallet,
// verify the round is still taking bets, debit if sufficient, upsert
// the (user, round, category) wager row, and record the reason-tagged
// ledger entry. All of it commits or none of it does, and concurrent
// bets against the same wallet serialize here.
//
// KEYS: wallet, round, round wagers hash, user ledger
// ARGV: amount, category, username, now (unix), wager field, reason
var placeBetScript = redis.NewScript(`
	local wdata = redis.call("GET", KEYS[1])
	if not wdata then
		return redis.error_reply("wallet not found")
	end
	local wallet = cjson.decode(wdata)

	local rdata = redis.call("GET", KEYS[2])
	if not rdata then
		return redis.error_reply("no active betting round")
	end
	local round = cjson.decode(rdata)
	if round.status ~= "BETTING" then
		return redis.error_reply("no active betting round")
	end

	local amount = tonumber(ARGV[1])
	if wallet.balance < amount then
		return redis.error_reply("insufficient balance")
	end

	wallet.balance = wallet.balance - amount
	wallet.total_wagered = wallet.total_wagered + amount

	local wager
	local existing = redis.call("HGET", KEYS[3], ARGV[5])
	if existing then
		wager = cjson.decode(existing)
		wager.amount = wager.amount + amount
	else
		wager = {
			user_id = wallet.user_id,
			username = ARGV[3],
			category = ARGV[2],
			amount = amount,
			payout = 0,
			placed_at = tonumber(ARGV[4]),
		}
	end

	redis.call("HSET", KEYS[3], ARGV[5], cjson.encode(wager))
	redis.call("SET", KEYS[1], cjson.encode(wallet))

	local entry = cjson.encode({
		amount = -amount,
		reason = ARGV[6],
		balance_after = wallet.balance,
		created_at = tonumber(ARGV[4]),
	})
	redis.call("LPUSH", KEYS[4], entry)
	redis.call("LTRIM", KEYS[4], 0, 199)

	return {wallet.balance, wager.amount}
`)

// settleWagerScript writes a wager's payout exactly once and, for a
// winning wager, credits the wallet and appends the payout-history and
// ledger records in the same atomic step. Re-running it is a no-op so
// a driver retry cannot double-credit.
//
// KEYS: wallet, round wagers hash, user ledger, user payouts
// ARGV: wager field, payout, now (unix), reason, round number
var settleWagerScript = redis.NewScript(`
	local wdata = redis.call("HGET", KEYS[2], ARGV[1])
	if not wdata then
		return redis.error_reply("wager not found")
	end
	local wager = cjson.decode(wdata)
	if wager.settled then
		return -1
	end

	local payout = tonumber(ARGV[2])
	wager.payout = payout
	wager.settled = true
	redis.call("HSET", KEYS[2], ARGV[1], cjson.encode(wager))

	if payout > 0 then
		local data = redis.call("GET", KEYS[1])
		if not data then
			return redis.error_reply("wallet not found")
		end
		local wallet = cjson.decode(data)
		wallet.balance = wallet.balance + payout
		wallet.total_won = wallet.total_won + payout
		redis.call("SET", KEYS[1], cjson.encode(wallet))

		local entry = cjson.encode({
			amount = payout,
			reason = ARGV[4],
			balance_after = wallet.balance,
			created_at = tonumber(ARGV[3]),
		})
		redis.call("LPUSH", KEYS[3], entry)
		redis.call("LTRIM", KEYS[3], 0, 199)

		local record = cjson.encode({
			user_id = wager.user_id,
			amount = payout,
			round_number = tonumber(ARGV[5]),
			settled_at = tonumber(ARGV[3]),
		})
		redis.call("LPUSH", KEYS[4], record)
		redis.call("LTRIM", KEYS[4], 0, 99)
	end

	return payout
`)

// createRoundScript creates a round row only if no round with that
// number exists yet. The NX check is what makes a second driver
// instance fail fast instead of double-driving rounds.
//
// KEYS: round, latest-round pointer
// ARGV: round JSON, round number
var createRoundScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 1 then
		return redis.error_reply("round already exists")
	end
	redis.call("SET", KEYS[1], ARGV[1])
	redis.call("SET", KEYS[2], ARGV[2])
	return 1
`)

func mapScriptError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case strings.Contains(err.Error(), "insufficient balance"):
		return ErrInsufficientFunds
	case strings.Contains(err.Error(), "no active betting round"):
		return ErrNoOpenRound
	case strings.Contains(err.Error(), "round already exists"):
		return ErrDuplicateDriver
	case strings.Contains(err.Error(), "wager not found"):
		return ErrWagerNotFound
	}
	return err
}

// --- Wallets & ledger ---

// GetWallet returns the user's wallet, creating it with the starting
// balance on first access.
func (s *RedisService) GetWallet(ctx context.Context, userID int64, username string) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return s.CreateWalletIfAbsent(ctx, userID, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %v", err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %v", err)
	}

	return &wallet, nil
}

// CreateWalletIfAbsent writes a fresh wallet only when none exists.
// The write is NX so a first touch that lost the creation race reads
// back the winner's wallet instead of overwriting mutations that
// already committed against it.
func (s *RedisService) CreateWalletIfAbsent(ctx context.Context, userID int64, username string) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	wallet := &models.Wallet{
		UserID:   userID,
		Username: username,
		Balance:  s.startingBalance,
	}
	data, err := json.Marshal(wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal wallet: %v", err)
	}

	created, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %v", err)
	}
	if created {
		return wallet, nil
	}

	existing, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read existing wallet: %v", err)
	}

	var w models.Wallet
	if err := json.Unmarshal([]byte(existing), &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %v", err)
	}

	return &w, nil
}

func (s *RedisService) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	key := fmt.Sprintf(KeyWallet, wallet.UserID)

	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %v", err)
	}

	return s.client.Set(ctx, key, data, 0).Err()
}

// PlaceWager runs the atomic bet transaction against the given round.
// Returns the new balance and the wager row's accumulated amount.
func (s *RedisService) PlaceWager(ctx context.Context, roundNumber, userID int64, username string, category models.Category, amount int64) (int64, int64, error) {
	keys := []string{
		fmt.Sprintf(KeyWallet, userID),
		fmt.Sprintf(KeyRound, roundNumber),
		fmt.Sprintf(KeyRoundWagers, roundNumber),
		fmt.Sprintf(KeyUserLedger, userID),
	}
	reason := fmt.Sprintf("wager placed: %d on %s, round %d", amount, category, roundNumber)

	res, err := placeBetScript.Run(ctx, s.client, keys,
		amount, string(category), username, time.Now().Unix(),
		models.WagerField(userID, category), reason).Result()
	if err != nil {
		return 0, 0, mapScriptError(err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, 0, fmt.Errorf("unexpected bet script result: %v", res)
	}

	newBalance, _ := vals[0].(int64)
	wagerTotal, _ := vals[1].(int64)
	return newBalance, wagerTotal, nil
}

// SettleWager writes the payout for one wager and credits the owner if
// it won. Returns the payout applied, or -1 if the wager was already
// settled.
func (s *RedisService) SettleWager(ctx context.Context, roundNumber int64, wager *models.Wager, payout int64) (int64, error) {
	keys := []string{
		fmt.Sprintf(KeyWallet, wager.UserID),
		fmt.Sprintf(KeyRoundWagers, roundNumber),
		fmt.Sprintf(KeyUserLedger, wager.UserID),
		fmt.Sprintf(KeyUserPayouts, wager.UserID),
	}
	reason := fmt.Sprintf("round settlement: round %d, %s won", roundNumber, wager.Category)

	res, err := settleWagerScript.Run(ctx, s.client, keys,
		models.WagerField(wager.UserID, wager.Category), payout,
		time.Now().Unix(), reason, roundNumber).Int64()
	if err != nil {
		return 0, mapScriptError(err)
	}

	return res, nil
}

func (s *RedisService) GetUserLedger(ctx context.Context, userID int64, limit int64) ([]*models.LedgerEntry, error) {
	if limit <= 0 || limit > MaxLedgerEntries {
		limit = 50
	}

	key := fmt.Sprintf(KeyUserLedger, userID)
	items, err := s.client.LRange(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %v", err)
	}

	var entries []*models.LedgerEntry
	for _, item := range items {
		var entry models.LedgerEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}

func (s *RedisService) GetUserPayouts(ctx context.Context, userID int64, limit int64) ([]*models.PayoutRecord, error) {
	if limit <= 0 || limit > MaxPayoutRecords {
		limit = 50
	}

	key := fmt.Sprintf(KeyUserPayouts, userID)
	items, err := s.client.LRange(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get payout records: %v", err)
	}

	var records []*models.PayoutRecord
	for _, item := range items {
		var record models.PayoutRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			continue
		}
		records = append(records, &record)
	}

	return records, nil
}

// --- Rounds ---

// CreateRound persists a new round, failing with ErrDuplicateDriver if
// a round with the same number already exists.
func (s *RedisService) CreateRound(ctx context.Context, round *models.Round) error {
	data, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("failed to marshal round: %v", err)
	}

	keys := []string{
		fmt.Sprintf(KeyRound, round.RoundNumber),
		KeyLatestRound,
	}

	if err := createRoundScript.Run(ctx, s.client, keys, data, round.RoundNumber).Err(); err != nil {
		return mapScriptError(err)
	}

	return nil
}

func (s *RedisService) SaveRound(ctx context.Context, round *models.Round) error {
	data, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("failed to marshal round: %v", err)
	}

	key := fmt.Sprintf(KeyRound, round.RoundNumber)
	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *RedisService) GetRound(ctx context.Context, roundNumber int64) (*models.Round, error) {
	key := fmt.Sprintf(KeyRound, roundNumber)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %v", err)
	}

	var round models.Round
	if err := json.Unmarshal([]byte(data), &round); err != nil {
		return nil, fmt.Errorf("failed to unmarshal round: %v", err)
	}

	return &round, nil
}

func (s *RedisService) GetLatestRoundNumber(ctx context.Context) (int64, error) {
	n, err := s.client.Get(ctx, KeyLatestRound).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get latest round number: %v", err)
	}
	return n, nil
}

// GetOpenRound returns the unique round currently in BETTING or
// SPINNING, or nil if the latest round is completed.
func (s *RedisService) GetOpenRound(ctx context.Context) (*models.Round, error) {
	latest, err := s.GetLatestRoundNumber(ctx)
	if err != nil {
		return nil, err
	}
	if latest == 0 {
		return nil, nil
	}

	round, err := s.GetRound(ctx, latest)
	if err != nil {
		return nil, err
	}
	if round == nil || !round.Open() {
		return nil, nil
	}

	return round, nil
}

func (s *RedisService) GetRoundWagers(ctx context.Context, roundNumber int64) ([]*models.Wager, error) {
	key := fmt.Sprintf(KeyRoundWagers, roundNumber)

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get round wagers: %v", err)
	}

	var wagers []*models.Wager
	for _, data := range fields {
		var wager models.Wager
		if err := json.Unmarshal([]byte(data), &wager); err != nil {
			continue
		}
		wagers = append(wagers, &wager)
	}

	return wagers, nil
}

// GetUserRoundPayout sums the settled payouts of one user's wagers in
// a round, for the personalized result message.
func (s *RedisService) GetUserRoundPayout(ctx context.Context, userID, roundNumber int64) (int64, error) {
	wagers, err := s.GetRoundWagers(ctx, roundNumber)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, wager := range wagers {
		if wager.UserID == userID {
			total += wager.Payout
		}
	}

	return total, nil
}

// PushRoundWinner records a completed round's winning category in the
// recent-history list shown to clients.
func (s *RedisService) PushRoundWinner(ctx context.Context, category models.Category) error {
	if err := s.client.LPush(ctx, KeyRouletteLog, string(category)).Err(); err != nil {
		return fmt.Errorf("failed to push round winner: %v", err)
	}
	return s.client.LTrim(ctx, KeyRouletteLog, 0, MaxRoundHistory-1).Err()
}

func (s *RedisService) GetRoundHistory(ctx context.Context) ([]models.Category, error) {
	items, err := s.client.LRange(ctx, KeyRouletteLog, 0, MaxRoundHistory-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get round history: %v", err)
	}

	history := make([]models.Category, 0, len(items))
	for _, item := range items {
		history = append(history, models.Category(item))
	}

	return history, nil
}

// --- Users & sessions ---

// GetOrCreateUser resolves a username to a stable user identity,
// allocating a new ID on first login.
func (s *RedisService) GetOrCreateUser(ctx context.Context, username string) (*models.User, error) {
	nameKey := fmt.Sprintf(KeyUserByName, username)

	id, err := s.client.Get(ctx, nameKey).Int64()
	if err == nil {
		return s.GetUser(ctx, id)
	}
	if err != redis.Nil {
		return nil, fmt.Errorf("failed to look up user: %v", err)
	}

	id, err = s.client.Incr(ctx, KeyUserCounter).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate user id: %v", err)
	}

	user := &models.User{
		ID:        id,
		Username:  username,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.StoreUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, nameKey, id, TTLUserInfo).Err(); err != nil {
		return nil, fmt.Errorf("failed to index username: %v", err)
	}

	return user, nil
}

func (s *RedisService) StoreUser(ctx context.Context, user *models.User) error {
	key := fmt.Sprintf(KeyUserInfo, user.ID)

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, TTLUserInfo).Err()
}

func (s *RedisService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	key := fmt.Sprintf(KeyUserInfo, userID)

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var user models.User
	err = json.Unmarshal([]byte(data), &user)
	return &user, err
}

func (s *RedisService) StoreUserSession(ctx context.Context, session *models.UserSession) error {
	key := fmt.Sprintf(KeyUserSession, session.UserID, session.SessionID)

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, TTLUserSession).Err()
}

func (s *RedisService) GetUserSession(ctx context.Context, userID int64, sessionID string) (*models.UserSession, error) {
	key := fmt.Sprintf(KeyUserSession, userID, sessionID)

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var session models.UserSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}

	session.LastAccessed = time.Now()
	updatedData, _ := json.Marshal(session)
	s.client.Set(ctx, key, updatedData, TTLUserSession)

	return &session, nil
}

func (s *RedisService) DeleteUserSession(ctx context.Context, userID int64, sessionID string) error {
	key := fmt.Sprintf(KeyUserSession, userID, sessionID)
	return s.client.Del(ctx, key).Err()
}

// --- Rate limiting ---

func (s *RedisService) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearBetRateLimit(ctx context.Context, userID int64) error {
	key := fmt.Sprintf(KeyRateLimit, userID, "bet")
	return s.client.Del(ctx, key).Err()
}

// --- Test cleanup helpers ---

func (s *RedisService) DeleteWallet(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyWallet, userID)).Err()
}

func (s *RedisService) DeleteRound(ctx context.Context, roundNumber int64) error {
	return s.client.Del(ctx,
		fmt.Sprintf(KeyRound, roundNumber),
		fmt.Sprintf(KeyRoundWagers, roundNumber)).Err()
}

func (s *RedisService) DeleteUserLedger(ctx context.Context, userID int64) error {
	return s.client.Del(ctx,
		fmt.Sprintf(KeyUserLedger, userID),
		fmt.Sprintf(KeyUserPayouts, userID)).Err()
}
