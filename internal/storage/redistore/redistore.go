package redistore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Giorgio223/tradebull/internal/model"
	"github.com/Giorgio223/tradebull/internal/storage"
)

const prefix = "tb:"

const (
	keyState   = prefix + "state"
	keyHistory = prefix + "history"
)

// debitScript checks and debits a balance in one atomic step so a
// concurrent settlement credit cannot be lost between read and write.
var debitScript = redis.NewScript(`
local bal = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if bal < amount then
	return {0, tostring(bal)}
end
local after = redis.call('INCRBYFLOAT', KEYS[1], '-' .. ARGV[1])
return {1, after}
`)

// Store keeps the game state in redis, one key per concern: the round blob,
// a hash of bets per round, scalar balance and last-result keys per user,
// and the history as a trimmed list.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redistore.Connect: %w", err)
	}

	return rdb, nil
}

func balKey(userID string) string {
	return prefix + "bal:" + userID
}

func betsKey(roundID int64) string {
	return fmt.Sprintf("%sbets:%d", prefix, roundID)
}

func lastKey(userID string) string {
	return prefix + "last:" + userID
}

func (s *Store) GetRound(ctx context.Context) (*model.RoundRecord, error) {
	const op = "redistore.GetRound"

	raw, err := s.rdb.Get(ctx, keyState).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round := &model.RoundRecord{}
	if err = json.Unmarshal(raw, round); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return round, nil
}

func (s *Store) SetRound(ctx context.Context, round *model.RoundRecord) error {
	const op = "redistore.SetRound"

	raw, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = s.rdb.Set(ctx, keyState, raw, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) GetBet(ctx context.Context, roundID int64, userID string) (*model.Bet, error) {
	const op = "redistore.GetBet"

	raw, err := s.rdb.HGet(ctx, betsKey(roundID), userID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bet := &model.Bet{}
	if err = json.Unmarshal(raw, bet); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bet, nil
}

func (s *Store) SetBet(ctx context.Context, roundID int64, userID string, bet model.Bet) error {
	const op = "redistore.SetBet"

	raw, err := json.Marshal(bet)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = s.rdb.HSet(ctx, betsKey(roundID), userID, raw).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) AllBets(ctx context.Context, roundID int64) (map[string]model.Bet, error) {
	const op = "redistore.AllBets"

	raw, err := s.rdb.HGetAll(ctx, betsKey(roundID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bets := make(map[string]model.Bet, len(raw))
	for userID, value := range raw {
		bet := model.Bet{}
		if err = json.Unmarshal([]byte(value), &bet); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		bets[userID] = bet
	}

	return bets, nil
}

func (s *Store) ClearBets(ctx context.Context, roundID int64) error {
	const op = "redistore.ClearBets"

	if err := s.rdb.Del(ctx, betsKey(roundID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) GetOrInitBalance(ctx context.Context, userID string, start float64) (float64, error) {
	const op = "redistore.GetOrInitBalance"

	// SETNX is the initialized flag: it only wins for a brand-new user
	created, err := s.rdb.SetNX(ctx, balKey(userID), formatBalance(start), 0).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if created {
		return start, nil
	}

	raw, err := s.rdb.Get(ctx, balKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	bal, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return bal, nil
}

func (s *Store) Credit(ctx context.Context, userID string, amount float64) (float64, error) {
	const op = "redistore.Credit"

	bal, err := s.rdb.IncrByFloat(ctx, balKey(userID), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return bal, nil
}

func (s *Store) Debit(ctx context.Context, userID string, amount float64) (float64, error) {
	const op = "redistore.Debit"

	res, err := debitScript.Run(ctx, s.rdb, []string{balKey(userID)}, formatBalance(amount)).Slice()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("%s: unexpected script reply", op)
	}

	ok, _ := res[0].(int64)

	bal, err := strconv.ParseFloat(res[1].(string), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if ok == 0 {
		return bal, storage.ErrInsufficientFunds
	}

	return bal, nil
}

func (s *Store) GetLastResult(ctx context.Context, userID string) (*model.LastResult, error) {
	const op = "redistore.GetLastResult"

	raw, err := s.rdb.Get(ctx, lastKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := &model.LastResult{}
	if err = json.Unmarshal(raw, result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

func (s *Store) SetLastResult(ctx context.Context, userID string, result model.LastResult) error {
	const op = "redistore.SetLastResult"

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = s.rdb.Set(ctx, lastKey(userID), raw, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) PushHistory(ctx context.Context, entry model.HistoryEntry, limit int) error {
	const op = "redistore.PushHistory"

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, keyHistory, raw)
	pipe.LTrim(ctx, keyHistory, 0, int64(limit-1))

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) History(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	const op = "redistore.History"

	raw, err := s.rdb.LRange(ctx, keyHistory, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries := make([]model.HistoryEntry, 0, len(raw))
	for _, value := range raw {
		entry := model.HistoryEntry{}
		if err = json.Unmarshal([]byte(value), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func formatBalance(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
