package mysqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Giorgio223/tradebull/internal/model"
	"github.com/Giorgio223/tradebull/internal/storage"
)

// Store persists the game state in mysql. The active round is the row with
// the highest round_id; a settled round's bets are deleted rather than kept.
type Store struct {
	dbhandler Handler
}

func New(dbhandler Handler) *Store {
	return &Store{dbhandler: dbhandler}
}

// Migrate creates the tables the store relies on.
func Migrate(db *sql.DB) error {
	const op = "mysqlstore.Migrate"

	statements := []string{
		`CREATE TABLE IF NOT EXISTS rounds (
			round_id BIGINT PRIMARY KEY,
			phase VARCHAR(8) NOT NULL,
			start_ms BIGINT NOT NULL,
			end_ms BIGINT NOT NULL,
			seed BIGINT UNSIGNED NOT NULL,
			open_price DOUBLE NOT NULL,
			close_price DOUBLE NOT NULL,
			gold_mult INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bets (
			round_id BIGINT NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			side VARCHAR(8) NOT NULL,
			amount DOUBLE NOT NULL,
			insurance TINYINT(1) NOT NULL,
			PRIMARY KEY (round_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS balances (
			user_id VARCHAR(64) PRIMARY KEY,
			balance DOUBLE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS last_results (
			user_id VARCHAR(64) PRIMARY KEY,
			round_id BIGINT NOT NULL,
			win TINYINT(1) NOT NULL,
			payout DOUBLE NOT NULL,
			gold_mult INT NOT NULL,
			open_price DOUBLE NOT NULL,
			close_price DOUBLE NOT NULL,
			side VARCHAR(8) NOT NULL,
			amount DOUBLE NOT NULL,
			insurance TINYINT(1) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			round_id BIGINT NOT NULL,
			open_price DOUBLE NOT NULL,
			close_price DOUBLE NOT NULL,
			gold_mult INT NOT NULL,
			ts_ms BIGINT NOT NULL
		)`,
	}

	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

func (s *Store) GetRound(_ context.Context) (*model.RoundRecord, error) {
	const op = "mysqlstore.GetRound"

	const query = "SELECT round_id, phase, start_ms, end_ms, seed, open_price, close_price, gold_mult " +
		"FROM rounds ORDER BY round_id DESC LIMIT 1"

	row, err := s.dbhandler.PrepareAndQueryRow(query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round := &model.RoundRecord{}

	err = row.Scan(&round.RoundID, &round.Phase, &round.StartMS, &round.EndMS,
		&round.Seed, &round.Open, &round.Close, &round.GoldMult)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return round, nil
}

func (s *Store) SetRound(_ context.Context, round *model.RoundRecord) error {
	const op = "mysqlstore.SetRound"

	const query = "INSERT INTO rounds(round_id, phase, start_ms, end_ms, seed, open_price, close_price, gold_mult) " +
		"VALUES(?, ?, ?, ?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE phase = VALUES(phase)"

	_, err := s.dbhandler.PrepareAndExecute(query,
		round.RoundID,
		round.Phase,
		round.StartMS,
		round.EndMS,
		round.Seed,
		round.Open,
		round.Close,
		round.GoldMult)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) GetBet(_ context.Context, roundID int64, userID string) (*model.Bet, error) {
	const op = "mysqlstore.GetBet"

	const query = "SELECT side, amount, insurance FROM bets WHERE round_id = ? AND user_id = ?"

	row, err := s.dbhandler.PrepareAndQueryRow(query, roundID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bet := &model.Bet{}

	err = row.Scan(&bet.Side, &bet.Amount, &bet.Insurance)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bet, nil
}

func (s *Store) SetBet(_ context.Context, roundID int64, userID string, bet model.Bet) error {
	const op = "mysqlstore.SetBet"

	const query = "INSERT INTO bets(round_id, user_id, side, amount, insurance) VALUES(?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE side = VALUES(side), amount = VALUES(amount), insurance = VALUES(insurance)"

	_, err := s.dbhandler.PrepareAndExecute(query, roundID, userID, bet.Side, bet.Amount, bet.Insurance)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) AllBets(_ context.Context, roundID int64) (map[string]model.Bet, error) {
	const op = "mysqlstore.AllBets"

	const query = "SELECT user_id, side, amount, insurance FROM bets WHERE round_id = ?"

	rows, err := s.dbhandler.PrepareAndQuery(query, roundID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	bets := make(map[string]model.Bet)

	for rows.Next() {
		var userID string
		bet := model.Bet{}

		if err = rows.Scan(&userID, &bet.Side, &bet.Amount, &bet.Insurance); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		bets[userID] = bet
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bets, nil
}

func (s *Store) ClearBets(_ context.Context, roundID int64) error {
	const op = "mysqlstore.ClearBets"

	const query = "DELETE FROM bets WHERE round_id = ?"

	if _, err := s.dbhandler.PrepareAndExecute(query, roundID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) GetOrInitBalance(_ context.Context, userID string, start float64) (float64, error) {
	const op = "mysqlstore.GetOrInitBalance"

	// row presence is the initialized flag; INSERT IGNORE only wins for a
	// brand-new user
	const insert = "INSERT IGNORE INTO balances(user_id, balance) VALUES(?, ?)"

	if _, err := s.dbhandler.PrepareAndExecute(insert, userID, start); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	const query = "SELECT balance FROM balances WHERE user_id = ?"

	row, err := s.dbhandler.PrepareAndQueryRow(query, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var bal float64
	if err = row.Scan(&bal); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return bal, nil
}

func (s *Store) Credit(ctx context.Context, userID string, amount float64) (float64, error) {
	const op = "mysqlstore.Credit"

	const query = "UPDATE balances SET balance = balance + ? WHERE user_id = ?"

	if _, err := s.dbhandler.PrepareAndExecute(query, amount, userID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return s.balance(userID)
}

func (s *Store) Debit(ctx context.Context, userID string, amount float64) (float64, error) {
	const op = "mysqlstore.Debit"

	// the balance guard rides in the WHERE clause so check and debit are a
	// single atomic statement
	const query = "UPDATE balances SET balance = balance - ? WHERE user_id = ? AND balance >= ?"

	res, err := s.dbhandler.PrepareAndExecute(query, amount, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	bal, err := s.balance(userID)
	if err != nil {
		return 0, err
	}

	if affected == 0 {
		return bal, storage.ErrInsufficientFunds
	}

	return bal, nil
}

func (s *Store) balance(userID string) (float64, error) {
	const op = "mysqlstore.balance"

	const query = "SELECT balance FROM balances WHERE user_id = ?"

	row, err := s.dbhandler.PrepareAndQueryRow(query, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var bal float64

	err = row.Scan(&bal)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return bal, nil
}

func (s *Store) GetLastResult(_ context.Context, userID string) (*model.LastResult, error) {
	const op = "mysqlstore.GetLastResult"

	const query = "SELECT round_id, win, payout, gold_mult, open_price, close_price, side, amount, insurance " +
		"FROM last_results WHERE user_id = ?"

	row, err := s.dbhandler.PrepareAndQueryRow(query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := &model.LastResult{}

	err = row.Scan(&result.RoundID, &result.Win, &result.Payout, &result.GoldMult,
		&result.Open, &result.Close, &result.Side, &result.Amount, &result.Insurance)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

func (s *Store) SetLastResult(_ context.Context, userID string, result model.LastResult) error {
	const op = "mysqlstore.SetLastResult"

	const query = "INSERT INTO last_results(user_id, round_id, win, payout, gold_mult, open_price, close_price, side, amount, insurance) " +
		"VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE round_id = VALUES(round_id), win = VALUES(win), payout = VALUES(payout), " +
		"gold_mult = VALUES(gold_mult), open_price = VALUES(open_price), close_price = VALUES(close_price), " +
		"side = VALUES(side), amount = VALUES(amount), insurance = VALUES(insurance)"

	_, err := s.dbhandler.PrepareAndExecute(query,
		userID,
		result.RoundID,
		result.Win,
		result.Payout,
		result.GoldMult,
		result.Open,
		result.Close,
		result.Side,
		result.Amount,
		result.Insurance)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) PushHistory(_ context.Context, entry model.HistoryEntry, limit int) error {
	const op = "mysqlstore.PushHistory"

	const insert = "INSERT INTO history(round_id, open_price, close_price, gold_mult, ts_ms) VALUES(?, ?, ?, ?, ?)"

	_, err := s.dbhandler.PrepareAndExecute(insert,
		entry.RoundID, entry.Open, entry.Close, entry.GoldMult, entry.TsMS)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// trim everything older than the newest limit rows
	const trim = "DELETE h FROM history h " +
		"LEFT JOIN (SELECT id FROM history ORDER BY id DESC LIMIT ?) keep ON h.id = keep.id " +
		"WHERE keep.id IS NULL"

	if _, err = s.dbhandler.PrepareAndExecute(trim, limit); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) History(_ context.Context, limit int) ([]model.HistoryEntry, error) {
	const op = "mysqlstore.History"

	const query = "SELECT round_id, open_price, close_price, gold_mult, ts_ms " +
		"FROM history ORDER BY id DESC LIMIT ?"

	rows, err := s.dbhandler.PrepareAndQuery(query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry

	for rows.Next() {
		entry := model.HistoryEntry{}

		if err = rows.Scan(&entry.RoundID, &entry.Open, &entry.Close, &entry.GoldMult, &entry.TsMS); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}
