package storage

import (
	"context"
	"errors"

	"github.com/Giorgio223/tradebull/internal/model"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
)

// Store is the state backend behind the engine: the active round blob, the
// per-round bet set, per-user balances and last results, and the bounded
// round history. All mutations on a single balance are atomic relative to
// each other.
//
//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=Store
type Store interface {
	GetRound(ctx context.Context) (*model.RoundRecord, error)
	SetRound(ctx context.Context, round *model.RoundRecord) error

	GetBet(ctx context.Context, roundID int64, userID string) (*model.Bet, error)
	SetBet(ctx context.Context, roundID int64, userID string, bet model.Bet) error
	AllBets(ctx context.Context, roundID int64) (map[string]model.Bet, error)
	ClearBets(ctx context.Context, roundID int64) error

	// GetOrInitBalance seeds start for a user seen for the first time and
	// returns the stored balance otherwise, including a genuine zero.
	GetOrInitBalance(ctx context.Context, userID string, start float64) (float64, error)
	Credit(ctx context.Context, userID string, amount float64) (float64, error)
	// Debit fails with ErrInsufficientFunds when the stored balance is
	// below amount, leaving the balance untouched.
	Debit(ctx context.Context, userID string, amount float64) (float64, error)

	GetLastResult(ctx context.Context, userID string) (*model.LastResult, error)
	SetLastResult(ctx context.Context, userID string, result model.LastResult) error

	PushHistory(ctx context.Context, entry model.HistoryEntry, limit int) error
	History(ctx context.Context, limit int) ([]model.HistoryEntry, error)
}
