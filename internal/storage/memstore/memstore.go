package memstore

import (
	"context"
	"sync"

	"github.com/Giorgio223/tradebull/internal/model"
	"github.com/Giorgio223/tradebull/internal/storage"
)

// Store keeps the whole game state in process memory. It is the default
// backend and the one the engine tests run against.
type Store struct {
	mu      sync.RWMutex
	round   *model.RoundRecord
	bets    map[int64]map[string]model.Bet
	bals    map[string]float64
	last    map[string]model.LastResult
	history []model.HistoryEntry
}

func New() *Store {
	return &Store{
		bets: make(map[int64]map[string]model.Bet),
		bals: make(map[string]float64),
		last: make(map[string]model.LastResult),
	}
}

func (s *Store) GetRound(_ context.Context) (*model.RoundRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.round == nil {
		return nil, nil
	}

	round := *s.round

	return &round, nil
}

func (s *Store) SetRound(_ context.Context, round *model.RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *round
	s.round = &copied

	return nil
}

func (s *Store) GetBet(_ context.Context, roundID int64, userID string) (*model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bet, ok := s.bets[roundID][userID]
	if !ok {
		return nil, nil
	}

	return &bet, nil
}

func (s *Store) SetBet(_ context.Context, roundID int64, userID string, bet model.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bets[roundID] == nil {
		s.bets[roundID] = make(map[string]model.Bet)
	}
	s.bets[roundID][userID] = bet

	return nil
}

func (s *Store) AllBets(_ context.Context, roundID int64) (map[string]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bets := make(map[string]model.Bet, len(s.bets[roundID]))
	for userID, bet := range s.bets[roundID] {
		bets[userID] = bet
	}

	return bets, nil
}

func (s *Store) ClearBets(_ context.Context, roundID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bets, roundID)

	return nil
}

func (s *Store) GetOrInitBalance(_ context.Context, userID string, start float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// key presence is the initialized flag: a stored 0.0 stays 0.0
	if bal, ok := s.bals[userID]; ok {
		return bal, nil
	}

	s.bals[userID] = start

	return start, nil
}

func (s *Store) Credit(_ context.Context, userID string, amount float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bals[userID] += amount

	return s.bals[userID], nil
}

func (s *Store) Debit(_ context.Context, userID string, amount float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal := s.bals[userID]
	if bal < amount {
		return bal, storage.ErrInsufficientFunds
	}

	s.bals[userID] = bal - amount

	return s.bals[userID], nil
}

func (s *Store) GetLastResult(_ context.Context, userID string) (*model.LastResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.last[userID]
	if !ok {
		return nil, nil
	}

	return &result, nil
}

func (s *Store) SetLastResult(_ context.Context, userID string, result model.LastResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last[userID] = result

	return nil
}

func (s *Store) PushHistory(_ context.Context, entry model.HistoryEntry, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append([]model.HistoryEntry{entry}, s.history...)
	if len(s.history) > limit {
		s.history = s.history[:limit]
	}

	return nil
}

func (s *Store) History(_ context.Context, limit int) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit > len(s.history) {
		limit = len(s.history)
	}

	entries := make([]model.HistoryEntry, limit)
	copy(entries, s.history[:limit])

	return entries, nil
}
