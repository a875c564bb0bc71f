package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/exp/slog"

	"github.com/Giorgio223/tradebull/internal/config"
	"github.com/Giorgio223/tradebull/internal/event"
	"github.com/Giorgio223/tradebull/internal/job"
	"github.com/Giorgio223/tradebull/internal/lib/logger/sl"
	"github.com/Giorgio223/tradebull/internal/model"
	"github.com/Giorgio223/tradebull/internal/monitoring"
	"github.com/Giorgio223/tradebull/internal/storage"
)

// Clock supplies the wall-clock time the scheduler reconciles against.
type Clock func() time.Time

// Engine owns the round lifecycle: it reconciles the single active round
// against the clock on every call, settles a round exactly once when its
// run window ends, and opens the next one from the previous close.
//
// There is no background timer; progress happens lazily on inbound
// operations. The mutex is the settlement guard: the RUN to DONE
// transition and the settlement it triggers run as one critical section,
// so a concurrent caller observes the already-updated phase and never
// re-settles.
type Engine struct {
	log    *slog.Logger
	store  storage.Store
	seeds  SeedSource
	clock  Clock
	pusher event.Publisher
	jobs   job.Queue
	cfg    config.Game
	series *cache.Cache
	mu     sync.Mutex
}

func NewEngine(
	log *slog.Logger,
	store storage.Store,
	seeds SeedSource,
	clock Clock,
	pusher event.Publisher,
	jobs job.Queue,
	cfg config.Game) *Engine {
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		log:    log,
		store:  store,
		seeds:  seeds,
		clock:  clock,
		pusher: pusher,
		jobs:   jobs,
		cfg:    cfg,
		series: cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (e *Engine) nowMS() int64 {
	return e.clock().UnixMilli()
}

// EnsureRound reconciles the active round's phase against the current time
// and returns it, creating round 1 on first use. At most one transition is
// applied per invocation, so clients always get to observe DONE before the
// next round opens.
func (e *Engine) EnsureRound(ctx context.Context) (*model.RoundRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.ensureRound(ctx)
}

func (e *Engine) ensureRound(ctx context.Context) (*model.RoundRecord, error) {
	const op = "game.Engine.ensureRound"

	now := e.nowMS()

	round, err := e.store.GetRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if round == nil {
		round, err = e.openRound(ctx, 1, e.cfg.BaseOpen, now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return round, nil
	}

	switch {
	case round.Phase == model.PhaseBet && now >= round.StartMS:
		round.Phase = model.PhaseRun
		if err = e.store.SetRound(ctx, round); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		e.publish("run", round)

	case round.Phase == model.PhaseRun && now >= round.EndMS:
		// persist DONE first so a concurrent caller that slips in after the
		// lock is released sees the boundary already crossed
		round.Phase = model.PhaseDone
		if err = e.store.SetRound(ctx, round); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if err = e.settle(ctx, round); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		e.publish("settle", round)

	case round.Phase == model.PhaseDone && now >= round.EndMS+int64(e.cfg.DoneSec)*1000:
		round, err = e.openRound(ctx, round.RoundID+1, round.Close, now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return round, nil
}

func (e *Engine) openRound(ctx context.Context, roundID int64, base float64, now int64) (*model.RoundRecord, error) {
	const op = "game.Engine.openRound"

	seed, err := e.seeds.NextSeed()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	open, closePrice := OpenClose(seed, base)

	round := &model.RoundRecord{
		RoundID:  roundID,
		Phase:    model.PhaseBet,
		StartMS:  now + int64(e.cfg.BetSec)*1000,
		EndMS:    now + int64(e.cfg.BetSec+e.cfg.RunSec)*1000,
		Seed:     seed,
		Open:     open,
		Close:    closePrice,
		GoldMult: GoldMultiplier(seed),
	}

	if err = e.store.SetRound(ctx, round); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("round opened",
		slog.Int64("round_id", round.RoundID),
		slog.Int("gold_mult", round.GoldMult))

	e.publish("start", round)

	return round, nil
}

// settle pays out every bet of a just-closed round, records each user's
// last result, appends the round to history and clears the bet set. A
// failing user does not stop the remaining users from being processed.
func (e *Engine) settle(ctx context.Context, round *model.RoundRecord) error {
	const op = "game.Engine.settle"

	up := round.Close > round.Open

	bets, err := e.store.AllBets(ctx, round.RoundID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var errs error

	for userID, bet := range bets {
		win := (bet.Side == model.SideLong && up) || (bet.Side == model.SideShort && !up)

		payout := 0.0
		switch {
		case win:
			payout = bet.Amount * 2.0
			if round.GoldMult > 0 {
				payout *= float64(round.GoldMult)
			}
		case bet.Insurance:
			payout = bet.Amount * 0.5
		}

		if payout > 0 {
			if _, err = e.store.Credit(ctx, userID, payout); err != nil {
				e.log.Error("failed to credit payout", sl.String("user_id", userID), sl.Err(err))

				errs = errors.Join(errs, err)

				continue
			}

			monitoring.PayoutsTotal.Add(payout)
		}

		result := model.LastResult{
			RoundID:   round.RoundID,
			Win:       win,
			Payout:    payout,
			GoldMult:  round.GoldMult,
			Open:      round.Open,
			Close:     round.Close,
			Side:      bet.Side,
			Amount:    bet.Amount,
			Insurance: bet.Insurance,
		}

		if err = e.store.SetLastResult(ctx, userID, result); err != nil {
			e.log.Error("failed to set last result", sl.String("user_id", userID), sl.Err(err))

			errs = errors.Join(errs, err)
		}
	}

	entry := model.HistoryEntry{
		RoundID:  round.RoundID,
		Open:     round.Open,
		Close:    round.Close,
		GoldMult: round.GoldMult,
		TsMS:     e.nowMS(),
	}

	if err = e.store.PushHistory(ctx, entry, e.cfg.HistoryLimit); err != nil {
		errs = errors.Join(errs, err)
	}

	if err = e.store.ClearBets(ctx, round.RoundID); err != nil {
		errs = errors.Join(errs, err)
	}

	if errs != nil {
		return fmt.Errorf("%s: %w", op, errs)
	}

	monitoring.RoundsSettled.Inc()

	e.log.Info("round settled",
		slog.Int64("round_id", round.RoundID),
		slog.Int("bets", len(bets)),
		slog.Bool("up", up))

	return nil
}

// PlacedBet is what a successful placement hands back to the transport.
type PlacedBet struct {
	RoundID int64
	Bet     model.Bet
	Balance float64
	Fee     float64
}

// PlaceBet admits a bet for the active round while it is still in BET. A
// repeated bet for the same round replaces the first one: the new cost is
// debited before the earlier cost is refunded, so a rejected replacement
// leaves no trace.
func (e *Engine) PlaceBet(ctx context.Context, userID string, side model.Side, amount float64, insurance bool) (*PlacedBet, error) {
	const op = "game.Engine.PlaceBet"

	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.ensureRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if round.Phase != model.PhaseBet {
		return nil, ErrPhaseClosed
	}

	if !side.Valid() {
		return nil, ErrInvalidSide
	}

	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	fee := 0.0
	if insurance {
		fee = e.cfg.InsuranceFee
	}
	cost := amount + fee

	if _, err = e.store.GetOrInitBalance(ctx, userID, e.cfg.StartBalance); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	prev, err := e.store.GetBet(ctx, round.RoundID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	balance, err := e.store.Debit(ctx, userID, cost)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			return nil, ErrInsufficientBalance
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if prev != nil {
		refund := prev.Amount
		if prev.Insurance {
			refund += e.cfg.InsuranceFee
		}

		if balance, err = e.store.Credit(ctx, userID, refund); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	bet := model.Bet{
		Side:      side,
		Amount:    amount,
		Insurance: insurance,
	}

	if err = e.store.SetBet(ctx, round.RoundID, userID, bet); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	monitoring.BetsPlaced.Inc()

	e.log.Info("bet placed",
		sl.String("user_id", userID),
		slog.Int64("round_id", round.RoundID),
		slog.Any("side", side),
		slog.Float64("amount", amount))

	return &PlacedBet{
		RoundID: round.RoundID,
		Bet:     bet,
		Balance: balance,
		Fee:     fee,
	}, nil
}

// maxSeriesPoints bounds the client-requested path resolution; the request
// size drives an allocation and a cache entry, so it cannot be open-ended.
const maxSeriesPoints = 2000

// Series returns the active round together with its synthetic price path.
// Paths are memoized per round and point count; the path is pure display
// material and never feeds settlement.
func (e *Engine) Series(ctx context.Context, n int) (*model.RoundRecord, []float64, error) {
	const op = "game.Engine.Series"

	round, err := e.EnsureRound(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if n <= 0 {
		n = e.cfg.RunSec * e.cfg.SeriesPerSec
	}
	if n > maxSeriesPoints {
		n = maxSeriesPoints
	}

	key := fmt.Sprintf("%d:%d", round.RoundID, n)

	if cached, found := e.series.Get(key); found {
		return round, cached.([]float64), nil
	}

	pts := PricePath(round.Seed, round.Open, round.Close, n)
	e.series.Set(key, pts, cache.DefaultExpiration)

	return round, pts, nil
}

// Balance returns the user's balance, seeding the starting amount on the
// first access ever for that user.
func (e *Engine) Balance(ctx context.Context, userID string) (float64, error) {
	const op = "game.Engine.Balance"

	balance, err := e.store.GetOrInitBalance(ctx, userID, e.cfg.StartBalance)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return balance, nil
}

// Bet returns the user's bet for a round, nil when absent.
func (e *Engine) Bet(ctx context.Context, roundID int64, userID string) (*model.Bet, error) {
	const op = "game.Engine.Bet"

	bet, err := e.store.GetBet(ctx, roundID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bet, nil
}

// LastResult returns the user's most recent settlement outcome, nil when
// the user has never been settled.
func (e *Engine) LastResult(ctx context.Context, userID string) (*model.LastResult, error) {
	const op = "game.Engine.LastResult"

	result, err := e.store.GetLastResult(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// History returns the most recent settled rounds, newest first. The limit
// is clamped into [1, 100] and defaults to 20.
func (e *Engine) History(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	const op = "game.Engine.History"

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	entries, err := e.store.History(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

func (e *Engine) publish(name string, round *model.RoundRecord) {
	if e.pusher == nil || e.jobs == nil {
		return
	}

	message := event.Message{
		Channel: "round",
		Event:   name,
		Data: map[string]interface{}{
			"round_id":  round.RoundID,
			"phase":     round.Phase,
			"start_ms":  round.StartMS,
			"end_ms":    round.EndMS,
			"gold_mult": round.GoldMult,
		},
	}

	if round.Phase == model.PhaseDone {
		message.Data["open"] = round.Open
		message.Data["close"] = round.Close
	}

	e.jobs.Dispatch(&job.SendEventJob{EventMessage: message, Pusher: e.pusher}, 0)
}
