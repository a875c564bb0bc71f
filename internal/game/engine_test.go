package game

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"golang.org/x/exp/slog"

	"github.com/Giorgio223/tradebull/internal/config"
	"github.com/Giorgio223/tradebull/internal/model"
	"github.com/Giorgio223/tradebull/internal/storage/memstore"
)

// seedUp moves the close 1.002 above the open with no bonus, seedDown
// mirrors it below, seedGold is an up move with a x3 bonus.
const (
	seedUp   uint32 = 1501
	seedDown uint32 = 501
	seedGold uint32 = 1500
)

type fakeClock struct {
	ms int64
}

func (c *fakeClock) now() time.Time {
	return time.UnixMilli(c.ms)
}

type seedQueue struct {
	seeds []uint32
	i     int
}

func (s *seedQueue) NextSeed() (uint32, error) {
	seed := s.seeds[s.i%len(s.seeds)]
	s.i++

	return seed, nil
}

func testConfig() config.Game {
	return config.Game{
		BetSec:       7,
		RunSec:       30,
		DoneSec:      0,
		BaseOpen:     100.0,
		StartBalance: 10.0,
		InsuranceFee: 0.5,
		HistoryLimit: 50,
		SeriesPerSec: 10,
	}
}

func newTestEngine(cfg config.Game, seeds ...uint32) (*Engine, *memstore.Store, *fakeClock) {
	store := memstore.New()
	clock := &fakeClock{ms: 1_700_000_000_000}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := NewEngine(log, store, &seedQueue{seeds: seeds}, clock.now, nil, nil, cfg)

	return engine, store, clock
}

func TestEngineBootstrap(t *testing.T) {
	engine, _, clock := newTestEngine(testConfig(), seedUp)

	round, err := engine.EnsureRound(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if round.RoundID != 1 {
		t.Errorf("unexpected round id, want: 1, got: %d", round.RoundID)
	}

	if round.Phase != model.PhaseBet {
		t.Errorf("unexpected phase, want: %s, got: %s", model.PhaseBet, round.Phase)
	}

	if round.Open != 100.0 {
		t.Errorf("unexpected open, want: 100, got: %f", round.Open)
	}

	if round.Close != 101.002 {
		t.Errorf("unexpected close, want: 101.002, got: %f", round.Close)
	}

	if round.GoldMult != 0 {
		t.Errorf("unexpected gold multiplier, want: 0, got: %d", round.GoldMult)
	}

	if round.StartMS != clock.ms+7_000 {
		t.Errorf("unexpected start, want: %d, got: %d", clock.ms+7_000, round.StartMS)
	}

	if round.EndMS != clock.ms+37_000 {
		t.Errorf("unexpected end, want: %d, got: %d", clock.ms+37_000, round.EndMS)
	}
}

func TestEngineLifecycle(t *testing.T) {
	engine, _, clock := newTestEngine(testConfig(), seedUp)
	ctx := context.Background()

	round, err := engine.EnsureRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.ms = round.StartMS

	round, err = engine.EnsureRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if round.Phase != model.PhaseRun {
		t.Fatalf("unexpected phase, want: %s, got: %s", model.PhaseRun, round.Phase)
	}

	clock.ms = round.EndMS

	round, err = engine.EnsureRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// one transition per call: the settled round is still visible here
	if round.Phase != model.PhaseDone {
		t.Fatalf("unexpected phase, want: %s, got: %s", model.PhaseDone, round.Phase)
	}

	prevClose := round.Close

	next, err := engine.EnsureRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next.RoundID != 2 {
		t.Errorf("unexpected round id, want: 2, got: %d", next.RoundID)
	}

	if next.Phase != model.PhaseBet {
		t.Errorf("unexpected phase, want: %s, got: %s", model.PhaseBet, next.Phase)
	}

	if next.Open != prevClose {
		t.Errorf("next round must open at previous close, want: %f, got: %f", prevClose, next.Open)
	}
}

func TestEngineDoneDwell(t *testing.T) {
	cfg := testConfig()
	cfg.DoneSec = 3

	engine, _, clock := newTestEngine(cfg, seedUp)
	ctx := context.Background()

	round, err := engine.EnsureRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.ms = round.EndMS
	if _, err = engine.EnsureRound(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// inside the dwell window the settled round keeps being served
	clock.ms = round.EndMS + 2_999

	got, err := engine.EnsureRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.RoundID != 1 || got.Phase != model.PhaseDone {
		t.Fatalf("round must dwell in DONE, got: %d %s", got.RoundID, got.Phase)
	}

	clock.ms = round.EndMS + 3_000

	got, err = engine.EnsureRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.RoundID != 2 || got.Phase != model.PhaseBet {
		t.Fatalf("next round must open after the dwell, got: %d %s", got.RoundID, got.Phase)
	}
}

func TestPlaceBet(t *testing.T) {
	engine, _, _ := newTestEngine(testConfig(), seedUp)
	ctx := context.Background()

	placed, err := engine.PlaceBet(ctx, "u1", model.SideLong, 4.0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if placed.RoundID != 1 {
		t.Errorf("unexpected round id, want: 1, got: %d", placed.RoundID)
	}

	if placed.Balance != 6.0 {
		t.Errorf("unexpected balance, want: 6, got: %f", placed.Balance)
	}

	if placed.Fee != 0 {
		t.Errorf("unexpected fee, want: 0, got: %f", placed.Fee)
	}

	bet, err := engine.Bet(ctx, 1, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bet == nil || bet.Side != model.SideLong || bet.Amount != 4.0 {
		t.Errorf("unexpected stored bet: %+v", bet)
	}
}

func TestPlaceBetInsurance(t *testing.T) {
	engine, _, _ := newTestEngine(testConfig(), seedUp)

	placed, err := engine.PlaceBet(context.Background(), "u1", model.SideShort, 5.0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if placed.Fee != 0.5 {
		t.Errorf("unexpected fee, want: 0.5, got: %f", placed.Fee)
	}

	if placed.Balance != 4.5 {
		t.Errorf("unexpected balance, want: 4.5, got: %f", placed.Balance)
	}
}

func TestPlaceBetPhaseClosed(t *testing.T) {
	engine, _, clock := newTestEngine(testConfig(), seedUp)
	ctx := context.Background()

	round, err := engine.EnsureRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.ms = round.StartMS

	if _, err = engine.PlaceBet(ctx, "u1", model.SideLong, 4.0, false); !errors.Is(err, ErrPhaseClosed) {
		t.Fatalf("want ErrPhaseClosed, got: %v", err)
	}

	balance, err := engine.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if balance != 10.0 {
		t.Errorf("rejected bet must not touch the balance, want: 10, got: %f", balance)
	}
}

func TestPlaceBetValidation(t *testing.T) {
	cases := []struct {
		name    string
		side    model.Side
		amount  float64
		wantErr error
	}{
		{
			name:    "BadSide",
			side:    model.Side("UP"),
			amount:  1.0,
			wantErr: ErrInvalidSide,
		},
		{
			name:    "ZeroAmount",
			side:    model.SideLong,
			amount:  0,
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "NegativeAmount",
			side:    model.SideShort,
			amount:  -2.0,
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			engine, _, _ := newTestEngine(testConfig(), seedUp)

			_, err := engine.PlaceBet(context.Background(), "u1", tc.side, tc.amount, false)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestPlaceBetInsufficientBalance(t *testing.T) {
	cfg := testConfig()
	cfg.StartBalance = 3.0

	engine, _, _ := newTestEngine(cfg, seedUp)
	ctx := context.Background()

	_, err := engine.PlaceBet(ctx, "u1", model.SideLong, 5.0, true)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got: %v", err)
	}

	balance, err := engine.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if balance != 3.0 {
		t.Errorf("failed bet must not touch the balance, want: 3, got: %f", balance)
	}
}

func TestPlaceBetReplace(t *testing.T) {
	engine, _, _ := newTestEngine(testConfig(), seedUp)
	ctx := context.Background()

	if _, err := engine.PlaceBet(ctx, "u1", model.SideLong, 4.0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	placed, err := engine.PlaceBet(ctx, "u1", model.SideShort, 3.0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 10 - 4, then - 3.5 for the replacement, + 4 refunded
	if placed.Balance != 6.5 {
		t.Errorf("unexpected balance, want: 6.5, got: %f", placed.Balance)
	}

	bet, err := engine.Bet(ctx, 1, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bet == nil || bet.Side != model.SideShort || bet.Amount != 3.0 || !bet.Insurance {
		t.Errorf("replacement bet not stored: %+v", bet)
	}
}

func TestPlaceBetReplaceRejected(t *testing.T) {
	engine, _, _ := newTestEngine(testConfig(), seedUp)
	ctx := context.Background()

	if _, err := engine.PlaceBet(ctx, "u1", model.SideLong, 4.0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// balance is 6, the replacement costs 7 and must be rejected whole
	_, err := engine.PlaceBet(ctx, "u1", model.SideShort, 7.0, false)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got: %v", err)
	}

	balance, err := engine.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if balance != 6.0 {
		t.Errorf("rejected replacement must not touch the balance, want: 6, got: %f", balance)
	}

	bet, err := engine.Bet(ctx, 1, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bet == nil || bet.Side != model.SideLong || bet.Amount != 4.0 {
		t.Errorf("original bet must survive a rejected replacement: %+v", bet)
	}
}

// settleRound drives the active round through RUN and into DONE.
func settleRound(t *testing.T, engine *Engine, clock *fakeClock) *model.RoundRecord {
	t.Helper()

	ctx := context.Background()

	round, err := engine.EnsureRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.ms = round.EndMS

	if _, err = engine.EnsureRound(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done, err := engine.EnsureRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return done
}

func TestSettleWin(t *testing.T) {
	engine, _, clock := newTestEngine(testConfig(), seedUp)
	ctx := context.Background()

	if _, err := engine.PlaceBet(ctx, "u1", model.SideLong, 4.0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settleRound(t, engine, clock)

	balance, err := engine.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if balance != 14.0 {
		t.Errorf("unexpected balance, want: 14, got: %f", balance)
	}

	result, err := engine.LastResult(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result == nil {
		t.Fatal("last result must be recorded")
	}

	if !result.Win || result.Payout != 8.0 || result.RoundID != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	entries, err := engine.History(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 1 || entries[0].RoundID != 1 {
		t.Errorf("settled round must land in history: %+v", entries)
	}
}

func TestSettleGoldWin(t *testing.T) {
	engine, _, clock := newTestEngine(testConfig(), seedGold)
	ctx := context.Background()

	if _, err := engine.PlaceBet(ctx, "u1", model.SideLong, 4.0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settleRound(t, engine, clock)

	balance, err := engine.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 10 - 4 + 4*2*3
	if balance != 30.0 {
		t.Errorf("unexpected balance, want: 30, got: %f", balance)
	}

	result, err := engine.LastResult(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result == nil || result.Payout != 24.0 || result.GoldMult != 3 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestSettleInsuredLoss(t *testing.T) {
	engine, _, clock := newTestEngine(testConfig(), seedUp)
	ctx := context.Background()

	if _, err := engine.PlaceBet(ctx, "u1", model.SideShort, 4.0, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settleRound(t, engine, clock)

	balance, err := engine.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 10 - 4.5 + 4*0.5
	if balance != 7.5 {
		t.Errorf("unexpected balance, want: 7.5, got: %f", balance)
	}

	result, err := engine.LastResult(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result == nil || result.Win || result.Payout != 2.0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestSettleUninsuredLoss(t *testing.T) {
	engine, _, clock := newTestEngine(testConfig(), seedDown)
	ctx := context.Background()

	if _, err := engine.PlaceBet(ctx, "u1", model.SideLong, 4.0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settleRound(t, engine, clock)

	balance, err := engine.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if balance != 6.0 {
		t.Errorf("unexpected balance, want: 6, got: %f", balance)
	}

	result, err := engine.LastResult(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result == nil || result.Win || result.Payout != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestSettleOnce(t *testing.T) {
	engine, _, clock := newTestEngine(testConfig(), seedUp)
	ctx := context.Background()

	if _, err := engine.PlaceBet(ctx, "u1", model.SideLong, 4.0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settleRound(t, engine, clock)

	// keep reconciling past the boundary; the payout must not repeat
	for i := 0; i < 3; i++ {
		if _, err := engine.EnsureRound(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	balance, err := engine.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if balance != 14.0 {
		t.Errorf("payout must be credited exactly once, want: 14, got: %f", balance)
	}
}

func TestSettleConcurrent(t *testing.T) {
	engine, _, clock := newTestEngine(testConfig(), seedUp)
	ctx := context.Background()

	if _, err := engine.PlaceBet(ctx, "u1", model.SideLong, 4.0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	round, err := engine.EnsureRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.ms = round.StartMS
	if _, err = engine.EnsureRound(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.ms = round.EndMS

	// hammer the boundary from many goroutines; the payout and the
	// history entry must land exactly once
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 4; j++ {
				if _, err := engine.EnsureRound(ctx); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	balance, err := engine.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if balance != 14.0 {
		t.Errorf("payout must be credited exactly once, want: 14, got: %f", balance)
	}

	entries, err := engine.History(ctx, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 1 || entries[0].RoundID != 1 {
		t.Errorf("round must be settled into history exactly once: %+v", entries)
	}
}

func TestHistoryBound(t *testing.T) {
	engine, _, clock := newTestEngine(testConfig(), seedUp, seedDown)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		settleRound(t, engine, clock)

		if _, err := engine.EnsureRound(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	entries, err := engine.History(ctx, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 50 {
		t.Fatalf("history must be capped, want: 50, got: %d", len(entries))
	}

	if entries[0].RoundID != 60 {
		t.Errorf("history must be newest first, want round 60, got: %d", entries[0].RoundID)
	}

	if entries[49].RoundID != 11 {
		t.Errorf("oldest kept round must be 11, got: %d", entries[49].RoundID)
	}
}

func TestSeries(t *testing.T) {
	engine, _, _ := newTestEngine(testConfig(), seedUp)
	ctx := context.Background()

	round, pts, err := engine.Series(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pts) != 300 {
		t.Fatalf("unexpected default length, want: 300, got: %d", len(pts))
	}

	if pts[0] != round.Open || pts[len(pts)-1] != round.Close {
		t.Errorf("series endpoints must match the committed prices")
	}

	_, again, err := engine.Series(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if &again[0] != &pts[0] {
		t.Errorf("series must be memoized per round")
	}
}

func TestSeriesClampsPointCount(t *testing.T) {
	engine, _, _ := newTestEngine(testConfig(), seedUp)
	ctx := context.Background()

	round, pts, err := engine.Series(ctx, 50_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pts) != maxSeriesPoints {
		t.Fatalf("oversized request must be clamped, want: %d, got: %d", maxSeriesPoints, len(pts))
	}

	if pts[0] != round.Open || pts[len(pts)-1] != round.Close {
		t.Errorf("clamped series endpoints must match the committed prices")
	}

	_, pts, err = engine.Series(ctx, -7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pts) != 300 {
		t.Errorf("non-positive request must fall back to the default, want: 300, got: %d", len(pts))
	}
}

func TestHistoryLimitClamp(t *testing.T) {
	engine, _, clock := newTestEngine(testConfig(), seedUp)
	ctx := context.Background()

	settleRound(t, engine, clock)

	for _, limit := range []int{0, -3, 500} {
		entries, err := engine.History(ctx, limit)
		if err != nil {
			t.Fatalf("limit %d: unexpected error: %v", limit, err)
		}

		if len(entries) != 1 {
			t.Errorf("limit %d: want 1 entry, got: %d", limit, len(entries))
		}
	}
}
