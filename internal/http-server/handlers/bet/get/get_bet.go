package get_bet

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	resp "github.com/Giorgio223/tradebull/internal/lib/api/response"
	"github.com/Giorgio223/tradebull/internal/lib/logger/sl"
	"github.com/Giorgio223/tradebull/internal/model"
)

type Response struct {
	resp.Response
	RoundID int64      `json:"round_id"`
	Bet     *model.Bet `json:"bet"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=BetGetter
type BetGetter interface {
	EnsureRound(ctx context.Context) (*model.RoundRecord, error)
	Bet(ctx context.Context, roundID int64, userID string) (*model.Bet, error)
}

type Bet struct {
	log       *slog.Logger
	betGetter BetGetter
}

func NewBet(log *slog.Logger, betGetter BetGetter) *Bet {
	return &Bet{
		log:       log,
		betGetter: betGetter,
	}
}

// Mine returns the caller's bet for the active round.
func (b *Bet) Mine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bet.get.Mine"

		log := b.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			render.JSON(w, r, resp.Error("user_id is required", http.StatusBadRequest))

			return
		}

		round, err := b.betGetter.EnsureRound(r.Context())
		if err != nil {
			log.Error("failed to ensure round", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to ensure round", http.StatusInternalServerError))

			return
		}

		b.respond(w, r, log, round.RoundID, userID)
	}
}

// OfRound returns the caller's bet for an explicit round.
func (b *Bet) OfRound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bet.get.OfRound"

		log := b.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			render.JSON(w, r, resp.Error("user_id is required", http.StatusBadRequest))

			return
		}

		roundID, err := strconv.ParseInt(r.URL.Query().Get("round_id"), 10, 64)
		if err != nil {
			render.JSON(w, r, resp.Error("round_id must be an integer", http.StatusBadRequest))

			return
		}

		b.respond(w, r, log, roundID, userID)
	}
}

func (b *Bet) respond(w http.ResponseWriter, r *http.Request, log *slog.Logger, roundID int64, userID string) {
	bet, err := b.betGetter.Bet(r.Context(), roundID, userID)
	if err != nil {
		log.Error("failed to get bet", sl.Err(err))

		render.JSON(w, r, resp.Error("failed to get bet", http.StatusInternalServerError))

		return
	}

	render.JSON(w, r, Response{
		Response: resp.OK(),
		RoundID:  roundID,
		Bet:      bet,
	})
}
