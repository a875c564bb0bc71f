package place_bet

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"github.com/Giorgio223/tradebull/internal/game"
	resp "github.com/Giorgio223/tradebull/internal/lib/api/response"
	"github.com/Giorgio223/tradebull/internal/lib/logger/sl"
	"github.com/Giorgio223/tradebull/internal/model"
)

type Request struct {
	UserID    string  `json:"user_id" validate:"required"`
	Side      string  `json:"side" validate:"required,oneof=LONG SHORT"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Insurance bool    `json:"insurance"`
}

type Response struct {
	resp.Response
	RoundID      int64     `json:"round_id"`
	Balance      float64   `json:"balance"`
	Bet          model.Bet `json:"bet"`
	InsuranceFee float64   `json:"insurance_fee"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=BetPlacer
type BetPlacer interface {
	PlaceBet(ctx context.Context, userID string, side model.Side, amount float64, insurance bool) (*game.PlacedBet, error)
}

type Bet struct {
	log       *slog.Logger
	validator *validator.Validate
	betPlacer BetPlacer
}

func NewBet(log *slog.Logger, betPlacer BetPlacer) *Bet {
	return &Bet{
		log:       log,
		validator: validator.New(),
		betPlacer: betPlacer,
	}
}

func (b *Bet) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bet.save.New"

		var (
			err    error
			req    Request
			log    *slog.Logger
			placed *game.PlacedBet
		)

		log = b.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if err = render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		log.Info("request body decoded", slog.Any("request", req))

		if err = b.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		placed, err = b.betPlacer.PlaceBet(r.Context(), req.UserID, model.Side(req.Side), req.Amount, req.Insurance)
		if err != nil {
			switch {
			case errors.Is(err, game.ErrPhaseClosed),
				errors.Is(err, game.ErrInvalidSide),
				errors.Is(err, game.ErrInvalidAmount),
				errors.Is(err, game.ErrInsufficientBalance):
				log.Info("bet rejected", sl.Err(err))

				render.JSON(w, r, resp.Error(err.Error(), http.StatusBadRequest))
			default:
				log.Error("failed to place bet", sl.Err(err))

				render.JSON(w, r, resp.Error("failed to place bet", http.StatusInternalServerError))
			}

			return
		}

		log.Info("bet placed", sl.Int64("round_id", placed.RoundID))

		render.JSON(w, r, Response{
			Response:     resp.OK(),
			RoundID:      placed.RoundID,
			Balance:      placed.Balance,
			Bet:          placed.Bet,
			InsuranceFee: placed.Fee,
		})
	}
}
