package round

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	"github.com/Giorgio223/tradebull/internal/config"
	resp "github.com/Giorgio223/tradebull/internal/lib/api/response"
	"github.com/Giorgio223/tradebull/internal/lib/logger/sl"
	"github.com/Giorgio223/tradebull/internal/model"
)

type Response struct {
	resp.Response
	RoundID  int64       `json:"round_id"`
	Phase    model.Phase `json:"phase"`
	ServerMS int64       `json:"server_ms"`
	StartMS  int64       `json:"start_ms"`
	EndMS    int64       `json:"end_ms"`
	Open     float64     `json:"open"`
	Seed     *uint32     `json:"seed,omitempty"`
	Close    *float64    `json:"close,omitempty"`
	GoldMult int         `json:"gold_mult"`
	BetSec   int         `json:"bet_sec"`
	RunSec   int         `json:"run_sec"`
}

type SeriesResponse struct {
	resp.Response
	RoundID  int64       `json:"round_id"`
	Phase    model.Phase `json:"phase"`
	ServerMS int64       `json:"server_ms"`
	StartMS  int64       `json:"start_ms"`
	EndMS    int64       `json:"end_ms"`
	GoldMult int         `json:"gold_mult"`
	Points   []float64   `json:"points"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=RoundProvider
type RoundProvider interface {
	EnsureRound(ctx context.Context) (*model.RoundRecord, error)
	Series(ctx context.Context, n int) (*model.RoundRecord, []float64, error)
}

type Round struct {
	log      *slog.Logger
	provider RoundProvider
	cfg      config.Game
}

func NewRound(log *slog.Logger, provider RoundProvider, cfg config.Game) *Round {
	return &Round{
		log:      log,
		provider: provider,
		cfg:      cfg,
	}
}

// New serves the reconciled round state. Seed and close stay hidden until
// the round is DONE; the outcome is committed at creation but must not be
// readable while bets can still react to it.
func (h *Round) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.round.New"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		round, err := h.provider.EnsureRound(r.Context())
		if err != nil {
			log.Error("failed to ensure round", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to ensure round", http.StatusInternalServerError))

			return
		}

		response := Response{
			Response: resp.OK(),
			RoundID:  round.RoundID,
			Phase:    round.Phase,
			ServerMS: time.Now().UnixMilli(),
			StartMS:  round.StartMS,
			EndMS:    round.EndMS,
			Open:     round.Open,
			GoldMult: round.GoldMult,
			BetSec:   h.cfg.BetSec,
			RunSec:   h.cfg.RunSec,
		}

		if round.Phase == model.PhaseDone {
			response.Seed = &round.Seed
			response.Close = &round.Close
		}

		render.JSON(w, r, response)
	}
}

// Series serves the synthetic price path for the active round.
func (h *Round) Series() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.round.Series"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		n := 0
		if raw := r.URL.Query().Get("n"); raw != "" {
			n, _ = strconv.Atoi(raw)
		}

		round, points, err := h.provider.Series(r.Context(), n)
		if err != nil {
			log.Error("failed to build series", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to build series", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, SeriesResponse{
			Response: resp.OK(),
			RoundID:  round.RoundID,
			Phase:    round.Phase,
			ServerMS: time.Now().UnixMilli(),
			StartMS:  round.StartMS,
			EndMS:    round.EndMS,
			GoldMult: round.GoldMult,
			Points:   points,
		})
	}
}
