package history

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
	Items []model.HistoryEntry `json:"items"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=HistoryProvider
type HistoryProvider interface {
	History(ctx context.Context, limit int) ([]model.HistoryEntry, error)
}

type History struct {
	log      *slog.Logger
	provider HistoryProvider
}

func NewHistory(log *slog.Logger, provider HistoryProvider) *History {
	return &History{
		log:      log,
		provider: provider,
	}
}

func (h *History) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.history.New"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		// absent stays 0 so the default applies downstream; an explicit
		// out-of-range request is clamped to the smallest valid one
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, _ = strconv.Atoi(raw)
			if limit < 1 {
				limit = 1
			}
		}

		items, err := h.provider.History(r.Context(), limit)
		if err != nil {
			log.Error("failed to get history", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to get history", http.StatusInternalServerError))

			return
		}

		if items == nil {
			items = []model.HistoryEntry{}
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Items:    items,
		})
	}
}
