package result

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	resp "github.com/Giorgio223/tradebull/internal/lib/api/response"
	"github.com/Giorgio223/tradebull/internal/lib/logger/sl"
	"github.com/Giorgio223/tradebull/internal/model"
)

type Response struct {
	resp.Response
	Result *model.LastResult `json:"result"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=ResultProvider
type ResultProvider interface {
	LastResult(ctx context.Context, userID string) (*model.LastResult, error)
}

type Result struct {
	log      *slog.Logger
	provider ResultProvider
}

func NewResult(log *slog.Logger, provider ResultProvider) *Result {
	return &Result{
		log:      log,
		provider: provider,
	}
}

func (h *Result) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.user.result.New"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			render.JSON(w, r, resp.Error("user_id is required", http.StatusBadRequest))

			return
		}

		result, err := h.provider.LastResult(r.Context(), userID)
		if err != nil {
			log.Error("failed to get last result", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to get last result", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Result:   result,
		})
	}
}
