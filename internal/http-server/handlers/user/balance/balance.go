package balance

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	resp "github.com/Giorgio223/tradebull/internal/lib/api/response"
	"github.com/Giorgio223/tradebull/internal/lib/logger/sl"
)

type Response struct {
	resp.Response
	UserID  string  `json:"user_id"`
	Balance float64 `json:"balance"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=BalanceProvider
type BalanceProvider interface {
	Balance(ctx context.Context, userID string) (float64, error)
}

type Balance struct {
	log      *slog.Logger
	provider BalanceProvider
}

func NewBalance(log *slog.Logger, provider BalanceProvider) *Balance {
	return &Balance{
		log:      log,
		provider: provider,
	}
}

// New returns the user's balance, seeding a starting balance for a user
// seen for the first time. A missing user_id provisions a fresh identity.
func (b *Balance) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.user.balance.New"

		log := b.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			userID = uuid.New().String()

			log.Info("provisioned user", sl.String("user_id", userID))
		}

		bal, err := b.provider.Balance(r.Context(), userID)
		if err != nil {
			log.Error("failed to get balance", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to get balance", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			UserID:   userID,
			Balance:  bal,
		})
	}
}
