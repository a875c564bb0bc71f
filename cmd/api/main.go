package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	"github.com/Giorgio223/tradebull/internal/config"
	"github.com/Giorgio223/tradebull/internal/game"
	get_bet "github.com/Giorgio223/tradebull/internal/http-server/handlers/bet/get"
	place_bet "github.com/Giorgio223/tradebull/internal/http-server/handlers/bet/save"
	"github.com/Giorgio223/tradebull/internal/http-server/handlers/history"
	"github.com/Giorgio223/tradebull/internal/http-server/handlers/round"
	"github.com/Giorgio223/tradebull/internal/http-server/handlers/user/balance"
	"github.com/Giorgio223/tradebull/internal/http-server/handlers/user/result"
	mwlogger "github.com/Giorgio223/tradebull/internal/http-server/middleware/logger"
	"github.com/Giorgio223/tradebull/internal/job"
	resp "github.com/Giorgio223/tradebull/internal/lib/api/response"
	"github.com/Giorgio223/tradebull/internal/lib/logger/handler/slogpretty"
	"github.com/Giorgio223/tradebull/internal/lib/logger/sl"
	"github.com/Giorgio223/tradebull/internal/monitoring"
	"github.com/Giorgio223/tradebull/internal/storage"
	"github.com/Giorgio223/tradebull/internal/storage/memstore"
	"github.com/Giorgio223/tradebull/internal/storage/mysqlstore"
	"github.com/Giorgio223/tradebull/internal/storage/redistore"
	wshandler "github.com/Giorgio223/tradebull/internal/ws/handler"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting tradebull", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	store, err := buildStore(cfg)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	monitoring.Init()
	monitoring.StartMetricsServer(cfg.Metrics.Port, func(ctx context.Context) error {
		_, err := store.GetRound(ctx)
		return err
	})

	jobs := job.NewQueue(100)
	pool := job.NewWorkerPool(4, jobs)
	pool.Start()

	hub := wshandler.NewHub(log)
	go hub.Run()

	engine := game.NewEngine(log, store, game.CryptoSeedSource{}, nil, hub, jobs, cfg.Game)

	roundHandler := round.NewRound(log, engine, cfg.Game)
	betSave := place_bet.NewBet(log, engine)
	betGet := get_bet.NewBet(log, engine)
	userBalance := balance.NewBalance(log, engine)
	lastResult := result.NewResult(log, engine)
	roundHistory := history.NewHistory(log, engine)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mwlogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, resp.OK())
	})
	router.Get("/round", roundHandler.New())
	router.Get("/series", roundHandler.Series())
	router.Post("/bet", betSave.New())
	router.Get("/mybet", betGet.Mine())
	router.Get("/bet_of_round", betGet.OfRound())
	router.Get("/balance", userBalance.New())
	router.Get("/init", userBalance.New())
	router.Get("/last_result", lastResult.New())
	router.Get("/history", roundHistory.New())
	router.Get("/ws", hub.HandleConnection)

	log.Info("server started", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if err = srv.ListenAndServe(); err != nil {
		log.Error("server failed", sl.Err(err))
	}

	log.Error("server stopped")
}

func buildStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "redis":
		rdb, err := redistore.Connect(context.Background(), cfg.Storage.RedisAddr)
		if err != nil {
			return nil, err
		}

		return redistore.New(rdb), nil
	case "mysql":
		db, err := mysqlstore.Open(cfg.Storage.MySQLDSN)
		if err != nil {
			return nil, err
		}

		if err = mysqlstore.Migrate(db); err != nil {
			return nil, err
		}

		return mysqlstore.New(*mysqlstore.NewHandler(db)), nil
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlogLogger()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

func setupPrettySlogLogger() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
