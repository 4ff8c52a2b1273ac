package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeffschecter/Signal/internal/app"
	"github.com/jeffschecter/Signal/internal/cache"
	"github.com/jeffschecter/Signal/internal/config"
	"github.com/jeffschecter/Signal/internal/db"
	"github.com/jeffschecter/Signal/internal/logger"
	"github.com/jeffschecter/Signal/internal/metrics"
	"github.com/jeffschecter/Signal/internal/seed"
	"github.com/jeffschecter/Signal/internal/server"
	signalsvc "github.com/jeffschecter/Signal/internal/service/signal"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer
	defer logger.Flush(2 * time.Second)

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	// Inject logger into app context
	appCtx := app.New(database, redisCache, log, cfg.DB.MaxRetries)

	metrics.MustRegister()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("serving metrics", "addr", cfg.Metrics.Addr)
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "err", err)
		}
	}()

	if cfg.App.ENV == "development" {
		n, err := seed.Run(context.Background(), database, signalsvc.NewSignalService(appCtx), cfg.Seed.Users, db.NowFunc())
		if err != nil {
			log.Error("failed to seed", "err", err)
		} else {
			log.Info("seeded development data", "users", n)
		}
	}

	registrars := []server.Registrar{
		signalsvc.NewRegistrar(appCtx, signalsvc.OptionsFromConfig(cfg)...),
	}

	addr := cfg.GRPC.Host + ":" + cfg.GRPC.Port
	log.Info("starting gRPC server", "addr", addr)

	if err := server.StartGRPCServer(cfg, log, registrars...); err != nil {
		log.Error("failed to start gRPC server", "err", err)
	}
}
