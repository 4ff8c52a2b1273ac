package main

import (
	"context"
	"os"

	"github.com/jeffschecter/Signal/internal/app"
	"github.com/jeffschecter/Signal/internal/config"
	"github.com/jeffschecter/Signal/internal/db"
	"github.com/jeffschecter/Signal/internal/logger"
	"github.com/jeffschecter/Signal/internal/seed"
	signalsvc "github.com/jeffschecter/Signal/internal/service/signal"
)

func main() {
	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// No cache: a fresh seed has nothing to invalidate.
	appCtx := app.New(database, nil, log, cfg.DB.MaxRetries)
	n, err := seed.Run(context.Background(), database, signalsvc.NewSignalService(appCtx), cfg.Seed.Users, db.NowFunc())
	if err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	log.Info("Seeding completed.", "users", n)
}
