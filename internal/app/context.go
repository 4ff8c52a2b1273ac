package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/jeffschecter/Signal/internal/cache"
	"github.com/jeffschecter/Signal/internal/repository"
)

// AppContext holds shared dependencies (DB, unit of work, Redis, Logger)
type AppContext struct {
	DB         *gorm.DB
	Store      *repository.Store
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
}

// New creates a new AppContext. maxRetries bounds how often a conflicting
// transaction is re-run.
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, maxRetries int) *AppContext {
	return &AppContext{
		DB:         db,
		Store:      repository.NewStore(db, maxRetries),
		RedisCache: rdb,
		Logger:     logger,
	}
}
