package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-matchmaker/internal/broker"
	"github.com/oggyb/muzz-matchmaker/internal/cache"
	"github.com/oggyb/muzz-matchmaker/internal/config"
	"github.com/oggyb/muzz-matchmaker/internal/metrics"
)

// AppContext holds shared dependencies (DB, Redis, broker, metrics, Logger)
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Publisher  broker.Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// New creates a new AppContext
func New(
	cfg *config.Config,
	db *gorm.DB,
	rdb *cache.RedisCache,
	pub broker.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AppContext {
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Publisher:  pub,
		Metrics:    m,
		Logger:     logger,
	}
}
