package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oggyb/muzz-matchmaker/internal/app"
	"github.com/oggyb/muzz-matchmaker/internal/broker"
	"github.com/oggyb/muzz-matchmaker/internal/cache"
	"github.com/oggyb/muzz-matchmaker/internal/config"
	"github.com/oggyb/muzz-matchmaker/internal/db"
	"github.com/oggyb/muzz-matchmaker/internal/dispatcher"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/metrics"
	"github.com/oggyb/muzz-matchmaker/internal/server"
	"github.com/oggyb/muzz-matchmaker/internal/service/feed"
	"github.com/oggyb/muzz-matchmaker/internal/service/files"
	"github.com/oggyb/muzz-matchmaker/internal/service/interaction"
	"github.com/oggyb/muzz-matchmaker/internal/service/refill"
	"github.com/oggyb/muzz-matchmaker/internal/service/registration"
	"github.com/oggyb/muzz-matchmaker/internal/service/scoring"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "consumer",
	Short:        "Consumes user messages and keeps candidate queues filled",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().Int("prefetch", 10, "max unacknowledged deliveries per consumer")
	rootCmd.Flags().Int("workers", 1, "number of concurrent dispatcher workers")
	rootCmd.Flags().Int("limit", 5, "candidates stored per refill")
}

// run wires config → logger → DB → Redis → broker → services → dispatcher and
// blocks until ctx is cancelled or a component fails.
func run(ctx context.Context, cfg *config.Config) error {
	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return err
	}
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return err
	}
	defer redisCache.Close()

	// Init broker
	b, err := broker.Dial(cfg, log)
	if err != nil {
		log.Error("failed to connect to broker", "err", err)
		return err
	}
	defer b.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	appCtx := app.New(cfg, database, redisCache, b, m, log)

	requester := refill.NewRequester(appCtx)
	services := dispatcher.Services{
		Interactions: interaction.NewService(appCtx, requester),
		Feed:         feed.NewService(appCtx, requester),
		Registration: registration.NewService(appCtx, requester),
		Files:        files.NewService(appCtx),
		Scoring:      scoring.NewEngine(appCtx),
	}
	d := dispatcher.New(appCtx, services.Routes())

	checker := server.NewChecker(map[string]server.Pinger{
		"db":     server.PingerFunc(sqlDB.PingContext),
		"redis":  redisCache,
		"broker": b,
	}, cfg.Health.Interval, log)

	deliveries, err := b.Consume(cfg.Consumer.Prefetch, cfg.Consumer.Tag)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return requester.Run(ctx) })
	g.Go(func() error { return checker.Run(ctx) })
	g.Go(func() error {
		addr := cfg.GRPC.Host + ":" + cfg.GRPC.Port
		log.Info("starting gRPC health server", "addr", addr)
		return server.StartGRPCServer(ctx, cfg, server.NewHealthRegistrar(checker))
	})
	g.Go(func() error {
		log.Info("starting HTTP server", "addr", cfg.HTTP.Addr)
		return server.StartHTTPServer(ctx, cfg.HTTP.Addr, server.NewHTTPHandler(checker, reg))
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr, ok := <-b.NotifyClose():
			if !ok {
				return nil
			}
			return fmt.Errorf("broker connection closed: %w", amqpErr)
		}
	})
	g.Go(func() error {
		log.Info("consumer started", "queue", cfg.Broker.Queue, "prefetch", cfg.Consumer.Prefetch, "workers", cfg.Consumer.Workers)
		return d.Run(ctx, deliveries, cfg.Consumer.Workers)
	})

	err = g.Wait()
	log.Info("consumer stopped", "err", err)
	return err
}
