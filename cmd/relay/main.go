// Command relay listens for order changes on Postgres and republishes them
// to per-branch Redis channels for gateways running the redis driver.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/tableside-pos/api/internal/config"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/postgres"
	"github.com/tableside-pos/api/internal/redis"
	"github.com/tableside-pos/api/internal/redisfeed"
	"go.uber.org/multierr"
)

var errRedisRequired = errors.New("relay requires TABLESIDE_REDIS_URL")

func main() {
	log := logger.New(logger.Options{ServiceName: "tableside-relay"})

	if err := godotenv.Load(); err != nil {
		log.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	log = logger.New(logger.Options{
		ServiceName: "tableside-relay",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(context.Background(), "relay stopped unexpectedly", err)
		os.Exit(1)
	}
	log.Info(context.Background(), "relay stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) (err error) {
	if !cfg.Redis.Enabled() {
		return errRedisRequired
	}

	pool, err := postgres.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, client.Close())
	}()

	publisher := redisfeed.NewPublisher(client, log)
	listener := postgres.NewListener(pool, cfg.Realtime.ReconnectDelay, log)

	log.Info(ctx, "relaying order changes to redis")
	return listener.Run(ctx, publisher.Handle)
}
