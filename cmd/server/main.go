package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tableside-pos/api/internal/cart"
	"github.com/tableside-pos/api/internal/config"
	"github.com/tableside-pos/api/internal/enum"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/menu"
	"github.com/tableside-pos/api/internal/metrics"
	"github.com/tableside-pos/api/internal/orderstore"
	"github.com/tableside-pos/api/internal/postgres"
	"github.com/tableside-pos/api/internal/realtime"
	"github.com/tableside-pos/api/internal/redis"
	"github.com/tableside-pos/api/internal/redisfeed"
	"github.com/tableside-pos/api/internal/router"
	"github.com/tableside-pos/api/internal/session"
	"github.com/tableside-pos/api/internal/ws"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "tableside-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "tableside-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "api server stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	if cfg.App.MigrateOnStart {
		if err := postgres.Migrate(cfg.DB.URL); err != nil {
			return err
		}
		logg.Info(ctx, "migrations applied")
	}

	pool, err := postgres.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()
	queries := postgres.New(pool)

	var redisClient *redis.Client
	revocations := session.Revocations(session.NewMemoryRevocations())
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		revocations = session.NewRedisRevocations(redisClient)
	} else {
		logg.Warn(ctx, "redis disabled, sign outs are kept in memory")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	policy, err := orderstore.PolicyFor(cfg.Realtime.RefreshPolicy)
	if err != nil {
		return err
	}

	hub := ws.NewHub(logg)

	g, gctx := errgroup.WithContext(ctx)

	var (
		source   realtime.Source
		listener *postgres.Listener
		broker   *realtime.Broker
	)
	switch cfg.Realtime.Driver {
	case enum.RealtimeDriverRedis:
		source = redisfeed.NewSource(redisClient, logg)
	default:
		broker = realtime.NewBroker()
		listener = postgres.NewListener(pool, cfg.Realtime.ReconnectDelay, logg)
		source = broker
	}

	registry := orderstore.NewRegistry(gctx, queries, source, orderstore.Options{
		Policy:    policy,
		Logger:    logg,
		Metrics:   metrics.NewOrderMetrics(reg),
		OnRefresh: hub.OrdersChanged,
	}, cfg.Realtime.ReconnectDelay)
	defer func() {
		err = multierr.Append(err, registry.Close())
	}()

	catalog := menu.NewCatalog(queries, logg)
	selections := menu.NewSelections()
	catalog.OnLoad(selections.Reconcile)
	if err := catalog.Load(ctx); err != nil {
		logg.Warn(ctx, "menu not loaded at startup, retrying on first request")
	}

	handler := router.New(cfg, router.Deps{
		Log:        logg,
		Sessions:   session.NewManager(queries, revocations, cfg.JWT.Secret, cfg.JWT.AccessTokenTTL, logg),
		Orders:     registry,
		Catalog:    catalog,
		Selections: selections,
		Carts:      cart.NewRegistry(),
		Hub:        hub,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Ready:      pool.Ping,
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if listener != nil {
		listener.OnReconnect = registry.RefreshAll
		g.Go(func() error {
			return listener.Run(gctx, broker.Publish)
		})
	}

	g.Go(func() error {
		logg.Info(logg.WithFields(gctx, map[string]any{
			"env":    cfg.App.Env,
			"addr":   server.Addr,
			"driver": cfg.Realtime.Driver,
			"policy": cfg.Realtime.RefreshPolicy,
		}), "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
