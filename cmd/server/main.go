package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carehub-id/api/internal/config"
	"github.com/carehub-id/api/internal/database"
	"github.com/carehub-id/api/internal/external"
	"github.com/carehub-id/api/internal/kafka"
	"github.com/carehub-id/api/internal/logging"
	"github.com/carehub-id/api/internal/metrics"
	"github.com/carehub-id/api/internal/outbox"
	"github.com/carehub-id/api/internal/retry"
	"github.com/carehub-id/api/internal/router"
	"github.com/carehub-id/api/internal/service"
	"github.com/carehub-id/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	retryCfg := retry.Config{MaxAttempts: cfg.MaxRetries}
	extOpts := external.Options{Timeout: cfg.ExternalTimeout, Retry: retryCfg, Logger: logger}
	ext := router.Externals{
		Catalog:   external.NewCatalogClient(cfg.CatalogURL, extOpts),
		Documents: external.NewDocumentClient(cfg.DocumentsURL, extOpts),
		Schedule:  external.NewScheduleClient(cfg.ScheduleURL, extOpts),
	}

	hub := ws.NewHub(logger)
	env := service.Env{
		Logger:      logger,
		Metrics:     m,
		Notifier:    hub,
		LockTimeout: cfg.LockTimeout,
		Retry:       retryCfg,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, pool, hub, ext, env),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	publisher, err := kafka.NewPublisher(kafka.NewClient(cfg.KafkaBrokers), cfg.KafkaTopic)
	switch {
	case errors.Is(err, kafka.ErrDisabled):
		logger.Info("kafka disabled, outbox events stay in the database")
	case err != nil:
		return fmt.Errorf("kafka publisher: %w", err)
	default:
		defer publisher.Close()
		relay := outbox.NewRelay(pool, func(db database.DBTX) outbox.Store {
			return database.New(db)
		}, publisher, cfg.OutboxInterval, logger, m)
		g.Go(func() error {
			relay.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
