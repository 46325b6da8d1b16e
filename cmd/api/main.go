package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bridge/internal/api/http"
	"github.com/spec-kit/ticket-bridge/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bridge/internal/cli"
	"github.com/spec-kit/ticket-bridge/internal/command"
	"github.com/spec-kit/ticket-bridge/internal/config"
	"github.com/spec-kit/ticket-bridge/internal/events"
	"github.com/spec-kit/ticket-bridge/internal/ingest"
	"github.com/spec-kit/ticket-bridge/internal/media"
	"github.com/spec-kit/ticket-bridge/internal/observability"
	"github.com/spec-kit/ticket-bridge/internal/persistence"
	"github.com/spec-kit/ticket-bridge/internal/registry"
	"github.com/spec-kit/ticket-bridge/internal/repository"
	"github.com/spec-kit/ticket-bridge/internal/service"
	"github.com/spec-kit/ticket-bridge/internal/transport"
	"github.com/spec-kit/ticket-bridge/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	reg := registry.New()
	snapshot := persistence.NewSnapshotStore(cfg.Snapshot.Path)

	syncDeps := service.SyncDependencies{
		Snapshot: snapshot,
		Registry: reg,
		Timeout:  cfg.Store.Timeout(),
		Logger:   logger,
		Metrics:  metrics,
	}
	if pool := pg.PoolHandle(); pool != nil {
		syncDeps.TicketRepo = repository.NewTicketRepository(pool)
		syncDeps.MessageRepo = repository.NewMessageRepository(pool)
	}
	synchronizer := service.NewSynchronizer(syncDeps)
	synchronizer.LoadAll(ctx)

	transcoder := media.NewTranscoder(cfg.Media, logger)
	downloader := media.NewDownloader(&http.Client{Timeout: cfg.GreenAPI.Timeout()}, cfg.Media.TempDir)
	sender := transport.NewClient(cfg.GreenAPI, logger)

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, metrics)
	worker.StartNotificationWorker(notificationService)

	engine := service.NewEngine(service.EngineDependencies{
		Registry:   reg,
		Sync:       synchronizer,
		Sender:     sender,
		Transcoder: transcoder,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})

	classifier := ingest.NewClassifier(downloader, transcoder, logger, metrics)
	deduper := ingest.NewReceiptDeduper(redis.Client, 24*time.Hour, logger)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name + " " + cfg.App.Version,
		BodyLimit: 64 * 1024 * 1024,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(pg, redis),
		Webhook: handlers.NewWebhookHandler(classifier, deduper, engine, logger),
		Tickets: handlers.NewTicketsHandler(engine, cfg.Media.TempDir),
	})

	if cfg.App.Env == "development" {
		interpreter := command.NewInterpreter(engine, events.OriginTerminal)
		terminal := cli.NewTerminal(interpreter, os.Stdin, os.Stdout, logger)
		go terminal.Run(ctx)
	}

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
