package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/mc-fdc-dev/modmail/internal/api/http"
	"github.com/mc-fdc-dev/modmail/internal/api/http/handlers"
	"github.com/mc-fdc-dev/modmail/internal/auth"
	"github.com/mc-fdc-dev/modmail/internal/config"
	"github.com/mc-fdc-dev/modmail/internal/discord"
	"github.com/mc-fdc-dev/modmail/internal/events"
	"github.com/mc-fdc-dev/modmail/internal/locale"
	"github.com/mc-fdc-dev/modmail/internal/mirror"
	"github.com/mc-fdc-dev/modmail/internal/observability"
	"github.com/mc-fdc-dev/modmail/internal/persistence"
	"github.com/mc-fdc-dev/modmail/internal/repository"
	"github.com/mc-fdc-dev/modmail/internal/service"
	"github.com/mc-fdc-dev/modmail/internal/worker"
)

const (
	feedBuffer      = 256
	shutdownTimeout = 10 * time.Second
)

func runCmd() *cobra.Command {
	var skipRegister bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the gateway and relay messages until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, skipRegister)
		},
	}
	cmd.Flags().BoolVar(&skipRegister, "skip-register", false, "do not overwrite the slash command set on startup")
	return cmd
}

func run(ctx context.Context, skipRegister bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect postgres", zap.Error(err))
		return err
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Error("failed to run migrations", zap.Error(err))
			return err
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	client := discord.NewClient(session)
	feed := discord.NewFeed(session, feedBuffer)

	metrics := observability.NewMetrics()
	m := mirror.New(logger)
	dispatcher := events.NewInMemoryDispatcher(events.DispatcherOptions{
		Mirror:  m,
		Logger:  logger,
		Metrics: metrics,
	})

	var eventRepo repository.TicketEventRepository
	if pg.Enabled() {
		eventRepo = repository.NewTicketEventRepository(pg.PoolHandle())
	}
	locker, pending := ticketCoordination(redis, cfg.Ticket)

	lookup := service.NewTicketLookup(m, cfg.Workspace)
	tickets := service.NewTicketService(service.TicketDependencies{
		Lookup:      lookup,
		Provisioner: service.NewTicketProvisioner(client, cfg.Workspace),
		Locker:      locker,
		Pending:     pending,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
	})
	audit := service.NewAuditService(dispatcher, eventRepo, logger)

	worker.StartRelayWorker(dispatcher, worker.RelayWorkerDependencies{
		Relay: service.NewRelayService(service.RelayDependencies{
			Tickets:    tickets,
			Lookup:     lookup,
			Sender:     client,
			Channels:   m,
			Workspace:  cfg.Workspace,
			Dispatcher: dispatcher,
			Logger:     logger,
			Metrics:    metrics,
		}),
		Commands: service.NewCommandService(service.CommandDependencies{
			Lookup:     lookup,
			Tickets:    tickets,
			Sender:     client,
			Responder:  client,
			Deleter:    client,
			Moderator:  client,
			Latency:    client,
			Catalog:    locale.NewCatalog(cfg.Workspace.Locale),
			Workspace:  cfg.Workspace,
			Dispatcher: dispatcher,
			Logger:     logger,
			Metrics:    metrics,
		}),
		Tickets: tickets,
		Audit:   audit,
		Logger:  logger,
	})

	if err := feed.Open(); err != nil {
		logger.Error("failed to open gateway", zap.Error(err))
		return err
	}
	defer feed.Close() //nolint:errcheck

	if !skipRegister {
		if registered, err := client.RegisterCommands(ctx); err != nil {
			logger.Warn("failed to register commands", zap.Error(err))
		} else {
			logger.Info("commands registered", zap.Int("count", len(registered)))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx, feed)
	})

	if cfg.App.HTTPEnabled {
		authService := service.NewAuthService(cfg.Auth)
		app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout(), httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, m, pg, redis),
			Metrics:        handlers.NewMetricsHandler(metrics),
			Admin:          handlers.NewAdminHandler(authService, lookup, audit),
			AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
		})
		g.Go(func() error {
			logger.Info("admin api listening", zap.String("addr", cfg.App.Addr()))
			return app.Listen(cfg.App.Addr())
		})
		g.Go(func() error {
			<-gctx.Done()
			return app.ShutdownWithTimeout(shutdownTimeout)
		})
	}

	err = g.Wait()
	logger.Info("shutting down")
	dispatcher.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func ticketCoordination(redis *persistence.Redis, cfg config.TicketConfig) (service.TicketLocker, service.PendingTicketStore) {
	if redis.Enabled() {
		return persistence.NewRedisLocker(redis, cfg.ProvisionLockTTL()), persistence.NewRedisPendingStore(redis, cfg.PendingTTL())
	}
	return persistence.LocalLocker{}, persistence.NewMemoryPendingStore(cfg.PendingTTL())
}
