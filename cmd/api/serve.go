package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/tasklist-service/internal/api/http"
	"github.com/spec-kit/tasklist-service/internal/api/http/handlers"
	"github.com/spec-kit/tasklist-service/internal/auth"
	"github.com/spec-kit/tasklist-service/internal/events"
	"github.com/spec-kit/tasklist-service/internal/observability"
	"github.com/spec-kit/tasklist-service/internal/persistence"
	"github.com/spec-kit/tasklist-service/internal/repository"
	"github.com/spec-kit/tasklist-service/internal/service"
	"github.com/spec-kit/tasklist-service/internal/worker"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, logger := bootstrap()
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

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

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("POSTGRES_DSN is required to serve requests")
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	tokens, err := auth.NewTokenManager(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret)
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}

	sessions := service.NewSessionStore(repository.NewRefreshTokenRepository(pool), nil)
	authService, err := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Users:      repository.NewUserRepository(pool),
		UnitOfWork: repository.NewUnitOfWork(pool),
		Sessions:   sessions,
		Tokens:     tokens,
		Throttle:   service.NewLoginThrottle(redis.Client, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow(), logger),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}

	resolver := auth.NewRoleResolver(repository.NewHierarchyRepository(pool), repository.NewMembershipRepository(pool))
	accessMiddleware := auth.NewAccessMiddleware(resolver, auth.DefaultPolicy(), metrics)

	sweeper := worker.NewSessionSweeper(sessions, dispatcher, logger, cfg.Auth.SweepInterval())
	go sweeper.Run(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: cfg.App.RequestTimeout(),
		AllowedOrigins: cfg.App.FrontendURL,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Sessions:         handlers.NewSessionHandler(authService, cfg.Auth),
		Access:           handlers.NewAccessHandler(accessMiddleware),
		Metrics:          metrics,
		AuthMiddleware:   auth.NewAuthMiddleware(tokens),
		AccessMiddleware: accessMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("listening",
		zap.String("addr", cfg.App.Addr()),
		zap.String("token_delivery", string(cfg.Auth.Delivery)))

	waitForShutdown(ctx, logger)
	cancel()

	return app.Shutdown()
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
}
