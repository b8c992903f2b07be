package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/tasklist-service/internal/persistence"
	"github.com/spec-kit/tasklist-service/internal/repository"
	"github.com/spec-kit/tasklist-service/internal/service"
	"github.com/spec-kit/tasklist-service/internal/worker"
)

var errNoDatabase = errors.New("POSTGRES_DSN is required")

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := bootstrap()
			defer logger.Sync() //nolint:errcheck

			ctx := commandContext(cmd)
			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			if pg.PoolHandle() == nil {
				return errNoDatabase
			}
			return persistence.RunMigrations(ctx, pg.PoolHandle(), logger)
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired refresh tokens and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := bootstrap()
			defer logger.Sync() //nolint:errcheck

			ctx := commandContext(cmd)
			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			if pg.PoolHandle() == nil {
				return errNoDatabase
			}

			sessions := service.NewSessionStore(repository.NewRefreshTokenRepository(pg.PoolHandle()), nil)
			removed, err := worker.NewSessionSweeper(sessions, nil, logger, 0).SweepOnce(ctx)
			if err != nil {
				return err
			}
			logger.Info("expired refresh tokens removed", zap.Int64("count", removed))
			return nil
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
