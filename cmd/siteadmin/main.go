// Package main is the operator CLI: bootstrap editor accounts and manage section permissions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shul-site/backend/config"
	"github.com/shul-site/backend/internal/auth"
	"github.com/shul-site/backend/internal/permissions"
	"github.com/shul-site/backend/pkg/database"
	"github.com/shul-site/backend/pkg/logger"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "siteadmin",
		Short:         "Manage editor accounts and content permissions",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createUserCmd())
	rootCmd.AddCommand(grantCmd())
	rootCmd.AddCommand(revokeCmd())
	rootCmd.AddCommand(permissionsCmd())
	rootCmd.AddCommand(deadLettersCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the database-backed state every subcommand works against.
type env struct {
	pool   *pgxpool.Pool
	users  *auth.Repository
	gate   *permissions.Service
	logger *zap.Logger
}

func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level, _ := cmd.Flags().GetString("log-level")
	log := logger.New(level)

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), 2, log)
	if err != nil {
		return nil, err
	}
	return &env{
		pool:   pool,
		users:  auth.NewRepository(pool),
		gate:   permissions.NewService(permissions.NewRepository(pool), log),
		logger: log,
	}, nil
}

func (e *env) Close() {
	e.pool.Close()
	_ = e.logger.Sync()
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := database.Migrate(ctx, e.pool, e.logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
