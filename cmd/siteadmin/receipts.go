package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shul-site/backend/config"
	"github.com/shul-site/backend/pkg/logger"
	"github.com/shul-site/backend/pkg/queue"
	"github.com/shul-site/backend/pkg/redis"
)

func deadLettersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "Show receipt jobs the worker gave up on",
		Long: `Print raw receipt jobs from the dead-letter queue without removing them.

Each job holds the PayPal order and transaction ids, so a missing payment row can
be reconciled by hand.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt64("limit")
			level, _ := cmd.Flags().GetString("log-level")
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.New(level)
			defer log.Sync()

			ctx := cmd.Context()
			rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
			if err != nil {
				return err
			}
			defer rdb.Close()

			jobs, err := queue.NewQueue(rdb.Client, log).DeadLetters(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "dead-letter queue is empty")
				return nil
			}
			for _, j := range jobs {
				fmt.Fprintln(out, j)
			}
			return nil
		},
	}
	cmd.Flags().Int64P("limit", "n", 20, "Maximum jobs to show")
	return cmd
}
