package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/config"
	"github.com/iliyamo/aura/internal/queue"
)

func newEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Consume domain events into the rotating activity log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := config.LoadEvents()
			log := newLogger(cfg)
			defer func() { _ = log.Sync() }()

			if cfg.AMQPURL == "" {
				return errors.New("RABBITMQ_URL or AMQP_URL must be set")
			}
			out, err := queue.NewActivityLog(cfg.ActivityLog, 0)
			if err != nil {
				return err
			}
			defer out.Close()

			log.Info("event consumer started", zap.String("activity_log", cfg.ActivityLog))
			err = queue.NewConsumer(cfg.AMQPURL, out, log).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
