package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/config"
	"github.com/iliyamo/aura/internal/logger"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "aura",
		Short:         "Aura movie discovery API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newEventsCommand())
	rootCmd.AddCommand(newSupervisorCommand())
	return rootCmd
}

func newLogger(cfg config.Config) *zap.Logger {
	return logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
}
