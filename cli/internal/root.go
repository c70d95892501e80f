package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/pocketid-dashboard/internal/pkg/logger"
)

// Global logging flags
var (
	logLevel  string
	logFormat string
)

// NewRootCommand creates the root cobra command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dashctl",
		Short:         "Operator CLI for the Pocket-ID dashboard",
		Long:          `Maintenance commands for a running Pocket-ID dashboard deployment.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main.go prints the error
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(newSecretCommand())
	rootCmd.AddCommand(newSessionsCommand())

	return rootCmd
}

func setupLogging() error {
	globalLogger, err := logger.SetupLogger(logger.Config{
		Level:       logger.ParseLevel(logLevel),
		LogToStderr: true,
		Format:      logFormat,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(globalLogger)
	return nil
}
