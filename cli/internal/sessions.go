package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/pocketid-dashboard/internal/config"
	"github.com/devilmonastery/pocketid-dashboard/internal/infrastructure/database/postgres"
)

// newSessionsCommand creates the sessions command group
func newSessionsCommand() *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session store maintenance",
	}

	var configPath string
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired session rows",
		Long:  `Deletes expired rows from the session store. The running server sweeps on its own; this is for one-off cleanup against a stopped deployment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("no database configured; the in-memory store has nothing to clean")
			}

			conn, err := postgres.NewConnection(cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer conn.Close()

			repo := postgres.NewSessionRepository(conn.DB)
			n, err := repo.DeleteExpired(cmd.Context(), time.Now())
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}

			fmt.Printf("deleted %d expired sessions\n", n)
			return nil
		},
	}
	cleanupCmd.Flags().StringVar(&configPath, "config", "", "path to config file")

	sessionsCmd.AddCommand(cleanupCmd)
	return sessionsCmd
}
