package cli

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

// newSecretCommand creates the secret command group
func newSecretCommand() *cobra.Command {
	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Session secret utilities",
	}

	var length int
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a session secret",
		Long:  `Generates a random secret suitable for session.secret. Rotating the secret invalidates all existing sessions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if length < 32 {
				return fmt.Errorf("secret must be at least 32 bytes, got %d", length)
			}
			buf := make([]byte, length)
			if _, err := rand.Read(buf); err != nil {
				return fmt.Errorf("failed to generate secret: %w", err)
			}
			fmt.Println(base64.StdEncoding.EncodeToString(buf))
			return nil
		},
	}
	generateCmd.Flags().IntVar(&length, "bytes", 48, "secret length in bytes before encoding")

	secretCmd.AddCommand(generateCmd)
	return secretCmd
}
