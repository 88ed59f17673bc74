package cmd

import (
	"github.com/aah91/bbq-buddy/config"
	"github.com/aah91/bbq-buddy/internal/database"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Run database migrations and exit`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Connect runs migrations on the write database
	if _, _, err := database.Connect(cfg.DB); err != nil {
		return err
	}

	log.Info().Msg("Migrations completed")
	return nil
}
