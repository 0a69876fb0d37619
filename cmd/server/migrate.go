package main

import (
	"github.com/spf13/cobra"

	"invoice-reconciliation-backend/internal/config"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, logger, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if err := config.Migrate(db); err != nil {
			return err
		}
		logger.Info("schema migrated")
		return nil
	},
}
