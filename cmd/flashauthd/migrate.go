package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flashapp/flashauth/directory"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		db, err := directory.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if err := directory.RunMigrations(cmd.Context(), db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	},
}
