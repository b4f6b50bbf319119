package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"budgetform/internal/storage"
)

func newMigrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --down roll back) the SQLite outbox schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := loadConfig().SQLiteDBPath
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create db directory: %w", err)
			}

			if down {
				if err := storage.MigrateDown(path); err != nil {
					return err
				}
			} else if err := storage.RunMigrations(path); err != nil {
				return err
			}

			version, dirty, err := storage.MigrationVersion(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (dirty=%t)\n", path, version, dirty)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Roll back every migration")
	return cmd
}
