package main

import (
	"os"

	"github.com/spf13/cobra"

	"budgetform/internal/cli"
	"budgetform/internal/config"
	applog "budgetform/internal/log"
)

const componentCLI = "budgetctl"

var (
	flagProfile string
	flagDBPath  string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "budgetctl",
		Short:        "Budget form administration",
		Long:         "Compute budget summaries and manage the local SQLite outbox of budgetform.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagProfile, "profile", "", "Budget profile TOML file (default: BUDGET_PROFILE_FILE)")
	root.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite outbox path (default: SQLITE_DB_PATH)")

	root.AddCommand(newSummaryCmd(), newPendingCmd(), newMigrateCmd(), newOAuthInitCmd())
	return root
}

// loadConfig reads .env and the environment, then applies the persistent
// flags on top. It does not exit on validation errors; each command checks
// what it needs.
func loadConfig() *config.Config {
	config.LoadEnvFile()
	cfg := config.Load()
	if flagProfile != "" {
		cfg.BudgetProfileFile = flagProfile
	}
	if flagDBPath != "" {
		cfg.SQLiteDBPath = flagDBPath
	}
	return cfg
}

func cliLogger() *applog.Logger {
	return cli.SetupLoggerTo(os.Stderr, componentCLI)
}
