// Package cli holds the start-up steps shared by cmd/budgetform,
// cmd/budgetform-worker and cmd/budgetctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"budgetform/internal/config"
	applog "budgetform/internal/log"
	"budgetform/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(component string) *applog.Logger {
	return setupLogger(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), component)
}

// SetupLoggerTo is SetupLogger writing to out. The CLI logs to stderr so
// command output stays clean on stdout.
func SetupLoggerTo(out io.Writer, component string) *applog.Logger {
	return setupLogger(out, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), component)
}

func setupLogger(out io.Writer, level, format, component string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Format:    format,
		Component: component,
		Output:    out,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads .env, then the environment, and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	config.LoadEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// LoadProfile loads the budget profile or exits on a malformed file.
func LoadProfile(logger *applog.Logger, cfg *config.Config) config.Profile {
	profile, err := cfg.Profile()
	if err != nil {
		logger.Error("Failed to load budget profile", applog.FieldError, err, "path", cfg.BudgetProfileFile)
		os.Exit(1)
	}
	return profile
}

// InitSQLite opens (and migrates) the outbox database.
func InitSQLite(logger *applog.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", dbPath)
		return nil, fmt.Errorf("init sqlite: %w", err)
	}
	return repo, nil
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}
