package backend

import (
	"context"
	"fmt"
	"log/slog"

	"budgetform/internal/adapters"
	"budgetform/internal/amqp"
	gsheet "budgetform/internal/recorder/google"
	"budgetform/internal/recorder/memory"
	"budgetform/internal/services"
	"budgetform/internal/storage"
)

// DefaultFactory builds the three built-in backends.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

var _ Factory = (*DefaultFactory)(nil)

func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLiteBackend:
		return f.sqlite(cfg.SQLite)
	case SheetsBackend:
		return f.sheets(ctx, cfg.Sheets)
	default:
		f.logger.Info("Initialized memory backend")
		return &Result{Backend: memory.New()}, nil
	}
}

func (f *DefaultFactory) sqlite(cfg SQLiteConfig) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// A broker that is down at start-up only costs latency: the worker's
	// sweep still finds the pending rows.
	var publisher services.SyncPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync messages", "error", err)
		} else {
			publisher = client
			f.logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := services.NewRecordService(repo, publisher)
	f.logger.Info("Initialized SQLite backend", "db_path", cfg.DBPath, "amqp_enabled", publisher != nil)

	return &Result{
		Backend: adapters.NewSQLiteAdapter(repo, svc),
		Cleanup: svc.Close,
	}, nil
}

func (f *DefaultFactory) sheets(ctx context.Context, cfg SheetsConfig) (*Result, error) {
	client, err := gsheet.NewWithEnvAuth(ctx, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	if cfg.EnsureHeader {
		if err := client.EnsureHeader(ctx); err != nil {
			f.logger.Warn("Could not verify sheet header", "sheet", client.SheetName(), "error", err)
		}
	}

	f.logger.Info("Initialized Google Sheets backend", "sheet", client.SheetName())
	return &Result{Backend: client}, nil
}
