package backend

import (
	"errors"
	"fmt"

	"budgetform/internal/config"
	gsheet "budgetform/internal/recorder/google"
)

// FromAppConfig maps the process configuration onto a backend Config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("app config is nil")
	}
	t := Type(cfg.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", cfg.DataBackend)
	}

	return Config{
		Type: t,
		SQLite: SQLiteConfig{
			DBPath:       cfg.SQLiteDBPath,
			AMQPURL:      cfg.AMQPURL,
			AMQPExchange: cfg.AMQPExchange,
			AMQPQueue:    cfg.AMQPQueue,
		},
		Sheets: SheetsConfig{
			Config: gsheet.Config{
				SpreadsheetID: cfg.GoogleSpreadsheetID,
				SheetName:     cfg.GoogleSheetName,
				YearPrefix:    cfg.GoogleSheetYearPrefix,
			},
			EnsureHeader: true,
		},
	}, nil
}

// Validate checks the settings the selected backend needs.
func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if c.SQLite.DBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("spreadsheet ID is required for sheets backend")
		}
	case MemoryBackend:
	default:
		return fmt.Errorf("invalid backend type: %q (want one of %v)", c.Type, Types)
	}
	return nil
}
