package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetform/internal/config"
	"budgetform/internal/core"
)

func TestCreateBackend_Memory(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	defer res.Close()

	ref, err := res.Backend.Append(context.Background(), core.Row{1, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "mem:1", ref)
	assert.NoError(t, res.Backend.Ping(context.Background()))
}

func TestCreateBackend_SQLite(t *testing.T) {
	cfg := Config{Type: SQLiteBackend, SQLite: SQLiteConfig{DBPath: filepath.Join(t.TempDir(), "b.db")}}
	res, err := NewFactory(nil).CreateBackend(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, res.Close()) }()

	ref, err := res.Backend.Append(context.Background(), core.Row{1, 2, 3, 4, 5, 9, 10, -1})
	require.NoError(t, err)
	assert.Equal(t, "1", ref)

	rows, err := res.Backend.ListRows(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCreateBackend_Invalid(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.CreateBackend(context.Background(), Config{Type: "postgres"})
	assert.ErrorContains(t, err, "invalid backend type")

	_, err = f.CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	assert.ErrorContains(t, err, "SQLite database path is required")

	_, err = f.CreateBackend(context.Background(), Config{Type: SheetsBackend})
	assert.ErrorContains(t, err, "spreadsheet ID is required")
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "nope"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:           "sqlite",
		SQLiteDBPath:          "x.db",
		AMQPQueue:             "q",
		GoogleSpreadsheetID:   "sheet",
		GoogleSheetYearPrefix: true,
	})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "x.db", cfg.SQLite.DBPath)
	assert.Equal(t, "q", cfg.SQLite.AMQPQueue)
	assert.Equal(t, "sheet", cfg.Sheets.SpreadsheetID)
	assert.True(t, cfg.Sheets.YearPrefix)
	assert.True(t, cfg.Sheets.EnsureHeader)
}

func TestTypes(t *testing.T) {
	for _, typ := range Types {
		assert.True(t, typ.IsValid(), typ)
	}
	assert.False(t, Type("postgres").IsValid())
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
}

func TestResultCloseWithoutCleanup(t *testing.T) {
	var nilResult *Result
	assert.NoError(t, nilResult.Close())
	assert.NoError(t, (&Result{}).Close())
}
