package adapters

import (
	"context"

	"budgetform/internal/core"
	"budgetform/internal/recorder"
	"budgetform/internal/services"
	"budgetform/internal/storage"
)

// SQLiteAdapter exposes the SQLite outbox and RecordService through the
// recorder ports, so the HTTP layer records rows the same way for every
// backend.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.RecordService
}

var (
	_ recorder.Recorder = (*SQLiteAdapter)(nil)
	_ recorder.Pinger   = (*SQLiteAdapter)(nil)
)

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.RecordService) *SQLiteAdapter {
	return &SQLiteAdapter{storage: storage, service: service}
}

// Append implements recorder.RowAppender. The returned reference is the
// outbox row id; the spreadsheet range is filled in later by the worker.
func (a *SQLiteAdapter) Append(ctx context.Context, row core.Row) (string, error) {
	return a.service.Record(ctx, recorder.SessionID(ctx), row)
}

// ListRows implements recorder.RowLister
func (a *SQLiteAdapter) ListRows(ctx context.Context, limit int) ([]core.RecordedRow, error) {
	return a.storage.ListRows(ctx, limit)
}

// Ping implements recorder.Pinger
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}
