// Package worker moves summary rows from the local outbox to the external
// spreadsheet recorder.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"budgetform/internal/amqp"
	"budgetform/internal/recorder"
	"budgetform/internal/storage"
)

// Outbox is the slice of the SQLite repository the worker needs.
type Outbox interface {
	GetRow(ctx context.Context, id int64) (storage.StoredRow, error)
	PendingRows(ctx context.Context, limit, maxAttempts int) ([]storage.StoredRow, error)
	ClaimRow(ctx context.Context, id int64) (bool, error)
	MarkSynced(ctx context.Context, id int64, ref string) error
	MarkSyncError(ctx context.Context, id int64, cause error) error
}

// Options tunes batch processing.
type Options struct {
	BatchSize   int
	MaxAttempts int
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

// SyncWorker handles synchronization of summary rows from SQLite to the
// spreadsheet.
type SyncWorker struct {
	outbox   Outbox
	appender recorder.RowAppender
	opts     Options
}

func NewSyncWorker(outbox Outbox, appender recorder.RowAppender, opts Options) *SyncWorker {
	return &SyncWorker{outbox: outbox, appender: appender, opts: opts.withDefaults()}
}

// HandleSyncMessage processes a single row sync message from AMQP.
// Redelivered messages for rows that already synced, or that a sweep is
// syncing right now, are acknowledged without a second append.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RowSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "id", msg.ID, "session_id", msg.SessionID)

	row, err := w.outbox.GetRow(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get row from storage: %w", err)
	}
	if row.Status == storage.StatusSynced {
		slog.DebugContext(ctx, "Row already synced, skipping", "id", row.ID, "sheets_ref", row.SheetsRef)
		return nil
	}
	if _, err := w.syncRow(ctx, row); err != nil {
		return fmt.Errorf("sync row to sheets: %w", err)
	}
	return nil
}

// ProcessPending syncs one batch of pending rows and returns how many
// succeeded. It is the backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processBatch(ctx, w.opts.BatchSize)
}

// StartupSyncCheck drains a larger batch once at worker startup to recover
// from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processBatch(ctx, w.opts.BatchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) (int, error) {
	pending, err := w.outbox.PendingRows(ctx, limit, w.opts.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("get pending rows: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending rows", "count", len(pending))

	var synced atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Concurrency)
	for _, row := range pending {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			// Per-row failures are recorded on the row; only cancellation
			// aborts the batch.
			ok, err := w.syncRow(gctx, row)
			if err != nil {
				slog.ErrorContext(gctx, "Failed to sync row", "id", row.ID, "error", err)
				return nil
			}
			if ok {
				synced.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	return int(synced.Load()), err
}

// syncRow appends row once it holds the claim on it. It reports false when
// the row was skipped because it is synced or claimed elsewhere.
func (w *SyncWorker) syncRow(ctx context.Context, row storage.StoredRow) (bool, error) {
	claimed, err := w.outbox.ClaimRow(ctx, row.ID)
	if err != nil {
		return false, fmt.Errorf("claim row: %w", err)
	}
	if !claimed {
		slog.DebugContext(ctx, "Row is synced or being synced elsewhere, skipping", "id", row.ID)
		return false, nil
	}

	ref, err := w.appender.Append(ctx, row.Row)
	if err != nil {
		if markErr := w.outbox.MarkSyncError(ctx, row.ID, err); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", row.ID, "error", markErr)
		}
		return false, fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.outbox.MarkSynced(ctx, row.ID, ref); err != nil {
		level := slog.LevelError
		if errors.Is(err, storage.ErrAlreadySynced) {
			level = slog.LevelWarn
		}
		// The claim lapses after its TTL, so an unmarked row may be appended again.
		slog.Log(ctx, level, "Failed to mark as synced", "id", row.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced summary row",
		"id", row.ID,
		"sheets_ref", ref,
		"session_id", row.SessionID)
	return true, nil
}
