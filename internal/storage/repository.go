package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"budgetform/internal/core"

	_ "modernc.org/sqlite"
)

// SyncStatus is the outbox state of a stored row.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
	StatusError   SyncStatus = "error"
)

var (
	// ErrNotFound is returned when a row id does not exist.
	ErrNotFound = errors.New("row not found")
	// ErrAlreadySynced is returned when a row was marked synced by someone else.
	ErrAlreadySynced = errors.New("row already synced")
)

// DefaultClaimTTL is how long a sync claim holds before another worker may
// take the row over.
const DefaultClaimTTL = 5 * time.Minute

// StoredRow is an exported summary row plus its outbox bookkeeping.
type StoredRow struct {
	ID        int64
	SessionID string
	Row       core.Row
	CreatedAt time.Time
	Status    SyncStatus
	Attempts  int64
	SheetsRef string
	LastError string
	SyncedAt  time.Time
}

type SQLiteRepository struct {
	db       *sql.DB
	queries  *Queries
	now      func() time.Time
	claimTTL time.Duration
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db), now: time.Now, claimTTL: DefaultClaimTTL}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertRow stores a row in the pending state and returns its id.
func (r *SQLiteRepository) InsertRow(ctx context.Context, sessionID string, row core.Row) (int64, error) {
	if err := row.Validate(); err != nil {
		return 0, err
	}
	rec, err := r.queries.CreateSummaryRow(ctx, CreateSummaryRowParams{
		SessionID:     sessionID,
		Income:        row[0],
		Savings:       row[1],
		Investments:   row[2],
		FixedTotal:    row[3],
		VariableTotal: row[4],
		TotalExpenses: row[5],
		FutureLimit:   row[6],
		Difference:    row[7],
		CreatedAt:     r.now().UTC().UnixMilli(),
	})
	if err != nil {
		return 0, fmt.Errorf("create summary row: %w", err)
	}

	slog.InfoContext(ctx, "Summary row saved to SQLite",
		"id", rec.ID,
		"session_id", sessionID,
		"total_expenses", rec.TotalExpenses,
		"difference", rec.Difference)
	return rec.ID, nil
}

// Append implements recorder.RowAppender. The reference is the row id.
func (r *SQLiteRepository) Append(ctx context.Context, row core.Row) (string, error) {
	id, err := r.InsertRow(ctx, "", row)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// GetRow loads one stored row.
func (r *SQLiteRepository) GetRow(ctx context.Context, id int64) (StoredRow, error) {
	rec, err := r.queries.GetSummaryRow(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRow{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return StoredRow{}, fmt.Errorf("get summary row: %w", err)
	}
	return toStoredRow(rec), nil
}

// PendingRows returns rows still waiting for the external recorder, oldest
// first. Rows that failed maxAttempts times or are claimed by a running sync
// are left alone.
func (r *SQLiteRepository) PendingRows(ctx context.Context, limit, maxAttempts int) ([]StoredRow, error) {
	recs, err := r.queries.GetPendingSummaryRows(ctx, int64(maxAttempts), r.staleBefore(), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending summary rows: %w", err)
	}
	out := make([]StoredRow, len(recs))
	for i, rec := range recs {
		out[i] = toStoredRow(rec)
	}
	return out, nil
}

// ListRows implements recorder.RowLister over the local outbox.
func (r *SQLiteRepository) ListRows(ctx context.Context, limit int) ([]core.RecordedRow, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	recs, err := r.queries.ListRecentSummaryRows(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list summary rows: %w", err)
	}
	out := make([]core.RecordedRow, len(recs))
	for i, rec := range recs {
		sr := toStoredRow(rec)
		out[i] = core.RecordedRow{Ref: strconv.FormatInt(sr.ID, 10), RecordedAt: sr.CreatedAt, Row: sr.Row}
	}
	return out, nil
}

// ClaimRow reserves a row for one append. It reports false when the row is
// already synced or another sync holds a live claim on it. A claim is
// released by MarkSynced or MarkSyncError, or lapses after the claim TTL.
func (r *SQLiteRepository) ClaimRow(ctx context.Context, id int64) (bool, error) {
	n, err := r.queries.ClaimSummaryRow(ctx, id, r.now().UTC().UnixMilli(), r.staleBefore())
	if err != nil {
		return false, fmt.Errorf("claim summary row: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) staleBefore() int64 {
	return r.now().Add(-r.claimTTL).UTC().UnixMilli()
}

// MarkSynced records a successful append to the external recorder. A row
// is marked once; later calls fail with ErrAlreadySynced.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64, ref string) error {
	n, err := r.queries.MarkSummaryRowSynced(ctx, id, ref, r.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("mark row synced: %w", err)
	}
	if n == 0 {
		if _, err := r.GetRow(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %d", ErrAlreadySynced, id)
	}
	slog.InfoContext(ctx, "Summary row marked as synced", "id", id, "ref", ref)
	return nil
}

// MarkSyncError records a failed attempt. Already synced rows are not touched.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := r.queries.MarkSummaryRowSyncError(ctx, id, msg); err != nil {
		return fmt.Errorf("mark row sync error: %w", err)
	}
	slog.WarnContext(ctx, "Summary row marked with sync error", "id", id, "error", msg)
	return nil
}

// CountByStatus returns the number of rows in each outbox state.
func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[SyncStatus]int64, error) {
	counts, err := r.queries.CountSummaryRowsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count summary rows: %w", err)
	}
	out := map[SyncStatus]int64{StatusPending: 0, StatusSynced: 0, StatusError: 0}
	for _, c := range counts {
		out[SyncStatus(c.Status)] = c.Count
	}
	return out, nil
}

func toStoredRow(rec SummaryRow) StoredRow {
	sr := StoredRow{
		ID:        rec.ID,
		SessionID: rec.SessionID,
		Row: core.Row{
			rec.Income,
			rec.Savings,
			rec.Investments,
			rec.FixedTotal,
			rec.VariableTotal,
			rec.TotalExpenses,
			rec.FutureLimit,
			rec.Difference,
		},
		CreatedAt: time.UnixMilli(rec.CreatedAt).UTC(),
		Status:    SyncStatus(rec.SyncStatus),
		Attempts:  rec.SyncAttempts,
		SheetsRef: rec.SheetsRef,
		LastError: rec.LastError,
	}
	if rec.SyncedAt.Valid {
		sr.SyncedAt = time.UnixMilli(rec.SyncedAt.Int64).UTC()
	}
	return sr
}
