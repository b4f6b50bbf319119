package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL for the summary_rows outbox.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const summaryRowColumns = `id, session_id, income, savings, investments, fixed_total, variable_total,
	total_expenses, future_limit, difference, created_at, sync_status, sync_attempts,
	sheets_ref, last_error, synced_at`

const createSummaryRow = `INSERT INTO summary_rows (
	session_id, income, savings, investments, fixed_total, variable_total,
	total_expenses, future_limit, difference, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + summaryRowColumns

type CreateSummaryRowParams struct {
	SessionID     string
	Income        float64
	Savings       float64
	Investments   float64
	FixedTotal    float64
	VariableTotal float64
	TotalExpenses float64
	FutureLimit   float64
	Difference    float64
	CreatedAt     int64
}

func (q *Queries) CreateSummaryRow(ctx context.Context, arg CreateSummaryRowParams) (SummaryRow, error) {
	row := q.db.QueryRowContext(ctx, createSummaryRow,
		arg.SessionID,
		arg.Income,
		arg.Savings,
		arg.Investments,
		arg.FixedTotal,
		arg.VariableTotal,
		arg.TotalExpenses,
		arg.FutureLimit,
		arg.Difference,
		arg.CreatedAt,
	)
	return scanSummaryRow(row)
}

const getSummaryRow = `SELECT ` + summaryRowColumns + ` FROM summary_rows WHERE id = ?`

func (q *Queries) GetSummaryRow(ctx context.Context, id int64) (SummaryRow, error) {
	return scanSummaryRow(q.db.QueryRowContext(ctx, getSummaryRow, id))
}

const getPendingSummaryRows = `SELECT ` + summaryRowColumns + ` FROM summary_rows
WHERE (sync_status = 'pending' OR (sync_status = 'error' AND sync_attempts < ?))
	AND (claimed_at IS NULL OR claimed_at < ?)
ORDER BY created_at, id
LIMIT ?`

// GetPendingSummaryRows skips rows whose claim is newer than staleBefore.
func (q *Queries) GetPendingSummaryRows(ctx context.Context, maxAttempts, staleBefore, limit int64) ([]SummaryRow, error) {
	return q.list(ctx, getPendingSummaryRows, maxAttempts, staleBefore, limit)
}

const listRecentSummaryRows = `SELECT ` + summaryRowColumns + ` FROM (
	SELECT * FROM summary_rows ORDER BY id DESC LIMIT ?
) ORDER BY id`

func (q *Queries) ListRecentSummaryRows(ctx context.Context, limit int64) ([]SummaryRow, error) {
	return q.list(ctx, listRecentSummaryRows, limit)
}

const claimSummaryRow = `UPDATE summary_rows
SET claimed_at = ?
WHERE id = ? AND sync_status != 'synced' AND (claimed_at IS NULL OR claimed_at < ?)`

func (q *Queries) ClaimSummaryRow(ctx context.Context, id, at, staleBefore int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, claimSummaryRow, at, id, staleBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markSummaryRowSynced = `UPDATE summary_rows
SET sync_status = 'synced', sheets_ref = ?, synced_at = ?, last_error = '', claimed_at = NULL,
	sync_attempts = sync_attempts + 1
WHERE id = ? AND sync_status != 'synced'`

func (q *Queries) MarkSummaryRowSynced(ctx context.Context, id int64, ref string, at int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markSummaryRowSynced, ref, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markSummaryRowSyncError = `UPDATE summary_rows
SET sync_status = 'error', last_error = ?, claimed_at = NULL, sync_attempts = sync_attempts + 1
WHERE id = ? AND sync_status != 'synced'`

func (q *Queries) MarkSummaryRowSyncError(ctx context.Context, id int64, msg string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markSummaryRowSyncError, msg, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countSummaryRowsByStatus = `SELECT sync_status, COUNT(*) FROM summary_rows GROUP BY sync_status`

type StatusCount struct {
	Status string
	Count  int64
}

func (q *Queries) CountSummaryRowsByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := q.db.QueryContext(ctx, countSummaryRowsByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StatusCount
	for rows.Next() {
		var i StatusCount
		if err := rows.Scan(&i.Status, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (q *Queries) list(ctx context.Context, query string, args ...any) ([]SummaryRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SummaryRow
	for rows.Next() {
		i, err := scanSummaryRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// SummaryRow mirrors one summary_rows record.
type SummaryRow struct {
	ID            int64
	SessionID     string
	Income        float64
	Savings       float64
	Investments   float64
	FixedTotal    float64
	VariableTotal float64
	TotalExpenses float64
	FutureLimit   float64
	Difference    float64
	CreatedAt     int64
	SyncStatus    string
	SyncAttempts  int64
	SheetsRef     string
	LastError     string
	SyncedAt      sql.NullInt64
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummaryRow(s scanner) (SummaryRow, error) {
	var i SummaryRow
	err := s.Scan(
		&i.ID,
		&i.SessionID,
		&i.Income,
		&i.Savings,
		&i.Investments,
		&i.FixedTotal,
		&i.VariableTotal,
		&i.TotalExpenses,
		&i.FutureLimit,
		&i.Difference,
		&i.CreatedAt,
		&i.SyncStatus,
		&i.SyncAttempts,
		&i.SheetsRef,
		&i.LastError,
		&i.SyncedAt,
	)
	return i, err
}
