// Package recorder defines the outbound ports for persisting exported
// budget rows. Adapters live in the google and memory subpackages and in
// internal/adapters.
package recorder

import (
	"context"

	"budgetform/internal/core"
)

// Ports for outbound adapters.
type (
	// RowAppender stores one export row and returns an adapter-specific
	// reference to it (a sheet range, a database id, "mem:N").
	RowAppender interface {
		Append(ctx context.Context, row core.Row) (ref string, err error)
	}

	// RowLister returns recently recorded rows, newest last.
	RowLister interface {
		ListRows(ctx context.Context, limit int) ([]core.RecordedRow, error)
	}

	// Pinger reports whether the backing store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Recorder is the full surface the HTTP layer and CLI use.
	Recorder interface {
		RowAppender
		RowLister
	}
)

type sessionKey struct{}

// WithSessionID tags ctx with the session a row originates from. Adapters
// that keep per-row provenance (the SQLite outbox) read it back.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the id stored by WithSessionID, or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
