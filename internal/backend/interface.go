// Package backend builds the recorder selected by DATA_BACKEND.
package backend

import (
	"context"

	"budgetform/internal/recorder"
	gsheet "budgetform/internal/recorder/google"
)

// Backend is what the HTTP layer needs from a recorder: append, list and a
// readiness probe.
type Backend interface {
	recorder.Recorder
	recorder.Pinger
}

// Result is a ready backend plus the function releasing its resources.
type Result struct {
	Backend Backend
	Cleanup func() error
}

// Close runs Cleanup, if any.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends from a Config.
type Factory interface {
	CreateBackend(ctx context.Context, cfg Config) (*Result, error)
}

// Type names a recorder implementation.
type Type string

const (
	SQLiteBackend Type = "sqlite"
	SheetsBackend Type = "sheets"
	MemoryBackend Type = "memory"
)

// Types lists every supported backend.
var Types = []Type{SQLiteBackend, SheetsBackend, MemoryBackend}

func (t Type) IsValid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Config selects a backend and carries the settings of each kind; only the
// block matching Type is read.
type Config struct {
	Type Type

	SQLite SQLiteConfig
	Sheets SheetsConfig
}

// SQLiteConfig is the local outbox. AMQP is optional: without a URL rows wait
// for the worker's pending sweep.
type SQLiteConfig struct {
	DBPath       string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// SheetsConfig appends straight to a spreadsheet. Credentials are read from
// the environment by the client.
type SheetsConfig struct {
	gsheet.Config
	EnsureHeader bool
}
