package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgetform/internal/core"
	ports "budgetform/internal/recorder"
)

// Store keeps recorded rows in process memory. It is the default backend
// for local development and tests.
type Store struct {
	mu   sync.Mutex
	rows []core.RecordedRow
	now  func() time.Time
}

var (
	_ ports.Recorder = (*Store)(nil)
	_ ports.Pinger   = (*Store)(nil)
)

func New() *Store {
	return &Store{now: time.Now}
}

// Append stores the row and returns a synthetic reference.
func (s *Store) Append(_ context.Context, row core.Row) (string, error) {
	if err := row.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := fmt.Sprintf("mem:%d", len(s.rows)+1)
	s.rows = append(s.rows, core.RecordedRow{
		Ref:        ref,
		RecordedAt: s.now(),
		Row:        append(core.Row(nil), row...),
	})
	return ref, nil
}

// ListRows returns up to limit of the most recent rows, oldest first.
func (s *Store) ListRows(_ context.Context, limit int) ([]core.RecordedRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if limit > 0 && len(s.rows) > limit {
		start = len(s.rows) - limit
	}
	out := make([]core.RecordedRow, len(s.rows)-start)
	copy(out, s.rows[start:])
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
