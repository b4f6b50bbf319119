// Package session keeps per-visitor budget state in memory.
//
// A Session owns its two ledgers and the scalar totals. All access goes
// through the Session methods, which serialize on a per-session mutex so
// concurrent requests from the same browser cannot interleave a mutation
// with a recomputation.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"budgetform/internal/core"
)

// Seeds are the category names a new session starts with.
type Seeds struct {
	Fixed    []string
	Variable []string
}

// Session is one visitor's budget.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	fixed    *core.Ledger
	variable *core.Ledger
	totals   core.Totals
}

func newSession(id string, seeds Seeds) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		fixed:     core.NewLedger(seeds.Fixed...),
		variable:  core.NewLedger(seeds.Variable...),
	}
}

func (s *Session) ledger(kind core.LedgerKind) (*core.Ledger, error) {
	switch kind {
	case core.Fixed:
		return s.fixed, nil
	case core.Variable:
		return s.variable, nil
	}
	return nil, fmt.Errorf("%w: %q", core.ErrInvalidLedger, string(kind))
}

// AddCategory appends a zero-valued category to the given ledger.
func (s *Session) AddCategory(kind core.LedgerKind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.ledger(kind)
	if err != nil {
		return err
	}
	return l.AddCategory(name)
}

// SetAmount updates an existing category.
func (s *Session) SetAmount(kind core.LedgerKind, name string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.ledger(kind)
	if err != nil {
		return err
	}
	return l.SetAmount(name, amount)
}

// RemoveCategory deletes a category from the given ledger.
func (s *Session) RemoveCategory(kind core.LedgerKind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.ledger(kind)
	if err != nil {
		return err
	}
	return l.RemoveCategory(name)
}

// SetTotals replaces income, savings, investments and the future limit.
// Invalid totals leave the previous values in place.
func (s *Session) SetTotals(t core.Totals) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.totals = t
	s.mu.Unlock()
	return nil
}

// Totals returns the current scalar inputs.
func (s *Session) Totals() core.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

// Entries returns a copy of one ledger's entries in display order.
func (s *Session) Entries(kind core.LedgerKind) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.ledger(kind)
	if err != nil {
		return nil, err
	}
	return l.Entries(), nil
}

// Combined merges both ledgers into one read-only view, fixed first.
func (s *Session) Combined() (core.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fixed.MergeView(s.variable)
}

// Summary recomputes every derived figure from the current state.
func (s *Session) Summary(tiers core.RatioTiers) core.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Summarize(s.totals, s.fixed, s.variable, tiers)
}

// Snapshot is the summary and the cross-ledger name check taken from one
// consistent state.
type Snapshot struct {
	Summary core.Summary
	// Collision is non-nil when a name appears in both ledgers.
	Collision error
}

// Snapshot reads the summary and the name check under one lock.
func (s *Session) Snapshot(tiers core.RatioTiers) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(tiers)
}

func (s *Session) snapshotLocked(tiers core.RatioTiers) Snapshot {
	_, collision := s.fixed.MergeView(s.variable)
	return Snapshot{
		Summary:   core.Summarize(s.totals, s.fixed, s.variable, tiers),
		Collision: collision,
	}
}

// Batch is a set of changes applied together by Apply.
type Batch struct {
	Amounts map[core.LedgerKind]map[string]float64
	Totals  *core.Totals
}

// Apply sets every amount in b and, when present, the totals. Either all
// changes land or none do.
func (s *Session) Apply(b Batch) error {
	if err := b.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(b)
}

// ApplySnapshot is Apply followed by Snapshot without releasing the lock in
// between, so the returned figures are exactly those the batch produced.
func (s *Session) ApplySnapshot(b Batch, tiers core.RatioTiers) (Snapshot, error) {
	if err := b.validate(); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.applyLocked(b); err != nil {
		return Snapshot{}, err
	}
	return s.snapshotLocked(tiers), nil
}

func (b Batch) validate() error {
	if b.Totals != nil {
		return b.Totals.Validate()
	}
	return nil
}

func (s *Session) applyLocked(b Batch) error {
	staged := map[core.LedgerKind]*core.Ledger{
		core.Fixed:    s.fixed.Clone(),
		core.Variable: s.variable.Clone(),
	}
	for kind, amounts := range b.Amounts {
		l, ok := staged[kind]
		if !ok {
			return fmt.Errorf("%w: %q", core.ErrInvalidLedger, string(kind))
		}
		names := make([]string, 0, len(amounts))
		for name := range amounts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := l.SetAmount(name, amounts[name]); err != nil {
				return fmt.Errorf("%s ledger: %w", kind, err)
			}
		}
	}

	s.fixed, s.variable = staged[core.Fixed], staged[core.Variable]
	if b.Totals != nil {
		s.totals = *b.Totals
	}
	return nil
}
