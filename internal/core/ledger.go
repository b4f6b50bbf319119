package core

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Ledger is an ordered mapping from expense category name to amount.
// Names are unique and case-sensitive; amounts are never negative.
// Insertion order is the display order and has no effect on totals.
//
// A Ledger is not safe for concurrent use; the owning session serializes access.
type Ledger struct {
	names   []string
	amounts map[string]float64
}

// NewLedger returns a ledger pre-seeded with the given categories at 0.
// Blank and repeated seed names are skipped.
func NewLedger(seed ...string) *Ledger {
	l := &Ledger{amounts: make(map[string]float64, len(seed))}
	for _, name := range seed {
		_ = l.AddCategory(name)
	}
	return l
}

// AddCategory appends name with amount 0 at the end of the ledger.
func (l *Ledger) AddCategory(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", ErrDuplicateCategory)
	}
	if _, ok := l.amounts[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateCategory, name)
	}
	if l.amounts == nil {
		l.amounts = make(map[string]float64)
	}
	l.names = append(l.names, name)
	l.amounts[name] = 0
	return nil
}

// SetAmount overwrites the amount of an existing category in place.
func (l *Ledger) SetAmount(name string, amount float64) error {
	if _, ok := l.amounts[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	if !validAmount(amount) {
		return fmt.Errorf("%w: %s for %q", ErrInvalidAmount, strconv.FormatFloat(amount, 'f', -1, 64), name)
	}
	l.amounts[name] = amount
	return nil
}

// RemoveCategory deletes name; the remaining entries keep their order.
func (l *Ledger) RemoveCategory(name string) error {
	if _, ok := l.amounts[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	delete(l.amounts, name)
	if i := slices.Index(l.names, name); i >= 0 {
		l.names = slices.Delete(l.names, i, i+1)
	}
	return nil
}

// Amount returns the amount stored for name.
func (l *Ledger) Amount(name string) (float64, bool) {
	v, ok := l.amounts[name]
	return v, ok
}

// Has reports whether name is a category of the ledger.
func (l *Ledger) Has(name string) bool {
	_, ok := l.amounts[name]
	return ok
}

// Len returns the number of categories.
func (l *Ledger) Len() int {
	return len(l.names)
}

// Names returns the category names in display order.
func (l *Ledger) Names() []string {
	return slices.Clone(l.names)
}

// Entries returns a copy of the ledger content in display order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.names))
	for _, name := range l.names {
		out = append(out, Entry{Name: name, Amount: l.amounts[name]})
	}
	return out
}

// Total returns the sum of all current amounts; an empty ledger sums to 0.
func (l *Ledger) Total() float64 {
	var sum float64
	for _, name := range l.names {
		sum += l.amounts[name]
	}
	return sum
}

// Clone returns an independent copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		names:   slices.Clone(l.names),
		amounts: make(map[string]float64, len(l.amounts)),
	}
	for k, v := range l.amounts {
		c.amounts[k] = v
	}
	return c
}

// MergeView combines l and other into a read-only view for reporting,
// l's entries first. A name present in both ledgers is reported as
// ErrNameCollision instead of letting one amount overwrite the other.
func (l *Ledger) MergeView(other *Ledger) (View, error) {
	var collisions []string
	for _, name := range other.names {
		if l.Has(name) {
			collisions = append(collisions, strconv.Quote(name))
		}
	}
	if len(collisions) > 0 {
		return View{}, fmt.Errorf("%w: %s", ErrNameCollision, strings.Join(collisions, ", "))
	}

	entries := append(l.Entries(), other.Entries()...)
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.Name] = i
	}
	return View{entries: entries, index: index}, nil
}

// View is an immutable, ordered combination of ledgers.
type View struct {
	entries []Entry
	index   map[string]int
}

// Get returns the amount for name.
func (v View) Get(name string) (float64, bool) {
	i, ok := v.index[name]
	if !ok {
		return 0, false
	}
	return v.entries[i].Amount, true
}

// Len returns the number of entries in the view.
func (v View) Len() int {
	return len(v.entries)
}

// Entries returns a copy of the view content in order.
func (v View) Entries() []Entry {
	return slices.Clone(v.entries)
}

// Total returns the sum of all entries.
func (v View) Total() float64 {
	var sum float64
	for _, e := range v.entries {
		sum += e.Amount
	}
	return sum
}
