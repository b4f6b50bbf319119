package core

import (
	"errors"
	"fmt"
	"math"
)

const (
	Fixed    LedgerKind = "fixed"
	Variable LedgerKind = "variable"
)

type (
	// LedgerKind names one of the two expense ledgers owned by a session.
	LedgerKind string

	// Entry is a single category of a ledger, in display order.
	Entry struct {
		Name   string
		Amount float64
	}

	// Totals holds the scalar inputs of a budget that are not ledger entries.
	Totals struct {
		Income      float64
		Savings     float64
		Investments float64
		FutureLimit float64 // monthly spending limit the user plans for
	}
)

var (
	ErrDuplicateCategory = errors.New("duplicate category")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNameCollision     = errors.New("category name collision")
	ErrInvalidLedger     = errors.New("invalid ledger kind")
)

// LedgerKinds returns the ledger kinds in display order.
func LedgerKinds() []LedgerKind {
	return []LedgerKind{Fixed, Variable}
}

func (k LedgerKind) String() string {
	return string(k)
}

// IsValid returns true if k is one of the known ledger kinds
func (k LedgerKind) IsValid() bool {
	switch k {
	case Fixed, Variable:
		return true
	default:
		return false
	}
}

// ParseLedgerKind converts a form value into a LedgerKind.
func ParseLedgerKind(s string) (LedgerKind, error) {
	k := LedgerKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLedger, s)
	}
	return k, nil
}

// validAmount reports whether v can be stored as a ledger amount or a total.
func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate checks that every scalar is a finite, non-negative number.
func (t Totals) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"income", t.Income},
		{"savings", t.Savings},
		{"investments", t.Investments},
		{"future limit", t.FutureLimit},
	}
	for _, f := range fields {
		if !validAmount(f.value) {
			return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidAmount, f.name)
		}
	}
	return nil
}
