// Package core holds the budget domain: expense ledgers and the pure
// calculations derived from them.
//
// This file contains the aggregate calculator. Every function is pure and
// works on totals already computed from the ledgers.
package core

import (
	"errors"
	"fmt"
)

const (
	Healthy  RatioKind = "healthy"
	Moderate RatioKind = "moderate"
	High     RatioKind = "high"
)

const (
	Under LimitState = "under"
	Equal LimitState = "equal"
	Over  LimitState = "over"
)

// Allocation names used by AllocationBreakdown.
const (
	AllocSavingsInvestments = "Savings+Investments"
	AllocFixed              = "Fixed"
	AllocVariable           = "Variable"
	AllocUnallocated        = "Unallocated"
)

type (
	// RatioKind classifies the share of income spent on fixed expenses.
	RatioKind string

	// LimitState tells whether total expenses are under, at or over the limit.
	LimitState string

	// Allocation is one slice of the monthly income.
	Allocation struct {
		Name   string
		Amount float64
	}

	// RatioTiers are the inclusive cut points of the ratio classification:
	// ratio > High is High, Moderate <= ratio <= High is Moderate.
	RatioTiers struct {
		Moderate float64 `toml:"moderate"`
		High     float64 `toml:"high"`
	}
)

// DefaultRatioTiers is the canonical threshold set.
var DefaultRatioTiers = RatioTiers{Moderate: 60, High: 80}

// Validate checks that the tiers are ordered and non-negative.
func (t RatioTiers) Validate() error {
	if !validAmount(t.Moderate) || !validAmount(t.High) {
		return errors.New("ratio tiers must be non-negative numbers")
	}
	if t.Moderate > t.High {
		return fmt.Errorf("moderate tier %.2f is above high tier %.2f", t.Moderate, t.High)
	}
	return nil
}

// Classify maps a fixed expense ratio to its tier.
func (t RatioTiers) Classify(ratio float64) RatioKind {
	switch {
	case ratio > t.High:
		return High
	case ratio >= t.Moderate:
		return Moderate
	default:
		return Healthy
	}
}

// Message returns the user-facing advice for the tier.
func (k RatioKind) Message() string {
	switch k {
	case High:
		return "Your fixed expenses take a large share of your income. Consider reducing them."
	case Moderate:
		return "Your fixed expenses are moderate. Keep an eye on them."
	default:
		return "Your fixed expenses are at a healthy level."
	}
}

// FixedExpenseRatio returns fixedTotal as a percentage of income.
// It is 0 when income is 0 and is not clamped at 100.
func FixedExpenseRatio(income, fixedTotal float64) float64 {
	if income == 0 {
		return 0
	}
	return 100 * fixedTotal / income
}

// RatioMessage classifies ratio with DefaultRatioTiers.
func RatioMessage(ratio float64) RatioKind {
	return DefaultRatioTiers.Classify(ratio)
}

// AllocationBreakdown splits income into savings and investments, fixed and
// variable expenses. Unallocated is appended only when it is positive.
func AllocationBreakdown(income, savings, investments, fixedTotal, variableTotal float64) []Allocation {
	out := []Allocation{
		{Name: AllocSavingsInvestments, Amount: savings + investments},
		{Name: AllocFixed, Amount: fixedTotal},
		{Name: AllocVariable, Amount: variableTotal},
	}
	unallocated := max(0, income-(savings+investments+fixedTotal+variableTotal))
	if unallocated > 0 {
		out = append(out, Allocation{Name: AllocUnallocated, Amount: unallocated})
	}
	return out
}

// Difference returns totalExpenses - limit; negative means under the limit.
func Difference(totalExpenses, limit float64) float64 {
	return totalExpenses - limit
}

// LimitStateOf maps a difference to its state. The difference is compared
// at cent precision so float noise does not hide an exact match.
func LimitStateOf(diff float64) LimitState {
	switch c := RoundCents(diff); {
	case c < 0:
		return Under
	case c > 0:
		return Over
	default:
		return Equal
	}
}

// Message returns the user-facing text for the state.
func (s LimitState) Message() string {
	switch s {
	case Under:
		return "You are under your planned limit."
	case Over:
		return "You are over your planned limit."
	default:
		return "You are exactly at your planned limit."
	}
}
