package core

import (
	"fmt"
	"time"
)

// ExportHeader names the columns of a Row, in order.
var ExportHeader = []string{
	"income",
	"savings",
	"investments",
	"fixed_total",
	"variable_total",
	"total_expenses",
	"future_limit",
	"difference",
}

// Row is the fixed-width record handed to the external recorder.
// Its field order is ExportHeader and must stay stable.
type Row []float64

// RecordedRow is a Row together with where and when it was stored.
type RecordedRow struct {
	Ref        string
	RecordedAt time.Time
	Row        Row
}

// Summary is the result of one recomputation of a session's budget.
type Summary struct {
	Totals

	FixedTotal    float64
	VariableTotal float64
	TotalExpenses float64

	FixedRatio  float64
	RatioKind   RatioKind
	Allocations []Allocation

	Difference float64
	LimitState LimitState

	// RemainingBalance is what is left of income after savings,
	// investments and all expenses; negative means overspending.
	RemainingBalance float64
}

// Summarize derives a Summary from the session inputs.
func Summarize(t Totals, fixed, variable *Ledger, tiers RatioTiers) Summary {
	fixedTotal := fixed.Total()
	variableTotal := variable.Total()
	totalExpenses := fixedTotal + variableTotal
	ratio := FixedExpenseRatio(t.Income, fixedTotal)
	diff := Difference(totalExpenses, t.FutureLimit)

	return Summary{
		Totals:           t,
		FixedTotal:       fixedTotal,
		VariableTotal:    variableTotal,
		TotalExpenses:    totalExpenses,
		FixedRatio:       ratio,
		RatioKind:        tiers.Classify(ratio),
		Allocations:      AllocationBreakdown(t.Income, t.Savings, t.Investments, fixedTotal, variableTotal),
		Difference:       diff,
		LimitState:       LimitStateOf(diff),
		RemainingBalance: t.Income - (t.Savings + t.Investments + totalExpenses),
	}
}

// OverBudget reports whether expenses, savings and investments exceed income.
func (s Summary) OverBudget() bool {
	return RoundCents(s.RemainingBalance) < 0
}

// ExportRow returns the summary as a Row in ExportHeader order, rounded to cents.
func (s Summary) ExportRow() Row {
	return Row{
		RoundCents(s.Income),
		RoundCents(s.Savings),
		RoundCents(s.Investments),
		RoundCents(s.FixedTotal),
		RoundCents(s.VariableTotal),
		RoundCents(s.TotalExpenses),
		RoundCents(s.FutureLimit),
		RoundCents(s.Difference),
	}
}

// Validate checks the row width.
func (r Row) Validate() error {
	if len(r) != len(ExportHeader) {
		return fmt.Errorf("row has %d fields, want %d", len(r), len(ExportHeader))
	}
	return nil
}

// Cells converts the row into spreadsheet cell values.
func (r Row) Cells() []any {
	out := make([]any, len(r))
	for i, v := range r {
		out[i] = v
	}
	return out
}

// Field returns the value of the named column.
func (r Row) Field(name string) (float64, bool) {
	for i, h := range ExportHeader {
		if h == name && i < len(r) {
			return r[i], true
		}
	}
	return 0, false
}
