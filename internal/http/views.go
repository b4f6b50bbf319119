package http

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"budgetform/internal/core"
	"budgetform/internal/session"
)

// View models handed to the templates. Money is pre-formatted in the
// configured currency; raw values are kept where an input needs them.
type (
	entryView struct {
		Name  string
		Field string // batch form field, e.g. "fixed:Housing"
		Value string // input value
	}

	ledgerView struct {
		Kind    string
		Title   string
		Entries []entryView
		Total   string
		Warning string
	}

	allocationView struct {
		Name   string
		Amount string
		Share  string
	}

	noticeView struct {
		Type    NotificationType
		Message string
	}

	summaryView struct {
		Income      string
		Savings     string
		Investments string
		FutureLimit string

		// Raw input values for the totals form.
		IncomeValue      string
		SavingsValue     string
		InvestmentsValue string
		FutureLimitValue string

		FixedTotal    string
		VariableTotal string
		TotalExpenses string

		Ratio        string
		RatioKind    string
		RatioMessage string

		Allocations []allocationView

		Difference   string
		LimitState   string
		LimitMessage string

		Remaining  string
		OverBudget bool

		Collision string
		Notices   []noticeView
	}

	rowView struct {
		Ref        string
		RecordedAt string
		Cells      []string
	}

	rowsView struct {
		Header []string
		Rows   []rowView
		Error  string
	}

	pageView struct {
		Ledgers  []ledgerView
		Summary  summaryView
		Currency string
	}
)

func ledgerTitle(kind core.LedgerKind) string {
	if kind == core.Fixed {
		return "Fixed expenses"
	}
	return "Variable expenses"
}

// inputValue renders an amount for a number input; zero stays blank so the
// placeholder shows.
func inputValue(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(core.RoundCents(v), 'f', -1, 64)
}

func (s *Server) ledgerView(sess *session.Session, kind core.LedgerKind) (ledgerView, error) {
	entries, err := sess.Entries(kind)
	if err != nil {
		return ledgerView{}, err
	}
	v := ledgerView{Kind: string(kind), Title: ledgerTitle(kind)}
	var total float64
	for _, e := range entries {
		total += e.Amount
		v.Entries = append(v.Entries, entryView{
			Name:  e.Name,
			Field: ledgerFieldName(kind, e.Name),
			Value: inputValue(e.Amount),
		})
	}
	v.Total = core.FormatAmount(total, s.currency)
	return v, nil
}

func (s *Server) summaryView(sess *session.Session) summaryView {
	return s.snapshotView(sess.Snapshot(s.tiers))
}

// snapshotView renders one consistent snapshot; callers that also record
// the summary pass the same snapshot to both.
func (s *Server) snapshotView(snap session.Snapshot) summaryView {
	sum := snap.Summary
	money := func(v float64) string { return core.FormatAmount(v, s.currency) }

	v := summaryView{
		Income:           money(sum.Income),
		Savings:          money(sum.Savings),
		Investments:      money(sum.Investments),
		FutureLimit:      money(sum.FutureLimit),
		IncomeValue:      inputValue(sum.Income),
		SavingsValue:     inputValue(sum.Savings),
		InvestmentsValue: inputValue(sum.Investments),
		FutureLimitValue: inputValue(sum.FutureLimit),
		FixedTotal:       money(sum.FixedTotal),
		VariableTotal:    money(sum.VariableTotal),
		TotalExpenses:    money(sum.TotalExpenses),
		Ratio:            core.FormatPercent(sum.FixedRatio),
		RatioKind:        string(sum.RatioKind),
		RatioMessage:     sum.RatioKind.Message(),
		Difference:       money(sum.Difference),
		LimitState:       string(sum.LimitState),
		LimitMessage:     sum.LimitState.Message(),
		Remaining:        money(sum.RemainingBalance),
		OverBudget:       sum.OverBudget(),
	}
	for _, a := range sum.Allocations {
		share := "-"
		if sum.Income > 0 {
			share = core.FormatPercent(100 * a.Amount / sum.Income)
		}
		v.Allocations = append(v.Allocations, allocationView{Name: a.Name, Amount: money(a.Amount), Share: share})
	}
	if err := snap.Collision; errors.Is(err, core.ErrNameCollision) {
		v.Collision = strings.TrimPrefix(err.Error(), core.ErrNameCollision.Error()+": ")
	}
	return v
}

func (s *Server) pageView(sess *session.Session) (pageView, error) {
	return s.pageViewWith(sess, s.summaryView(sess))
}

func (s *Server) pageViewWith(sess *session.Session, summary summaryView) (pageView, error) {
	p := pageView{Currency: s.currency, Summary: summary}
	for _, kind := range core.LedgerKinds() {
		lv, err := s.ledgerView(sess, kind)
		if err != nil {
			return pageView{}, err
		}
		p.Ledgers = append(p.Ledgers, lv)
	}
	return p, nil
}

func (s *Server) rowsView(rows []core.RecordedRow) rowsView {
	v := rowsView{Header: core.ExportHeader}
	for _, r := range rows {
		rv := rowView{Ref: r.Ref}
		if !r.RecordedAt.IsZero() {
			rv.RecordedAt = r.RecordedAt.Local().Format(time.DateTime)
		}
		for _, c := range r.Row {
			rv.Cells = append(rv.Cells, core.FormatAmount(c, s.currency))
		}
		v.Rows = append(v.Rows, rv)
	}
	return v
}
