package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"budgetform/internal/core"
)

var (
	colorBorder = lipgloss.Color("#575653")
	colorAccent = lipgloss.Color("#3AA99F")
	colorGreen  = lipgloss.Color("#879A39")
	colorOrange = lipgloss.Color("#DA702C")
	colorRed    = lipgloss.Color("#D14D41")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle   = lipgloss.NewStyle().Foreground(colorOrange)
	badStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

// renderTable draws a rounded table; every column but the first is right
// aligned.
func renderTable(title string, headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		})

	var b strings.Builder
	if title != "" {
		b.WriteString(titleStyle.Render(title))
		b.WriteString("\n")
	}
	b.WriteString(t.Render())
	b.WriteString("\n")
	return b.String()
}

func ratioStyle(kind core.RatioKind) lipgloss.Style {
	switch kind {
	case core.Healthy:
		return okStyle
	case core.Moderate:
		return warnStyle
	default:
		return badStyle
	}
}

func limitStyle(state core.LimitState) lipgloss.Style {
	if state == core.Over {
		return badStyle
	}
	return okStyle
}

// renderSummary prints every derived figure of s.
func renderSummary(s core.Summary, currency string, collision error) string {
	money := func(v float64) string { return core.FormatAmount(v, currency) }

	var b strings.Builder
	b.WriteString(renderTable("Budget summary", []string{"Figure", "Amount"}, [][]string{
		{"Income", money(s.Income)},
		{"Savings", money(s.Savings)},
		{"Investments", money(s.Investments)},
		{"Fixed expenses", money(s.FixedTotal)},
		{"Variable expenses", money(s.VariableTotal)},
		{"Total expenses", money(s.TotalExpenses)},
		{"Future limit", money(s.FutureLimit)},
		{"Difference", money(s.Difference)},
		{"Remaining", money(s.RemainingBalance)},
	}))

	rows := make([][]string, 0, len(s.Allocations))
	for _, a := range s.Allocations {
		share := "-"
		if s.Income > 0 {
			share = core.FormatPercent(100 * a.Amount / s.Income)
		}
		rows = append(rows, []string{a.Name, money(a.Amount), share})
	}
	b.WriteString(renderTable("Allocations", []string{"Slice", "Amount", "Share"}, rows))

	fmt.Fprintf(&b, "Fixed expense ratio: %s  %s\n",
		core.FormatPercent(s.FixedRatio), ratioStyle(s.RatioKind).Render(s.RatioKind.Message()))
	fmt.Fprintf(&b, "Limit: %s\n", limitStyle(s.LimitState).Render(s.LimitState.Message()))
	if s.OverBudget() {
		b.WriteString(badStyle.Render("Over budget by " + money(-s.RemainingBalance) + "."))
	} else {
		b.WriteString(okStyle.Render("On track, " + money(s.RemainingBalance) + " left."))
	}
	b.WriteString("\n")
	if collision != nil {
		fmt.Fprintf(&b, "%s\n", warnStyle.Render("Warning: "+collision.Error()))
	}
	return b.String()
}
