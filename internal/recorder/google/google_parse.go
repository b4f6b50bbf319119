package google

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"budgetform/internal/core"
)

// parseRows converts a values matrix (as returned by the Sheets API) into
// recorded rows. Rows that do not carry a full set of numeric cells, such as
// the header, are skipped. Refs are the 1-based sheet row of each entry.
func parseRows(sheet string, values [][]any) []core.RecordedRow {
	width := len(core.ExportHeader)
	var out []core.RecordedRow
	for i, raw := range values {
		if len(raw) < width {
			continue
		}
		row := make(core.Row, width)
		ok := true
		for j := 0; j < width; j++ {
			v, good := parseCell(raw[j])
			if !good {
				ok = false
				break
			}
			row[j] = v
		}
		if !ok {
			continue
		}
		out = append(out, core.RecordedRow{
			Ref: fmt.Sprintf("%s!A%d:H%d", sheet, i+1, i+1),
			Row: row,
		})
	}
	return out
}

// parseCell accepts unformatted numbers as well as formatted strings like
// "$1,234.50" or "-100".
func parseCell(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		neg := strings.HasPrefix(s, "-")
		s = strings.TrimPrefix(s, "-")
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, false
		}
		if neg {
			d = d.Neg()
		}
		return d.InexactFloat64(), true
	}
	return 0, false
}
