package normalize

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/campaign-hub/internal/model"
)

// Row is one source record keyed by its original column header.
type Row map[string]any

// foldKey canonicalizes a header for case- and whitespace-insensitive
// matching of Cyrillic and Latin names alike.
func foldKey(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}

// cell returns the value stored under name, matching the header exactly
// first and by folded key second.
func (r Row) cell(name string) (any, bool) {
	if v, ok := r[name]; ok {
		return v, true
	}
	want := foldKey(name)
	for k, v := range r {
		if foldKey(k) == want {
			return v, true
		}
	}
	return nil, false
}

// Value returns the first non-null numeric value among aliases.
func (r Row) Value(aliases []string) *float64 {
	for _, name := range aliases {
		v, ok := r.cell(name)
		if !ok {
			continue
		}
		if f := ParseNumber(v); f != nil {
			return f
		}
	}
	return nil
}

// Raw returns the first present, non-blank raw cell among aliases.
func (r Row) Raw(aliases []string) (any, bool) {
	for _, name := range aliases {
		v, ok := r.cell(name)
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// Normalize maps a baseline row onto the canonical per-date shape. A cell
// that fails to parse leaves its field nil; it never aborts the row.
func Normalize(row Row, table AliasTable) model.CanonicalRow {
	var out model.CanonicalRow
	if raw, ok := row.Raw(table[FieldDate]); ok {
		if d, ok := ParseDate(raw); ok {
			out.Date = d
		}
	}
	out.Impressions = row.Value(table[FieldImpressions])
	out.Clicks = row.Value(table[FieldClicks])
	out.Uniques = row.Value(table[FieldUniques])
	out.VTRPercent = row.Value(table[FieldVTRPercent])
	return out
}

// DateOf resolves the date cell of row. summary is true when the cell is a
// total/blank marker; ok is false when the cell is neither a marker nor a
// parseable date.
func DateOf(row Row, table AliasTable) (date string, summary bool, ok bool) {
	raw, present := row.Raw(table[FieldDate])
	if !present || IsSummaryMarker(raw) {
		return "", true, true
	}
	d, parsed := ParseDate(raw)
	if !parsed {
		return "", false, false
	}
	return d, false, true
}

// NormalizeSeries normalizes an export into its per-date series, preserving
// row order. Summary rows are excluded from Rows; the last one is kept as
// Summary. Rows whose date cannot be read are counted in Skipped.
func NormalizeSeries(rows []Row, table AliasTable) model.Series {
	var s model.Series
	for i, row := range rows {
		date, summary, ok := DateOf(row, table)
		switch {
		case !ok:
			s.Skipped++
			zap.L().Debug("normalize: skipping row with unreadable date",
				zap.Int("row", i),
			)
		case summary:
			sr := Normalize(row, table)
			sr.Date = ""
			s.Summary = &sr
		default:
			cr := Normalize(row, table)
			cr.Date = date
			s.Rows = append(s.Rows, cr)
		}
	}
	return s
}

// RowsFromTable zips a header with data rows. Short rows leave trailing
// columns absent; surplus cells are dropped.
func RowsFromTable(header []string, data [][]string) []Row {
	rows := make([]Row, 0, len(data))
	for _, rec := range data {
		row := make(Row, len(header))
		for i, h := range header {
			if h == "" || i >= len(rec) {
				continue
			}
			row[h] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows
}

// maxHeaderScan bounds how far FindHeaderRow looks for a header.
const maxHeaderScan = 30

// FindHeaderRow returns the index of the first row that names the date
// column and at least one other field of table, or -1. Exports with
// preamble lines (filters, attribution notes) put the header further down.
func FindHeaderRow(rows [][]string, table AliasTable) int {
	for i := 0; i < len(rows) && i < maxHeaderScan; i++ {
		cells := make(map[string]bool, len(rows[i]))
		for _, c := range rows[i] {
			cells[foldKey(c)] = true
		}
		if !hasAny(cells, table[FieldDate]) {
			continue
		}
		for field, aliases := range table {
			if field == FieldDate {
				continue
			}
			if hasAny(cells, aliases) {
				return i
			}
		}
	}
	return -1
}

func hasAny(cells map[string]bool, aliases []string) bool {
	for _, a := range aliases {
		if cells[foldKey(a)] {
			return true
		}
	}
	return false
}
