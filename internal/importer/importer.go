// Package importer parses provider spreadsheets into rows for the
// structured verifier and analytics stores.
package importer

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-hub/internal/model"
	"github.com/sells-group/campaign-hub/internal/normalize"
)

// ErrNoHeader is returned when no row of the sheet looks like a header.
var ErrNoHeader = eris.New("importer: header row not found")

// Result is the outcome of parsing one sheet.
type Result[T any] struct {
	Rows []T
	// Skipped counts data rows whose date could not be read.
	Skipped int
	// Summary counts total rows that were dropped.
	Summary int
}

// rows locates the header and returns the data rows keyed by header name.
func rows(table [][]string, aliases normalize.AliasTable) ([]normalize.Row, error) {
	h := normalize.FindHeaderRow(table, aliases)
	if h < 0 {
		return nil, ErrNoHeader
	}
	return normalize.RowsFromTable(table[h], table[h+1:]), nil
}

// dateOf classifies a data row.
func dateOf(row normalize.Row, aliases normalize.AliasTable) (date string, summary, ok bool) {
	raw, present := row.Raw(aliases[normalize.FieldDate])
	if !present {
		return "", false, false
	}
	if normalize.IsSummaryMarker(raw) {
		return "", true, true
	}
	d, parsed := normalize.ParseDate(raw)
	return d, false, parsed
}

// Verifier parses a verifier provider report. Later rows for the same date
// replace earlier ones.
func Verifier(table [][]string, aliases normalize.AliasTable) (Result[model.VerifierRow], error) {
	var res Result[model.VerifierRow]
	data, err := rows(table, aliases)
	if err != nil {
		return res, err
	}

	index := make(map[string]int)
	for _, row := range data {
		date, summary, ok := dateOf(row, aliases)
		switch {
		case summary:
			res.Summary++
			continue
		case !ok:
			res.Skipped++
			continue
		}

		vr := model.VerifierRow{Date: date}
		for _, f := range model.VerifierFields {
			vr.Set(f, row.Value(aliases[string(f)]))
		}
		if i, seen := index[date]; seen {
			res.Rows[i] = vr
			continue
		}
		index[date] = len(res.Rows)
		res.Rows = append(res.Rows, vr)
	}

	zap.L().Debug("importer: verifier sheet parsed",
		zap.Int("rows", len(res.Rows)),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// Analytics parses a web-analytics export for one campaign. Bounce rates
// written as percentages are stored as ratios.
func Analytics(table [][]string, aliases normalize.AliasTable, campaignID int64) (Result[model.AnalyticsRow], error) {
	var res Result[model.AnalyticsRow]
	data, err := rows(table, aliases)
	if err != nil {
		return res, err
	}

	index := make(map[string]int)
	for _, row := range data {
		date, summary, ok := dateOf(row, aliases)
		switch {
		case summary:
			res.Summary++
			continue
		case !ok:
			res.Skipped++
			continue
		}

		ar := model.AnalyticsRow{
			CampaignID: campaignID,
			Date:       date,
			Visits:     row.Value(aliases[normalize.FieldVisits]),
			BounceRate: bounceRatio(row, aliases[normalize.FieldBounceRate]),
			PageDepth:  row.Value(aliases[normalize.FieldPageDepth]),
			AvgTimeSec: row.Value(aliases[normalize.FieldAvgTimeSec]),
		}
		if i, seen := index[date]; seen {
			res.Rows[i] = ar
			continue
		}
		index[date] = len(res.Rows)
		res.Rows = append(res.Rows, ar)
	}
	return res, nil
}

// bounceRatio reads a bounce rate as a ratio in 0..1. A cell written with a
// percent sign is always a percentage; a bare number above 1 is taken as one.
func bounceRatio(row normalize.Row, names []string) *float64 {
	raw, ok := row.Raw(names)
	if !ok {
		return nil
	}
	v := normalize.ParseNumber(raw)
	if v == nil {
		return nil
	}
	s, isText := raw.(string)
	if (isText && strings.HasSuffix(strings.TrimSpace(s), "%")) || *v > 1 {
		r := *v / 100
		return &r
	}
	return v
}
