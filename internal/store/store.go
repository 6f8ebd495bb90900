// Package store persists overrides and reads the structured verifier and
// analytics tables. SQLite serves local use; Postgres serves deployments.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/campaign-hub/internal/model"
	"github.com/sells-group/campaign-hub/internal/normalize"
)

// Table names.
const (
	TableOverrides       = "daily_overrides"
	TableVerifierMapping = "verifier_campaigns"
	TableVerifierDaily   = "verifier_daily_metric"
	TableAnalyticsDaily  = "analytics_daily_metrics"
	TableImportFiles     = "import_files"
)

// overrideDeleteMarker is what editors display for an empty cell.
const overrideDeleteMarker = "—"

// ImportKind names the family of an imported file.
type ImportKind string

const (
	ImportVerifier  ImportKind = "verifier"
	ImportAnalytics ImportKind = "analytics"
)

// ImportRecord logs one imported file.
type ImportRecord struct {
	ID         string     `json:"id"`
	Kind       ImportKind `json:"kind"`
	Path       string     `json:"path"`
	CampaignID int64      `json:"campaign_id"`
	VerifierID string     `json:"verifier_id,omitempty"`
	Rows       int        `json:"rows"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Store is the persistence interface of the reconciliation service.
type Store interface {
	// Overrides
	Overrides(ctx context.Context, campaignID int64) (model.OverrideMap, error)
	SetOverride(ctx context.Context, campaignID int64, date string, metric model.Metric, value string) error

	// Verifier
	VerifierCampaignID(ctx context.Context, campaignID int64) (string, error)
	SetVerifierCampaignID(ctx context.Context, campaignID int64, verifierID string) error
	VerifierRows(ctx context.Context, verifierID string) ([]model.VerifierRow, error)
	UpsertVerifierRows(ctx context.Context, verifierID string, rows []model.VerifierRow) (int, error)

	// Analytics
	AnalyticsRows(ctx context.Context, campaignID int64) ([]model.AnalyticsRow, error)
	UpsertAnalyticsRows(ctx context.Context, rows []model.AnalyticsRow) (int, error)

	// Imports
	RecordImport(ctx context.Context, rec ImportRecord) error
	ListImports(ctx context.Context, limit int) ([]ImportRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// overrideValue trims v and reports whether it asks for deletion.
func overrideValue(v string) (string, bool) {
	v = strings.TrimSpace(v)
	return v, v == "" || v == overrideDeleteMarker
}

// pickColumns maps canonical fields to the physical columns of a table.
// For each field the first alias present among columns wins; matching is
// case-insensitive. Fields with no match are absent from the result.
func pickColumns(columns []string, table normalize.AliasTable) map[string]string {
	byLower := make(map[string]string, len(columns))
	for _, c := range columns {
		byLower[strings.ToLower(c)] = c
	}
	out := make(map[string]string, len(table))
	for field, aliases := range table {
		for _, a := range aliases {
			if c, ok := byLower[strings.ToLower(a)]; ok {
				out[field] = c
				break
			}
		}
	}
	return out
}

// quoteIdent quotes a column name read from the catalog.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// verifierSelect builds the projected column list for the verifier table.
// It returns the fields in the order they are selected.
func verifierSelect(cols map[string]string, cast func(string) string) ([]model.VerifierField, []string) {
	var fields []model.VerifierField
	var exprs []string
	for _, f := range model.VerifierFields {
		c, ok := cols[string(f)]
		if !ok {
			continue
		}
		fields = append(fields, f)
		exprs = append(exprs, cast(quoteIdent(c)))
	}
	return fields, exprs
}

// scanVerifier converts text cells into a VerifierRow.
func scanVerifier(date *string, fields []model.VerifierField, cells []*string) (model.VerifierRow, bool) {
	if date == nil {
		return model.VerifierRow{}, false
	}
	d, ok := normalize.ParseDate(*date)
	if !ok {
		return model.VerifierRow{}, false
	}
	row := model.VerifierRow{Date: d}
	for i, f := range fields {
		if cells[i] == nil {
			continue
		}
		row.Set(f, normalize.ParseNumber(*cells[i]))
	}
	return row, true
}

func verifierArgs(verifierID string, r model.VerifierRow) []any {
	return []any{
		verifierID, r.Date,
		r.Impressions, r.Clicks, r.CTRPercent, r.VTRPercent, r.ViewabilityPercent,
		r.UnsafePercent, r.GIVTPercent, r.SIVTPercent, r.MeasuredImpressions,
	}
}

var verifierColumns = []string{
	"verifier_campaign_id", "date",
	"impressions", "clicks", "ctr_percent", "vtr_percent", "viewability_percent",
	"unsafe_percent", "givt_percent", "sivt_percent", "measured_impressions",
}

// analyticsFields lists the analytics value fields in selection order.
var analyticsFields = []string{
	normalize.FieldVisits, normalize.FieldBounceRate, normalize.FieldPageDepth, normalize.FieldAvgTimeSec,
}

// analyticsSelect builds the projected value columns for the analytics
// table. It returns the fields in the order they are selected.
func analyticsSelect(cols map[string]string, cast func(string) string) ([]string, []string) {
	var fields, exprs []string
	for _, f := range analyticsFields {
		c, ok := cols[f]
		if !ok {
			continue
		}
		fields = append(fields, f)
		exprs = append(exprs, cast(quoteIdent(c)))
	}
	return fields, exprs
}

// scanAnalytics converts text cells into an AnalyticsRow. A malformed cell
// becomes nil; only an unreadable date drops the row.
func scanAnalytics(campaignID int64, date *string, fields []string, cells []*string) (model.AnalyticsRow, bool) {
	if date == nil {
		return model.AnalyticsRow{}, false
	}
	d, ok := normalize.ParseDate(*date)
	if !ok {
		return model.AnalyticsRow{}, false
	}
	row := model.AnalyticsRow{CampaignID: campaignID, Date: d}
	for i, f := range fields {
		if cells[i] == nil {
			continue
		}
		v := normalize.ParseNumber(*cells[i])
		switch f {
		case normalize.FieldVisits:
			row.Visits = v
		case normalize.FieldBounceRate:
			row.BounceRate = v
		case normalize.FieldPageDepth:
			row.PageDepth = v
		case normalize.FieldAvgTimeSec:
			row.AvgTimeSec = v
		}
	}
	return row, true
}

var analyticsColumns = []string{
	"campaign_id", "date", "visits", "bounce_rate", "page_depth", "avg_time_sec",
}

func analyticsArgs(r model.AnalyticsRow) []any {
	return []any{r.CampaignID, r.Date, r.Visits, r.BounceRate, r.PageDepth, r.AvgTimeSec}
}
