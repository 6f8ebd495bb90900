package reconcile

import (
	"strings"

	"github.com/sells-group/campaign-hub/internal/model"
	"github.com/sells-group/campaign-hub/internal/normalize"
)

// Input is everything the engine needs for one campaign. Maps are keyed by
// YYYY-MM-DD; a missing key means that source has no data for the date.
type Input struct {
	CampaignID int64
	Series     model.Series
	Analytics  map[string]model.AnalyticsRow
	Verifier   map[string]model.VerifierRow
	Overrides  model.OverrideMap
	// Reach is the authoritative campaign reach. Reach is not additive
	// across days, so it is never summed from the series.
	Reach *float64
}

// Engine reconciles sources into daily facts and totals. It is pure and
// safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine. Chains missing from cfg keep their defaults.
func NewEngine(cfg Config) (*Engine, error) {
	cfg = cfg.merged()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Reconcile produces the daily facts, in series order, and the totals.
func (e *Engine) Reconcile(in Input) model.Report {
	agg := newAggregator(e.cfg)
	report := model.Report{
		CampaignID: in.CampaignID,
		Daily:      make([]model.DailyFact, 0, len(in.Series.Rows)),
	}

	for _, row := range in.Series.Rows {
		var a *model.AnalyticsRow
		if r, ok := in.Analytics[row.Date]; ok {
			a = &r
		}
		var v *model.VerifierRow
		if r, ok := in.Verifier[row.Date]; ok {
			v = &r
		}
		fact := e.day(row, a, v, in.Overrides[row.Date])
		agg.add(&fact)
		report.Daily = append(report.Daily, fact)
	}

	report.Totals = agg.totals(in.Reach)
	return report
}

// day builds one DailyFact. Overrides replace source values; they never
// touch computed fields.
func (e *Engine) day(row model.CanonicalRow, a *model.AnalyticsRow, v *model.VerifierRow, ov map[model.Metric]string) model.DailyFact {
	f := model.DailyFact{Date: row.Date}
	apply := func(src *float64, m model.Metric) *float64 {
		text, ok := ov[m]
		if !ok || strings.TrimSpace(text) == "" {
			return clone(src)
		}
		f.Overridden = append(f.Overridden, m)
		return normalize.ParseNumber(text)
	}

	f.Impressions = apply(row.Impressions, model.MetricImpressions)
	f.Clicks = apply(row.Clicks, model.MetricClicks)
	f.Uniques = apply(row.Uniques, model.MetricUniques)
	f.VTRPercent = clone(row.VTRPercent)

	var an model.AnalyticsRow
	if a != nil {
		an = *a
	}
	f.Visits = apply(an.Visits, model.MetricVisits)
	// Stored as a ratio; displayed and overridden as a percentage.
	f.BounceRatePct = apply(scaled(an.BounceRate, 100), model.MetricBounceRate)
	f.PageDepth = apply(an.PageDepth, model.MetricPageDepth)
	f.AvgTimeSec = apply(an.AvgTimeSec, model.MetricAvgTimeSec)

	// A day without delivered impressions has no meaningful ratios.
	if f.Impressions != nil && *f.Impressions > 0 {
		f.CTRPercent = percent(f.Clicks, f.Impressions)
		f.Freq = ratio(f.Impressions, f.Uniques)
		f.ReachabilityPct = percent(f.Visits, f.Clicks)
	}

	var vr model.VerifierRow
	if v != nil {
		vr = *v
	}
	vr.Date = row.Date
	for _, field := range model.VerifierFields {
		vr.Set(field, apply(vr.Get(field), field.OverrideMetric()))
	}
	f.Verifier = vr

	f.DeltaImpressionsPct = pctDelta(vr.Impressions, f.Impressions)
	f.DeltaClicksPct = pctDelta(vr.Clicks, f.Clicks)
	f.DeltaCTRPP = ppDelta(vr.CTRPercent, f.CTRPercent)
	f.DeltaVTRPP = ppDelta(vr.VTRPercent, f.VTRPercent)
	// There is no baseline viewability; the delta is taken against zero.
	f.DeltaViewabilityPP = clone(vr.ViewabilityPercent)

	return f
}
