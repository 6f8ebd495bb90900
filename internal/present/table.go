package present

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/sells-group/campaign-hub/internal/model"
)

var reportHeader = []string{
	"Date", "Impr", "Clicks", "CTR", "Uniques", "Freq", "Visits", "Reach %",
	"Bounce", "Depth", "Time", "V.Impr", "V.Clicks", "Δ Impr", "Δ Clicks", "Δ CTR", "Viewab.",
}

// overriddenMark flags a cell whose value came from a manual override.
const overriddenMark = "*"

// WriteReport renders r as a text table with a totals footer.
func WriteReport(w io.Writer, r *model.Report) {
	if _, err := io.WriteString(w, "Campaign "+strconv.FormatInt(r.CampaignID, 10)+"\n"); err != nil {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(reportHeader)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for i := range r.Daily {
		table.Append(DailyRow(&r.Daily[i]))
	}
	table.SetFooter(TotalsRow(&r.Totals))
	table.Render()
}

// DailyRow formats one fact in report column order. Overridden cells carry
// a trailing asterisk.
func DailyRow(f *model.DailyFact) []string {
	mark := func(m model.Metric, s string) string {
		if f.IsOverridden(m) {
			return s + overriddenMark
		}
		return s
	}
	return []string{
		f.Date,
		mark(model.MetricImpressions, Int(f.Impressions)),
		mark(model.MetricClicks, Int(f.Clicks)),
		Pct(f.CTRPercent),
		mark(model.MetricUniques, Int(f.Uniques)),
		Float2(f.Freq),
		mark(model.MetricVisits, Int(f.Visits)),
		Pct(f.ReachabilityPct),
		mark(model.MetricBounceRate, Pct(f.BounceRatePct)),
		mark(model.MetricPageDepth, Float2(f.PageDepth)),
		mark(model.MetricAvgTimeSec, Duration(f.AvgTimeSec)),
		mark(model.MetricVerifImpressions, Int(f.Verifier.Impressions)),
		mark(model.MetricVerifClicks, Int(f.Verifier.Clicks)),
		SignedPct(f.DeltaImpressionsPct),
		SignedPct(f.DeltaClicksPct),
		PP(f.DeltaCTRPP),
		mark(model.MetricVerifViewabilityPercent, Pct(f.Verifier.ViewabilityPercent)),
	}
}

// TotalsRow formats the totals in report column order.
func TotalsRow(t *model.TotalsFact) []string {
	return []string{
		"Total",
		Int(t.Impressions),
		Int(t.Clicks),
		Pct(t.CTRPercent),
		Int(t.Reach),
		Float2(t.Freq),
		Int(t.Visits),
		Pct(t.ReachabilityPct),
		Pct(t.BounceRatePct),
		Float2(t.PageDepth),
		Duration(t.AvgTimeSec),
		Int(t.VerifierImpressions),
		Int(t.VerifierClicks),
		SignedPct(t.DeltaImpressionsPct),
		SignedPct(t.DeltaClicksPct),
		PP(t.DeltaCTRPP),
		Pct(t.VerifierViewabilityPercent),
	}
}
