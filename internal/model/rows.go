package model

// CanonicalRow is one calendar date of the baseline export after alias
// resolution and numeric coercion.
type CanonicalRow struct {
	Date        string   `json:"date"`
	Impressions *float64 `json:"impressions"`
	Clicks      *float64 `json:"clicks"`
	Uniques     *float64 `json:"uniques"`
	VTRPercent  *float64 `json:"vtr_percent"`
}

// Series is the ordered per-date baseline. Summary holds the export's own
// total row, which never takes part in per-date processing.
type Series struct {
	Rows    []CanonicalRow `json:"rows"`
	Summary *CanonicalRow  `json:"summary,omitempty"`
	Skipped int            `json:"skipped"`
}

// AnalyticsRow holds one day of web-analytics data for a campaign.
// BounceRate is a ratio in 0..1.
type AnalyticsRow struct {
	CampaignID int64    `json:"campaign_id"`
	Date       string   `json:"date"`
	Visits     *float64 `json:"visits"`
	BounceRate *float64 `json:"bounce_rate"`
	PageDepth  *float64 `json:"page_depth"`
	AvgTimeSec *float64 `json:"avg_time_sec"`
}

// VerifierRow holds one day of third-party verification data.
type VerifierRow struct {
	Date                string   `json:"date"`
	Impressions         *float64 `json:"impressions"`
	Clicks              *float64 `json:"clicks"`
	CTRPercent          *float64 `json:"ctr_percent"`
	VTRPercent          *float64 `json:"vtr_percent"`
	ViewabilityPercent  *float64 `json:"viewability_percent"`
	UnsafePercent       *float64 `json:"unsafe_percent"`
	GIVTPercent         *float64 `json:"givt_percent"`
	SIVTPercent         *float64 `json:"sivt_percent"`
	MeasuredImpressions *float64 `json:"measured_impressions"`
}

// VerifierField names one of the independently resolved verifier columns.
type VerifierField string

const (
	VerifierImpressions         VerifierField = "impressions"
	VerifierClicks              VerifierField = "clicks"
	VerifierCTRPercent          VerifierField = "ctr_percent"
	VerifierVTRPercent          VerifierField = "vtr_percent"
	VerifierViewabilityPercent  VerifierField = "viewability_percent"
	VerifierUnsafePercent       VerifierField = "unsafe_percent"
	VerifierGIVTPercent         VerifierField = "givt_percent"
	VerifierSIVTPercent         VerifierField = "sivt_percent"
	VerifierMeasuredImpressions VerifierField = "measured_impressions"
)

// VerifierFields lists the verifier columns in canonical order.
var VerifierFields = []VerifierField{
	VerifierImpressions,
	VerifierClicks,
	VerifierCTRPercent,
	VerifierVTRPercent,
	VerifierViewabilityPercent,
	VerifierUnsafePercent,
	VerifierGIVTPercent,
	VerifierSIVTPercent,
	VerifierMeasuredImpressions,
}

// Get returns the value of field f.
func (r *VerifierRow) Get(f VerifierField) *float64 {
	switch f {
	case VerifierImpressions:
		return r.Impressions
	case VerifierClicks:
		return r.Clicks
	case VerifierCTRPercent:
		return r.CTRPercent
	case VerifierVTRPercent:
		return r.VTRPercent
	case VerifierViewabilityPercent:
		return r.ViewabilityPercent
	case VerifierUnsafePercent:
		return r.UnsafePercent
	case VerifierGIVTPercent:
		return r.GIVTPercent
	case VerifierSIVTPercent:
		return r.SIVTPercent
	case VerifierMeasuredImpressions:
		return r.MeasuredImpressions
	}
	return nil
}

// Set assigns v to field f.
func (r *VerifierRow) Set(f VerifierField, v *float64) {
	switch f {
	case VerifierImpressions:
		r.Impressions = v
	case VerifierClicks:
		r.Clicks = v
	case VerifierCTRPercent:
		r.CTRPercent = v
	case VerifierVTRPercent:
		r.VTRPercent = v
	case VerifierViewabilityPercent:
		r.ViewabilityPercent = v
	case VerifierUnsafePercent:
		r.UnsafePercent = v
	case VerifierGIVTPercent:
		r.GIVTPercent = v
	case VerifierSIVTPercent:
		r.SIVTPercent = v
	case VerifierMeasuredImpressions:
		r.MeasuredImpressions = v
	}
}

// OverrideMetric returns the override metric name for a verifier field.
func (f VerifierField) OverrideMetric() Metric {
	return Metric(VerifierPrefix + string(f))
}

// OverrideMap maps date -> metric -> raw override text as typed.
type OverrideMap map[string]map[Metric]string

// Lookup returns the override text for (date, metric), if any.
func (m OverrideMap) Lookup(date string, metric Metric) (string, bool) {
	day, ok := m[date]
	if !ok {
		return "", false
	}
	v, ok := day[metric]
	return v, ok
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
