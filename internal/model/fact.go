package model

// DailyFact is the reconciled record for one date. Every numeric field is
// either a full-precision value or nil; formatting belongs to callers.
type DailyFact struct {
	Date string `json:"date"`

	// Base fields, override-applied.
	Impressions   *float64 `json:"impressions"`
	Clicks        *float64 `json:"clicks"`
	Uniques       *float64 `json:"uniques"`
	VTRPercent    *float64 `json:"vtr_percent"`
	Visits        *float64 `json:"visits"`
	BounceRatePct *float64 `json:"bounce_rate_pct"`
	PageDepth     *float64 `json:"page_depth"`
	AvgTimeSec    *float64 `json:"avg_time_sec"`

	// Computed fields. Never overridable.
	CTRPercent      *float64 `json:"ctr_percent"`
	Freq            *float64 `json:"freq"`
	ReachabilityPct *float64 `json:"reachability_pct"`

	Verifier VerifierRow `json:"verifier"`

	DeltaImpressionsPct *float64 `json:"delta_impressions_pct"`
	DeltaClicksPct      *float64 `json:"delta_clicks_pct"`
	DeltaCTRPP          *float64 `json:"delta_ctr_pp"`
	DeltaVTRPP          *float64 `json:"delta_vtr_pp"`
	DeltaViewabilityPP  *float64 `json:"delta_viewability_pp"`

	// Overridden lists metrics whose value on this date came from an override.
	Overridden []Metric `json:"overridden,omitempty"`
}

// IsOverridden reports whether m carries an override on this date.
func (f *DailyFact) IsOverridden(m Metric) bool {
	for _, o := range f.Overridden {
		if o == m {
			return true
		}
	}
	return false
}

// TotalsFact is the campaign-level aggregate of a DailyFact stream.
type TotalsFact struct {
	Impressions *float64 `json:"impressions"`
	Clicks      *float64 `json:"clicks"`
	Visits      *float64 `json:"visits"`
	Reach       *float64 `json:"reach"`

	CTRPercent      *float64 `json:"ctr_percent"`
	Freq            *float64 `json:"freq"`
	ReachabilityPct *float64 `json:"reachability_pct"`

	VTRPercent    *float64 `json:"vtr_percent"`
	BounceRatePct *float64 `json:"bounce_rate_pct"`
	PageDepth     *float64 `json:"page_depth"`
	AvgTimeSec    *float64 `json:"avg_time_sec"`

	VerifierImpressions        *float64 `json:"verifier_impressions"`
	VerifierClicks             *float64 `json:"verifier_clicks"`
	VerifierCTRPercent         *float64 `json:"verifier_ctr_percent"`
	VerifierVTRPercent         *float64 `json:"verifier_vtr_percent"`
	VerifierViewabilityPercent *float64 `json:"verifier_viewability_percent"`
	VerifierUnsafePercent      *float64 `json:"verifier_unsafe_percent"`
	VerifierGIVTPercent        *float64 `json:"verifier_givt_percent"`
	VerifierSIVTPercent        *float64 `json:"verifier_sivt_percent"`

	DeltaImpressionsPct *float64 `json:"delta_impressions_pct"`
	DeltaClicksPct      *float64 `json:"delta_clicks_pct"`
	DeltaCTRPP          *float64 `json:"delta_ctr_pp"`
	DeltaVTRPP          *float64 `json:"delta_vtr_pp"`
	DeltaViewabilityPP  *float64 `json:"delta_viewability_pp"`
}

// Report is the full reconciled view of one campaign.
type Report struct {
	CampaignID int64       `json:"campaign_id"`
	Daily      []DailyFact `json:"daily"`
	Totals     TotalsFact  `json:"totals"`
}

// Day returns the fact for date, or nil when the date is not in the report.
func (r *Report) Day(date string) *DailyFact {
	for i := range r.Daily {
		if r.Daily[i].Date == date {
			return &r.Daily[i]
		}
	}
	return nil
}

// OverrideResult is returned after an override mutation: the refreshed fact
// for the edited date (nil when the baseline has no such date) and the
// refreshed campaign totals.
type OverrideResult struct {
	CampaignID int64      `json:"campaign_id"`
	Date       string     `json:"date"`
	Metric     Metric     `json:"metric"`
	Daily      *DailyFact `json:"daily"`
	Totals     TotalsFact `json:"totals"`
}
