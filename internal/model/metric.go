package model

import "strings"

// Metric names a per-day value that a human may override.
type Metric string

const (
	MetricImpressions Metric = "impressions"
	MetricClicks      Metric = "clicks"
	MetricUniques     Metric = "uniques"
	MetricVisits      Metric = "visits"
	MetricBounceRate  Metric = "bounce_rate"
	MetricPageDepth   Metric = "page_depth"
	MetricAvgTimeSec  Metric = "avg_time_sec"

	MetricVerifImpressions         Metric = "verif_impressions"
	MetricVerifClicks              Metric = "verif_clicks"
	MetricVerifCTRPercent          Metric = "verif_ctr_percent"
	MetricVerifViewabilityPercent  Metric = "verif_viewability_percent"
	MetricVerifVTRPercent          Metric = "verif_vtr_percent"
	MetricVerifUnsafePercent       Metric = "verif_unsafe_percent"
	MetricVerifGIVTPercent         Metric = "verif_givt_percent"
	MetricVerifSIVTPercent         Metric = "verif_sivt_percent"
	MetricVerifMeasuredImpressions Metric = "verif_measured_impressions"
)

// VerifierPrefix disambiguates verifier overrides from base metrics that
// share a name.
const VerifierPrefix = "verif_"

// EditableMetrics lists every metric accepted by the override store, in
// display order.
var EditableMetrics = []Metric{
	MetricImpressions,
	MetricClicks,
	MetricUniques,
	MetricVisits,
	MetricBounceRate,
	MetricPageDepth,
	MetricAvgTimeSec,
	MetricVerifImpressions,
	MetricVerifClicks,
	MetricVerifCTRPercent,
	MetricVerifViewabilityPercent,
	MetricVerifVTRPercent,
	MetricVerifUnsafePercent,
	MetricVerifGIVTPercent,
	MetricVerifSIVTPercent,
	MetricVerifMeasuredImpressions,
}

// computedMetrics are derived by the engine and never accept an override.
var computedMetrics = map[string]bool{
	"ctr":              true,
	"ctr_percent":      true,
	"vtr":              true,
	"vtr_percent":      true,
	"freq":             true,
	"frequency":        true,
	"reachability":     true,
	"reachability_pct": true,
}

var editableSet = func() map[Metric]bool {
	m := make(map[Metric]bool, len(EditableMetrics))
	for _, metric := range EditableMetrics {
		m[metric] = true
	}
	return m
}()

// Editable reports whether m may be overridden.
func (m Metric) Editable() bool {
	return editableSet[m]
}

// IsComputed reports whether name refers to a derived field (ctr, vtr,
// freq, reachability).
func IsComputed(name string) bool {
	return computedMetrics[strings.ToLower(strings.TrimSpace(name))]
}
