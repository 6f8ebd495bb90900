package reconcile

import "github.com/sells-group/campaign-hub/internal/model"

// sum accumulates a simple total. seen distinguishes "no contributing day"
// from a genuine zero.
type sum struct {
	total float64
	seen  bool
}

func (s *sum) add(v *float64) {
	if v == nil {
		return
	}
	s.total += *v
	s.seen = true
}

func (s *sum) value() *float64 {
	if !s.seen {
		return nil
	}
	v := s.total
	return &v
}

// weighted accumulates a weighted average as numerator and denominator.
type weighted struct {
	num, den float64
}

func (w *weighted) value() *float64 {
	if w.den <= 0 {
		return nil
	}
	v := w.num / w.den
	return &v
}

var summedFields = []string{
	"impressions",
	"clicks",
	"visits",
	"verif_impressions",
	"verif_clicks",
}

// aggregator folds the date-ordered DailyFact stream into campaign totals.
type aggregator struct {
	cfg     Config
	metrics []string
	sums    map[string]*sum
	avgs    map[string]*weighted
}

func newAggregator(cfg Config) *aggregator {
	a := &aggregator{
		cfg:     cfg,
		metrics: cfg.weightedMetrics(),
		sums:    make(map[string]*sum, len(summedFields)),
		avgs:    make(map[string]*weighted, len(cfg.Weights)),
	}
	for _, f := range summedFields {
		a.sums[f] = &sum{}
	}
	for _, m := range a.metrics {
		a.avgs[m] = &weighted{}
	}
	return a
}

// add updates every accumulator once for the fact's date.
func (a *aggregator) add(f *model.DailyFact) {
	for _, name := range summedFields {
		a.sums[name].add(FieldValue(f, name))
	}
	for _, metric := range a.metrics {
		v := FieldValue(f, metric)
		if v == nil {
			continue
		}
		w := a.weight(f, metric)
		if w == nil {
			continue
		}
		acc := a.avgs[metric]
		acc.num += *v * *w
		acc.den += *w
	}
}

// weight walks the metric's fallback chain and returns the first non-null
// basis for the date.
func (a *aggregator) weight(f *model.DailyFact, metric string) *float64 {
	for _, basis := range a.cfg.Weights[metric] {
		if w := FieldValue(f, basis); w != nil {
			return w
		}
	}
	return nil
}

func (a *aggregator) avg(metric string) *float64 {
	acc, ok := a.avgs[metric]
	if !ok {
		return nil
	}
	return acc.value()
}

// totals closes the stream. Totals-level deltas are computed from the
// aggregates themselves, not averaged from daily deltas.
func (a *aggregator) totals(reach *float64) model.TotalsFact {
	t := model.TotalsFact{
		Impressions: a.sums["impressions"].value(),
		Clicks:      a.sums["clicks"].value(),
		Visits:      a.sums["visits"].value(),
		Reach:       clone(reach),

		VTRPercent:    a.avg("vtr_percent"),
		BounceRatePct: a.avg("bounce_rate"),
		PageDepth:     a.avg("page_depth"),
		AvgTimeSec:    a.avg("avg_time_sec"),

		VerifierImpressions:        a.sums["verif_impressions"].value(),
		VerifierClicks:             a.sums["verif_clicks"].value(),
		VerifierCTRPercent:         a.avg("verif_ctr_percent"),
		VerifierVTRPercent:         a.avg("verif_vtr_percent"),
		VerifierViewabilityPercent: a.avg("verif_viewability_percent"),
		VerifierUnsafePercent:      a.avg("verif_unsafe_percent"),
		VerifierGIVTPercent:        a.avg("verif_givt_percent"),
		VerifierSIVTPercent:        a.avg("verif_sivt_percent"),
	}

	t.CTRPercent = percent(t.Clicks, t.Impressions)
	t.Freq = ratio(t.Impressions, t.Reach)
	t.ReachabilityPct = percent(t.Visits, t.Clicks)

	t.DeltaImpressionsPct = pctDelta(t.VerifierImpressions, t.Impressions)
	t.DeltaClicksPct = pctDelta(t.VerifierClicks, t.Clicks)
	t.DeltaCTRPP = ppDelta(t.VerifierCTRPercent, t.CTRPercent)
	t.DeltaVTRPP = ppDelta(t.VerifierVTRPercent, t.VTRPercent)
	t.DeltaViewabilityPP = clone(t.VerifierViewabilityPercent)

	return t
}
