package reconcile

import "github.com/sells-group/campaign-hub/internal/model"

// factAccessors reads a DailyFact field by its metric name. Override metric
// names and weight basis names share this namespace.
var factAccessors = map[string]func(*model.DailyFact) *float64{
	"impressions":  func(f *model.DailyFact) *float64 { return f.Impressions },
	"clicks":       func(f *model.DailyFact) *float64 { return f.Clicks },
	"uniques":      func(f *model.DailyFact) *float64 { return f.Uniques },
	"vtr_percent":  func(f *model.DailyFact) *float64 { return f.VTRPercent },
	"visits":       func(f *model.DailyFact) *float64 { return f.Visits },
	"bounce_rate":  func(f *model.DailyFact) *float64 { return f.BounceRatePct },
	"page_depth":   func(f *model.DailyFact) *float64 { return f.PageDepth },
	"avg_time_sec": func(f *model.DailyFact) *float64 { return f.AvgTimeSec },

	"verif_impressions":          func(f *model.DailyFact) *float64 { return f.Verifier.Impressions },
	"verif_clicks":               func(f *model.DailyFact) *float64 { return f.Verifier.Clicks },
	"verif_ctr_percent":          func(f *model.DailyFact) *float64 { return f.Verifier.CTRPercent },
	"verif_vtr_percent":          func(f *model.DailyFact) *float64 { return f.Verifier.VTRPercent },
	"verif_viewability_percent":  func(f *model.DailyFact) *float64 { return f.Verifier.ViewabilityPercent },
	"verif_unsafe_percent":       func(f *model.DailyFact) *float64 { return f.Verifier.UnsafePercent },
	"verif_givt_percent":         func(f *model.DailyFact) *float64 { return f.Verifier.GIVTPercent },
	"verif_sivt_percent":         func(f *model.DailyFact) *float64 { return f.Verifier.SIVTPercent },
	"verif_measured_impressions": func(f *model.DailyFact) *float64 { return f.Verifier.MeasuredImpressions },
}

// FieldValue returns the value of the named field of f, or nil.
func FieldValue(f *model.DailyFact, name string) *float64 {
	get, ok := factAccessors[name]
	if !ok {
		return nil
	}
	return get(f)
}

// ratio returns num/den, or nil when either is nil or den <= 0.
func ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den <= 0 {
		return nil
	}
	v := *num / *den
	return &v
}

// percent returns 100*num/den with the same nil rules as ratio.
func percent(num, den *float64) *float64 {
	r := ratio(num, den)
	if r == nil {
		return nil
	}
	v := *r * 100
	return &v
}

// pctDelta returns (verifier/base - 1) * 100.
func pctDelta(verifier, base *float64) *float64 {
	r := ratio(verifier, base)
	if r == nil {
		return nil
	}
	v := (*r - 1) * 100
	return &v
}

// ppDelta returns verifier - base in percentage points.
func ppDelta(verifier, base *float64) *float64 {
	if verifier == nil || base == nil {
		return nil
	}
	v := *verifier - *base
	return &v
}

func scaled(v *float64, k float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v * k
	return &out
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
