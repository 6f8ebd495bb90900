// Package present formats reconciled values for people. Engine types stay
// full precision; rounding happens only here.
package present

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/sells-group/campaign-hub/internal/model"
)

// Null is shown in place of a missing value.
const Null = "—"

// Int rounds v and groups thousands with spaces: 1 234 567.
func Int(v *float64) string {
	if v == nil {
		return Null
	}
	return strings.ReplaceAll(humanize.Comma(int64(math.Round(*v))), ",", " ")
}

// Float2 renders v with two decimals.
func Float2(v *float64) string {
	if v == nil {
		return Null
	}
	return fmt.Sprintf("%.2f", *v)
}

// Pct renders a percentage with two decimals.
func Pct(v *float64) string {
	if v == nil {
		return Null
	}
	return fmt.Sprintf("%.2f%%", *v)
}

// PP renders a signed percentage-point difference.
func PP(v *float64) string {
	if v == nil {
		return Null
	}
	return fmt.Sprintf("%+.2f pp", noNegZero(*v))
}

// SignedPct renders a signed relative difference.
func SignedPct(v *float64) string {
	if v == nil {
		return Null
	}
	return fmt.Sprintf("%+.2f%%", noNegZero(*v))
}

// Duration renders seconds as HH:MM:SS.
func Duration(v *float64) string {
	if v == nil {
		return Null
	}
	s := int64(math.Round(*v))
	sign := ""
	if s < 0 {
		sign, s = "-", -s
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, s/3600, s%3600/60, s%60)
}

// Metric formats v the way an editable metric is displayed.
func Metric(m model.Metric, v *float64) string {
	switch m {
	case model.MetricImpressions, model.MetricClicks, model.MetricUniques, model.MetricVisits,
		model.MetricVerifImpressions, model.MetricVerifClicks, model.MetricVerifMeasuredImpressions:
		return Int(v)
	case model.MetricPageDepth:
		return Float2(v)
	case model.MetricAvgTimeSec:
		return Duration(v)
	default:
		return Pct(v)
	}
}

// noNegZero keeps values that round to zero from printing as -0.00.
func noNegZero(v float64) float64 {
	if math.Abs(v) < 0.005 {
		return 0
	}
	return v
}
