package present

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campaign-hub/internal/model"
)

func ptr(v float64) *float64 { return &v }

func TestFormatters(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*float64) string
		in   *float64
		want string
	}{
		{"int nil", Int, nil, "—"},
		{"int small", Int, ptr(999), "999"},
		{"int grouped", Int, ptr(1234567.4), "1 234 567"},
		{"int rounds", Int, ptr(1999.5), "2 000"},
		{"int negative", Int, ptr(-12000), "-12 000"},
		{"float2", Float2, ptr(2.345678), "2.35"},
		{"float2 nil", Float2, nil, "—"},
		{"pct", Pct, ptr(4.166666), "4.17%"},
		{"pct zero", Pct, ptr(0), "0.00%"},
		{"pp positive", PP, ptr(1.5), "+1.50 pp"},
		{"pp negative", PP, ptr(-10), "-10.00 pp"},
		{"pp tiny negative", PP, ptr(-0.001), "+0.00 pp"},
		{"pp nil", PP, nil, "—"},
		{"signed pct", SignedPct, ptr(-25), "-25.00%"},
		{"duration", Duration, ptr(3725), "01:02:05"},
		{"duration rounds", Duration, ptr(59.6), "00:01:00"},
		{"duration long", Duration, ptr(100000), "27:46:40"},
		{"duration nil", Duration, nil, "—"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.in))
		})
	}
}

func TestMetric(t *testing.T) {
	assert.Equal(t, "1 200", Metric(model.MetricImpressions, ptr(1200)))
	assert.Equal(t, "900", Metric(model.MetricVerifMeasuredImpressions, ptr(900)))
	assert.Equal(t, "1.80", Metric(model.MetricPageDepth, ptr(1.8)))
	assert.Equal(t, "00:01:15", Metric(model.MetricAvgTimeSec, ptr(75)))
	assert.Equal(t, "25.00%", Metric(model.MetricBounceRate, ptr(25)))
	assert.Equal(t, "72.50%", Metric(model.MetricVerifViewabilityPercent, ptr(72.5)))
	assert.Equal(t, "—", Metric(model.MetricClicks, nil))
}

func TestDailyRow_MarksOverrides(t *testing.T) {
	f := &model.DailyFact{
		Date:        "2025-01-10",
		Impressions: ptr(1200),
		Clicks:      ptr(50),
		CTRPercent:  ptr(50.0 / 1200 * 100),
		Overridden:  []model.Metric{model.MetricImpressions},
	}

	row := DailyRow(f)
	require.Len(t, row, len(reportHeader))
	assert.Equal(t, "2025-01-10", row[0])
	assert.Equal(t, "1 200*", row[1])
	assert.Equal(t, "50", row[2])
	assert.Equal(t, "4.17%", row[3])
	assert.Equal(t, "—", row[4])
}

func TestWriteReport(t *testing.T) {
	r := &model.Report{
		CampaignID: 42,
		Daily: []model.DailyFact{
			{Date: "2025-01-10", Impressions: ptr(1000), Clicks: ptr(50), DeltaImpressionsPct: ptr(-10)},
		},
		Totals: model.TotalsFact{Impressions: ptr(1000), Reach: ptr(700), DeltaCTRPP: ptr(0)},
	}

	var buf bytes.Buffer
	WriteReport(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "Campaign 42")
	assert.Contains(t, out, "2025-01-10")
	assert.Contains(t, out, "-10.00%")
	assert.Contains(t, out, "+0.00 pp")
	assert.Contains(t, out, "700")
	assert.Len(t, TotalsRow(&r.Totals), len(reportHeader))
}
