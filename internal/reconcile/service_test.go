package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campaign-hub/internal/model"
	"github.com/sells-group/campaign-hub/internal/normalize"
	"github.com/sells-group/campaign-hub/internal/resilience"
	"github.com/sells-group/campaign-hub/internal/source"
	"github.com/sells-group/campaign-hub/internal/verifier"
)

type fakeBaseline struct {
	rows map[int64][]normalize.Row
	err  error
}

func (b *fakeBaseline) Rows(_ context.Context, campaignID int64) ([]normalize.Row, error) {
	if b.err != nil {
		return nil, b.err
	}
	rows, ok := b.rows[campaignID]
	if !ok {
		return nil, source.ErrNoSnapshot
	}
	return rows, nil
}

type fakeAnalytics struct {
	rows []model.AnalyticsRow
	err  error
}

func (a *fakeAnalytics) AnalyticsRows(context.Context, int64) ([]model.AnalyticsRow, error) {
	return a.rows, a.err
}

type fakeOverrides struct {
	mu      sync.Mutex
	data    map[int64]model.OverrideMap
	readErr error
	saveErr error
}

func newFakeOverrides() *fakeOverrides {
	return &fakeOverrides{data: make(map[int64]model.OverrideMap)}
}

func (o *fakeOverrides) Overrides(_ context.Context, campaignID int64) (model.OverrideMap, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.readErr != nil {
		return nil, o.readErr
	}
	out := make(model.OverrideMap)
	for date, day := range o.data[campaignID] {
		out[date] = make(map[model.Metric]string, len(day))
		for m, v := range day {
			out[date][m] = v
		}
	}
	return out, nil
}

func (o *fakeOverrides) SetOverride(_ context.Context, campaignID int64, date string, metric model.Metric, value string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.saveErr != nil {
		return o.saveErr
	}
	m, ok := o.data[campaignID]
	if !ok {
		m = make(model.OverrideMap)
		o.data[campaignID] = m
	}
	if value == "" {
		delete(m[date], metric)
		return nil
	}
	if m[date] == nil {
		m[date] = make(map[model.Metric]string)
	}
	m[date][metric] = value
	return nil
}

type failingReach struct{}

func (failingReach) Reach(context.Context, int64, model.Series) (*float64, error) {
	return nil, errors.New("reach api down")
}

func sheetRows() []normalize.Row {
	return []normalize.Row{
		{"День": "Итого", "Показы": "2 000", "Охват": "700"},
		{
			"День": "2025-01-10", "Показы": "1000", "Переходы": "50", "Охват": "400",
			"verif_impressions": "900", "verif_clicks": "45", "verif_ctr_percent": "5",
		},
		{"День": "11.01.2025", "Показы": "1000", "Переходы": "20", "Охват": "450"},
		{"День": "not a date", "Показы": "5"},
	}
}

func newTestService(t *testing.T, ov *fakeOverrides, mutate func(*Deps)) *Service {
	t.Helper()
	deps := Deps{
		Baseline:  &fakeBaseline{rows: map[int64][]normalize.Row{42: sheetRows()}},
		Analytics: &fakeAnalytics{rows: []model.AnalyticsRow{{CampaignID: 42, Date: "2025-01-10", Visits: f(40), BounceRate: f(0.25)}}},
		Overrides: ov,
		Verifier:  verifier.NewResolver(nil, nil),
		Retry:     resilience.RetryConfig{MaxAttempts: 1},
	}
	if mutate != nil {
		mutate(&deps)
	}
	return NewService(newTestEngine(t), deps)
}

func TestService_Campaign(t *testing.T) {
	svc := newTestService(t, newFakeOverrides(), nil)

	r, err := svc.Campaign(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, r.Daily, 2)
	assert.Equal(t, "2025-01-10", r.Daily[0].Date)
	assert.Equal(t, "2025-01-11", r.Daily[1].Date)

	d := r.Daily[0]
	assert.InDelta(t, -10.0, *d.DeltaImpressionsPct, 1e-9)
	assert.InDelta(t, -10.0, *d.DeltaClicksPct, 1e-9)
	assert.InDelta(t, 0.0, *d.DeltaCTRPP, 1e-9)
	assert.InDelta(t, 25.0, *d.BounceRatePct, 1e-9)
	assert.Nil(t, r.Daily[1].Visits)

	// Reach comes from the export's total row, not the sum of daily uniques.
	assert.Equal(t, 700.0, *r.Totals.Reach)
	assert.Equal(t, 2000.0, *r.Totals.Impressions)
}

func TestService_ApplyOverrideAndRevert(t *testing.T) {
	ov := newFakeOverrides()
	svc := newTestService(t, ov, nil)
	ctx := context.Background()

	res, err := svc.ApplyOverride(ctx, 42, "2025-01-10", "impressions", "1200")
	require.NoError(t, err)
	require.NotNil(t, res.Daily)
	assert.Equal(t, model.MetricImpressions, res.Metric)
	assert.InDelta(t, 50.0/1200.0*100, *res.Daily.CTRPercent, 1e-9)
	assert.InDelta(t, -25.0, *res.Daily.DeltaImpressionsPct, 1e-9)
	assert.Equal(t, 2200.0, *res.Totals.Impressions)

	// Re-applying the same value is a no-op.
	again, err := svc.ApplyOverride(ctx, 42, "2025-01-10", "impressions", "1200")
	require.NoError(t, err)
	assert.Equal(t, res, again)

	reverted, err := svc.ApplyOverride(ctx, 42, "2025-01-10", "impressions", "")
	require.NoError(t, err)
	assert.InDelta(t, -10.0, *reverted.Daily.DeltaImpressionsPct, 1e-9)
	assert.False(t, reverted.Daily.IsOverridden(model.MetricImpressions))
}

func TestService_ApplyOverrideDashDeletes(t *testing.T) {
	ov := newFakeOverrides()
	svc := newTestService(t, ov, nil)
	ctx := context.Background()

	_, err := svc.ApplyOverride(ctx, 42, "2025-01-10", "clicks", "70")
	require.NoError(t, err)
	res, err := svc.ApplyOverride(ctx, 42, "2025-01-10", "clicks", " — ")
	require.NoError(t, err)
	assert.Equal(t, 50.0, *res.Daily.Clicks)

	stored, err := ov.Overrides(ctx, 42)
	require.NoError(t, err)
	_, ok := stored.Lookup("2025-01-10", model.MetricClicks)
	assert.False(t, ok)
}

func TestService_ApplyOverrideNormalizesInput(t *testing.T) {
	ov := newFakeOverrides()
	svc := newTestService(t, ov, nil)

	res, err := svc.ApplyOverride(context.Background(), 42, "10.01.2025", " Verif_Clicks ", "40")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10", res.Date)
	assert.Equal(t, model.MetricVerifClicks, res.Metric)
	assert.InDelta(t, -20.0, *res.Daily.DeltaClicksPct, 1e-9)
}

func TestService_ApplyOverrideValidation(t *testing.T) {
	svc := newTestService(t, newFakeOverrides(), nil)

	tests := []struct {
		name   string
		date   string
		metric string
		want   error
	}{
		{"computed ctr", "2025-01-10", "ctr", ErrComputedMetric},
		{"computed freq", "2025-01-10", "FREQ", ErrComputedMetric},
		{"computed reachability", "2025-01-10", "reachability", ErrComputedMetric},
		{"unknown metric", "2025-01-10", "spend", ErrInvalidMetric},
		{"bad date", "yesterday", "clicks", ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ApplyOverride(context.Background(), 42, tt.date, tt.metric, "1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestService_OverrideOnDateOutsideBaseline(t *testing.T) {
	ov := newFakeOverrides()
	svc := newTestService(t, ov, nil)
	ctx := context.Background()

	res, err := svc.ApplyOverride(ctx, 42, "2025-02-01", "clicks", "7")
	require.NoError(t, err)
	assert.Nil(t, res.Daily)

	stored, err := ov.Overrides(ctx, 42)
	require.NoError(t, err)
	text, ok := stored.Lookup("2025-02-01", model.MetricClicks)
	assert.True(t, ok)
	assert.Equal(t, "7", text)
}

func TestService_OverrideSaveFailure(t *testing.T) {
	ov := newFakeOverrides()
	ov.saveErr = errors.New("disk full")
	svc := newTestService(t, ov, nil)

	_, err := svc.ApplyOverride(context.Background(), 42, "2025-01-10", "clicks", "7")
	require.Error(t, err)
	assert.False(t, IsValidation(err))
	assert.Contains(t, err.Error(), "save override")
}

func TestService_OverrideReadFailure(t *testing.T) {
	ov := newFakeOverrides()
	ov.readErr = errors.New("database is gone")
	svc := newTestService(t, ov, nil)

	_, err := svc.Campaign(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load overrides")
}

func TestService_MissingBaselineIsEmptyReport(t *testing.T) {
	svc := newTestService(t, newFakeOverrides(), nil)

	r, err := svc.Campaign(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, r.Daily)
	assert.Nil(t, r.Totals.Impressions)
}

func TestService_SourceFailuresDegrade(t *testing.T) {
	svc := newTestService(t, newFakeOverrides(), func(d *Deps) {
		d.Analytics = &fakeAnalytics{err: errors.New("analytics db locked")}
		d.Reach = failingReach{}
	})

	r, err := svc.Campaign(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, r.Daily, 2)
	assert.Nil(t, r.Daily[0].Visits)
	assert.Nil(t, r.Totals.Reach)
	assert.NotNil(t, r.Daily[0].DeltaImpressionsPct)
}

func TestService_CellValue(t *testing.T) {
	ov := newFakeOverrides()
	svc := newTestService(t, ov, nil)
	ctx := context.Background()

	v, err := svc.CellValue(ctx, 42, "2025-01-10", "impressions")
	require.NoError(t, err)
	assert.Equal(t, "1000", v)

	v, err = svc.CellValue(ctx, 42, "2025-01-10", "bounce_rate")
	require.NoError(t, err)
	assert.Equal(t, "25", v)

	require.NoError(t, ov.SetOverride(ctx, 42, "2025-01-10", model.MetricImpressions, "1 200,5"))
	v, err = svc.CellValue(ctx, 42, "2025-01-10", "impressions")
	require.NoError(t, err)
	assert.Equal(t, "1 200,5", v)

	v, err = svc.CellValue(ctx, 42, "2025-01-11", "visits")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	_, err = svc.CellValue(ctx, 42, "2025-01-10", "ctr")
	assert.ErrorIs(t, err, ErrComputedMetric)
}

func TestSummaryReach(t *testing.T) {
	got, err := SummaryReach{}.Reach(context.Background(), 1, model.Series{})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = SummaryReach{}.Reach(context.Background(), 1, model.Series{Summary: &model.CanonicalRow{Uniques: f(12)}})
	require.NoError(t, err)
	assert.Equal(t, 12.0, *got)
}
