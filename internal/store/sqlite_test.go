package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campaign-hub/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Overrides ---

func TestSQLite_SetOverride_Upsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetOverride(ctx, 7, "2025-01-10", model.MetricImpressions, " 1200 "))
	require.NoError(t, st.SetOverride(ctx, 7, "2025-01-10", model.MetricImpressions, "1 300"))

	ov, err := st.Overrides(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, model.OverrideMap{
		"2025-01-10": {model.MetricImpressions: "1 300"},
	}, ov)
}

func TestSQLite_SetOverride_EmptyDeletes(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetOverride(ctx, 7, "2025-01-10", model.MetricClicks, "55"))
	require.NoError(t, st.SetOverride(ctx, 7, "2025-01-10", model.MetricClicks, ""))

	ov, err := st.Overrides(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, ov)
}

func TestSQLite_SetOverride_DashDeletes(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetOverride(ctx, 7, "2025-01-10", model.MetricVisits, "10"))
	require.NoError(t, st.SetOverride(ctx, 7, "2025-01-10", model.MetricVisits, "—"))

	ov, err := st.Overrides(ctx, 7)
	require.NoError(t, err)
	_, ok := ov.Lookup("2025-01-10", model.MetricVisits)
	assert.False(t, ok)
}

func TestSQLite_SetOverride_DeleteAbsentIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetOverride(ctx, 7, "2025-01-10", model.MetricVisits, ""))
	require.NoError(t, st.SetOverride(ctx, 7, "2025-01-10", model.MetricVisits, ""))
}

func TestSQLite_Overrides_ScopedByCampaign(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetOverride(ctx, 1, "2025-01-10", model.MetricClicks, "1"))
	require.NoError(t, st.SetOverride(ctx, 2, "2025-01-10", model.MetricClicks, "2"))
	require.NoError(t, st.SetOverride(ctx, 2, "2025-01-11", model.MetricVerifImpressions, "900"))

	ov, err := st.Overrides(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, ov, 2)
	v, ok := ov.Lookup("2025-01-10", model.MetricClicks)
	require.True(t, ok)
	assert.Equal(t, "2", v)
}

// --- Verifier ---

func TestSQLite_VerifierCampaignID_Fallback(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.VerifierCampaignID(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, st.SetVerifierCampaignID(ctx, 42, "A-9"))
	id, err = st.VerifierCampaignID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "A-9", id)
}

func TestSQLite_VerifierCampaignID_MissingTable(t *testing.T) {
	st, err := NewSQLite(filepath.Join(t.TempDir(), "bare.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	id, err := st.VerifierCampaignID(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, id)

	rows, err := st.VerifierRows(context.Background(), "42")
	require.NoError(t, err)
	assert.Empty(t, rows)

	arows, err := st.AnalyticsRows(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, arows)
}

func TestSQLite_VerifierRows_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.UpsertVerifierRows(ctx, "A-9", []model.VerifierRow{
		{Date: "2025-01-11", Impressions: model.Float(950)},
		{Date: "2025-01-10", Impressions: model.Float(900), Clicks: model.Float(45), ViewabilityPercent: model.Float(71.5)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-import replaces by key.
	_, err = st.UpsertVerifierRows(ctx, "A-9", []model.VerifierRow{
		{Date: "2025-01-11", Impressions: model.Float(960)},
	})
	require.NoError(t, err)

	rows, err := st.VerifierRows(ctx, "A-9")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-01-10", rows[0].Date)
	assert.Equal(t, 900.0, *rows[0].Impressions)
	assert.Equal(t, 45.0, *rows[0].Clicks)
	assert.Equal(t, 71.5, *rows[0].ViewabilityPercent)
	assert.Nil(t, rows[0].SIVTPercent)
	assert.Equal(t, 960.0, *rows[1].Impressions)
}

func TestSQLite_VerifierRows_LegacyColumns(t *testing.T) {
	st, err := NewSQLite(filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	ctx := context.Background()

	_, err = st.db.ExecContext(ctx, `
		CREATE TABLE verifier_daily_metric (cid INTEGER, report_date TEXT, impr TEXT, viewability REAL, measured REAL);
		INSERT INTO verifier_daily_metric VALUES (42, '2025-01-10', '1 000', 70.0, 800);
		INSERT INTO verifier_daily_metric VALUES (43, '2025-01-10', '5', 1.0, 1);
	`)
	require.NoError(t, err)

	rows, err := st.VerifierRows(ctx, "42")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1000.0, *rows[0].Impressions)
	assert.Equal(t, 70.0, *rows[0].ViewabilityPercent)
	assert.Equal(t, 800.0, *rows[0].MeasuredImpressions)
	assert.Nil(t, rows[0].Clicks)
}

// --- Analytics ---

func TestSQLite_AnalyticsRows_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertAnalyticsRows(ctx, []model.AnalyticsRow{
		{CampaignID: 5, Date: "2025-01-10", Visits: model.Float(30), BounceRate: model.Float(0.25)},
		{CampaignID: 6, Date: "2025-01-10", Visits: model.Float(99)},
	})
	require.NoError(t, err)

	rows, err := st.AnalyticsRows(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0].CampaignID)
	assert.Equal(t, 30.0, *rows[0].Visits)
	assert.Equal(t, 0.25, *rows[0].BounceRate)
	assert.Nil(t, rows[0].PageDepth)
}

func TestSQLite_AnalyticsRows_MalformedCellIsNil(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO analytics_daily_metrics (campaign_id, date, visits, bounce_rate, page_depth, avg_time_sec)
		 VALUES (5, '2025-01-10', 30, 0.25, 1.5, 65),
		        (5, '2025-01-11', '1 234', 'n/a', '1,8', '0:01:10')`)
	require.NoError(t, err)

	rows, err := st.AnalyticsRows(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2025-01-10", rows[0].Date)
	assert.Equal(t, 30.0, *rows[0].Visits)
	assert.Equal(t, 0.25, *rows[0].BounceRate)

	assert.Equal(t, "2025-01-11", rows[1].Date)
	assert.Equal(t, 1234.0, *rows[1].Visits)
	assert.Nil(t, rows[1].BounceRate)
	assert.Equal(t, 1.8, *rows[1].PageDepth)
	assert.Equal(t, 70.0, *rows[1].AvgTimeSec)
}

func TestSQLite_AnalyticsRows_LegacyColumns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.db.ExecContext(ctx, `DROP TABLE analytics_daily_metrics`)
	require.NoError(t, err)
	_, err = st.db.ExecContext(ctx,
		`CREATE TABLE analytics_daily_metrics (campaign_id INTEGER, report_date TEXT, visits TEXT)`)
	require.NoError(t, err)
	_, err = st.db.ExecContext(ctx,
		`INSERT INTO analytics_daily_metrics VALUES (5, '10.01.2025', '12'), (5, 'garbage', '1')`)
	require.NoError(t, err)

	rows, err := st.AnalyticsRows(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-01-10", rows[0].Date)
	assert.Equal(t, 12.0, *rows[0].Visits)
	assert.Nil(t, rows[0].BounceRate)
}

// --- Imports ---

func TestSQLite_RecordImport(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordImport(ctx, ImportRecord{
		Kind: ImportVerifier, Path: "adserving.xlsx", CampaignID: 42, VerifierID: "A-9", Rows: 31,
	}))

	recs, err := st.ListImports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NotEmpty(t, recs[0].ID)
	assert.Equal(t, ImportVerifier, recs[0].Kind)
	assert.Equal(t, 31, recs[0].Rows)
}
