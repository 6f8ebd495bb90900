package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campaign-hub/internal/config"
	"github.com/sells-group/campaign-hub/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "report", "override", "import", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "campaign-hub", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestReportCommand_Flags(t *testing.T) {
	require.NotNil(t, reportCmd.Flags().Lookup("campaign"))
	flag := reportCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "table", flag.DefValue)
}

func TestOverrideCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range overrideCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["set"])
	assert.True(t, names["get"])
	assert.NotNil(t, overrideSetCmd.Flags().Lookup("value"))
	assert.Nil(t, overrideGetCmd.Flags().Lookup("value"))
}

func TestImportCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range importCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"verifier", "analytics", "list"} {
		assert.True(t, names[name], name)
	}
	assert.NotNil(t, importVerifierCmd.Flags().Lookup("verifier-id"))
}

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, checkFormat("table"))
	assert.NoError(t, checkFormat("json"))
	assert.Error(t, checkFormat("xml"))
}

func TestRenderReports(t *testing.T) {
	v := 1000.0
	reports := []*model.Report{
		{CampaignID: 1, Totals: model.TotalsFact{Impressions: &v}},
		{CampaignID: 2},
	}

	var buf bytes.Buffer
	require.NoError(t, renderReports(&buf, reports, "table"))
	assert.Contains(t, buf.String(), "Campaign 1")
	assert.Contains(t, buf.String(), "Campaign 2")
	assert.Contains(t, buf.String(), "1 000")

	buf.Reset()
	require.NoError(t, renderReports(&buf, reports, "json"))
	var got []model.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[1].CampaignID)
}

// testConfig points the global config at a temp SQLite file and baseline
// directory.
func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg = &config.Config{
		Store:   config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "hub.db")},
		Sources: config.SourcesConfig{BaselineDir: filepath.Join(dir, "baseline")},
		Report:  config.ReportConfig{MaxConcurrentCampaigns: 2},
		Server:  config.ServerConfig{Port: 8080},
		Retry:   config.RetryConfig{MaxAttempts: 1},
	}
	t.Cleanup(func() { cfg = nil })
	return dir
}

func TestInitEnv_ReconcilesSnapshot(t *testing.T) {
	dir := testConfig(t)
	campaignDir := filepath.Join(dir, "baseline", "42")
	require.NoError(t, os.MkdirAll(campaignDir, 0o755))
	csv := "date;impressions;clicks;uniques;verif_impressions;verif_clicks;verif_ctr_percent\n" +
		"2025-01-10;1000;50;400;900;45;5\n" +
		"Итого;1000;50;400;;;\n"
	require.NoError(t, os.WriteFile(filepath.Join(campaignDir, "latest_normalized.csv"), []byte(csv), 0o644))

	ctx := context.Background()
	env, err := initEnv(ctx, "report")
	require.NoError(t, err)
	defer env.Close()

	r, err := env.Service.Campaign(ctx, 42)
	require.NoError(t, err)
	require.Len(t, r.Daily, 1)
	assert.InDelta(t, -10.0, *r.Daily[0].DeltaImpressionsPct, 1e-9)
	assert.Equal(t, 400.0, *r.Totals.Reach)

	res, err := env.Service.ApplyOverride(ctx, 42, "2025-01-10", "impressions", "1200")
	require.NoError(t, err)
	assert.InDelta(t, -25.0, *res.Daily.DeltaImpressionsPct, 1e-9)
	assert.Equal(t, "1 200", displayValue(res.Metric, res.Daily))

	text, err := env.Service.CellValue(ctx, 42, "2025-01-10", "impressions")
	require.NoError(t, err)
	assert.Equal(t, "1200", text)
}

func TestInitEnv_RejectsBadConfig(t *testing.T) {
	testConfig(t)
	cfg.Store.Driver = "mysql"

	_, err := initEnv(context.Background(), "report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}
