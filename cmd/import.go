package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-hub/internal/fetcher"
	"github.com/sells-group/campaign-hub/internal/importer"
	"github.com/sells-group/campaign-hub/internal/normalize"
	"github.com/sells-group/campaign-hub/internal/store"
	"github.com/sells-group/campaign-hub/internal/verifier"
)

var (
	importFile       string
	importCampaign   int64
	importVerifierID string
	importListLimit  int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load provider spreadsheets into the structured stores",
}

var importVerifierCmd = &cobra.Command{
	Use:   "verifier",
	Short: "Import a verifier report (CSV or XLSX) for one campaign",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		aliases, err := env.Aliases.Get()
		if err != nil {
			return err
		}
		table, err := fetcher.ReadTable(ctx, importFile)
		if err != nil {
			return eris.Wrap(err, "import verifier: read file")
		}
		res, err := importer.Verifier(table, aliases.VerifierImport)
		if err != nil {
			return eris.Wrapf(err, "import verifier: %s", filepath.Base(importFile))
		}

		vid := normalize.CleanID(importVerifierID)
		if vid != "" {
			if err := env.Store.SetVerifierCampaignID(ctx, importCampaign, vid); err != nil {
				return err
			}
		} else {
			vid, err = env.Store.VerifierCampaignID(ctx, importCampaign)
			if err != nil {
				return err
			}
			if vid == "" {
				vid = verifier.FallbackID(importCampaign)
			}
		}

		n, err := env.Store.UpsertVerifierRows(ctx, vid, res.Rows)
		if err != nil {
			return err
		}
		return recordImport(cmd, env, store.ImportRecord{
			Kind:       store.ImportVerifier,
			CampaignID: importCampaign,
			VerifierID: vid,
			Rows:       n,
		}, res.Skipped)
	},
}

var importAnalyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Import a web-analytics export (CSV or XLSX) for one campaign",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		aliases, err := env.Aliases.Get()
		if err != nil {
			return err
		}
		table, err := fetcher.ReadTable(ctx, importFile)
		if err != nil {
			return eris.Wrap(err, "import analytics: read file")
		}
		res, err := importer.Analytics(table, aliases.Analytics, importCampaign)
		if err != nil {
			return eris.Wrapf(err, "import analytics: %s", filepath.Base(importFile))
		}

		n, err := env.Store.UpsertAnalyticsRows(ctx, res.Rows)
		if err != nil {
			return err
		}
		return recordImport(cmd, env, store.ImportRecord{
			Kind:       store.ImportAnalytics,
			CampaignID: importCampaign,
			Rows:       n,
		}, res.Skipped)
	},
}

var importListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent imports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "import")
		if err != nil {
			return err
		}
		defer env.Close()

		recs, err := env.Store.ListImports(cmd.Context(), importListLimit)
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Created", "Kind", "Campaign", "Verifier", "Rows", "File"})
		for _, r := range recs {
			table.Append([]string{
				r.CreatedAt.Format("2006-01-02 15:04"),
				string(r.Kind),
				strconv.FormatInt(r.CampaignID, 10),
				r.VerifierID,
				strconv.Itoa(r.Rows),
				filepath.Base(r.Path),
			})
		}
		table.Render()
		return nil
	},
}

// recordImport logs the import and drops the campaign's cached snapshot.
func recordImport(cmd *cobra.Command, env *appEnv, rec store.ImportRecord, skipped int) error {
	rec.ID = uuid.NewString()
	rec.Path = importFile
	if err := env.Store.RecordImport(cmd.Context(), rec); err != nil {
		return err
	}
	env.Snapshots.Invalidate(rec.CampaignID)

	zap.L().Info("import complete",
		zap.String("import_id", rec.ID),
		zap.String("kind", string(rec.Kind)),
		zap.Int64("campaign_id", rec.CampaignID),
		zap.Int("rows", rec.Rows),
		zap.Int("skipped", skipped),
		zap.String("file", importFile),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d %s rows for campaign %d (%s)\n", rec.Rows, rec.Kind, rec.CampaignID, rec.ID)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{importVerifierCmd, importAnalyticsCmd} {
		c.Flags().StringVar(&importFile, "file", "", "path to CSV or XLSX file (required)")
		c.Flags().Int64Var(&importCampaign, "campaign", 0, "campaign id (required)")
		_ = c.MarkFlagRequired("file")
		_ = c.MarkFlagRequired("campaign")
		importCmd.AddCommand(c)
	}
	importVerifierCmd.Flags().StringVar(&importVerifierID, "verifier-id", "", "verifier campaign id; saved as the campaign's mapping")
	importListCmd.Flags().IntVar(&importListLimit, "limit", 20, "number of imports to show")
	importCmd.AddCommand(importListCmd)
	rootCmd.AddCommand(importCmd)
}
