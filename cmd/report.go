package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/campaign-hub/internal/model"
	"github.com/sells-group/campaign-hub/internal/present"
)

var (
	reportCampaigns []int64
	reportFormat    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the reconciled report of one or more campaigns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := checkFormat(reportFormat); err != nil {
			return err
		}

		env, err := initEnv(ctx, "report")
		if err != nil {
			return err
		}
		defer env.Close()

		reports := make([]*model.Report, len(reportCampaigns))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Report.MaxConcurrentCampaigns)
		for i, id := range reportCampaigns {
			g.Go(func() error {
				r, err := env.Service.Campaign(gctx, id)
				if err != nil {
					return eris.Wrapf(err, "report campaign %d", id)
				}
				reports[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("report complete", zap.Int("campaigns", len(reports)))
		return renderReports(cmd.OutOrStdout(), reports, reportFormat)
	},
}

func checkFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	default:
		return eris.Errorf("unknown format %q (want table or json)", format)
	}
}

// renderReports writes reports in campaign order.
func renderReports(w io.Writer, reports []*model.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(reports), "encode reports")
	}
	for i, r := range reports {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return eris.Wrap(err, "write report")
			}
		}
		present.WriteReport(w, r)
	}
	return nil
}

func init() {
	reportCmd.Flags().Int64SliceVar(&reportCampaigns, "campaign", nil, "campaign id (repeatable or comma-separated, required)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "table", "output format: table or json")
	_ = reportCmd.MarkFlagRequired("campaign")
	rootCmd.AddCommand(reportCmd)
}
