package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-hub/internal/model"
	"github.com/sells-group/campaign-hub/internal/present"
	"github.com/sells-group/campaign-hub/internal/reconcile"
)

var (
	overrideCampaign int64
	overrideDate     string
	overrideMetric   string
	overrideValue    string
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Inspect and edit manual overrides",
}

var overrideSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set one override; an empty --value clears it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "override")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.ApplyOverride(ctx, overrideCampaign, overrideDate, overrideMetric, overrideValue)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.Daily == nil {
			zap.L().Warn("override date is not in the baseline",
				zap.Int64("campaign_id", overrideCampaign),
				zap.String("date", res.Date),
			)
			fmt.Fprintf(out, "%s %s: saved (date not in baseline)\n", res.Date, res.Metric)
		} else {
			fmt.Fprintf(out, "%s %s = %s\n", res.Date, res.Metric, displayValue(res.Metric, res.Daily))
		}
		fmt.Fprintf(out, "totals: impressions %s, clicks %s, Δ impressions %s\n",
			present.Int(res.Totals.Impressions),
			present.Int(res.Totals.Clicks),
			present.SignedPct(res.Totals.DeltaImpressionsPct),
		)
		return nil
	},
}

var overrideGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the editable text of one cell",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "override")
		if err != nil {
			return err
		}
		defer env.Close()

		v, err := env.Service.CellValue(ctx, overrideCampaign, overrideDate, overrideMetric)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

func displayValue(m model.Metric, f *model.DailyFact) string {
	return present.Metric(m, reconcile.FieldValue(f, string(m)))
}

func init() {
	for _, c := range []*cobra.Command{overrideSetCmd, overrideGetCmd} {
		c.Flags().Int64Var(&overrideCampaign, "campaign", 0, "campaign id (required)")
		c.Flags().StringVar(&overrideDate, "date", "", "date, YYYY-MM-DD or DD.MM.YYYY (required)")
		c.Flags().StringVar(&overrideMetric, "metric", "", "editable metric name (required)")
		_ = c.MarkFlagRequired("campaign")
		_ = c.MarkFlagRequired("date")
		_ = c.MarkFlagRequired("metric")
		overrideCmd.AddCommand(c)
	}
	overrideSetCmd.Flags().StringVar(&overrideValue, "value", "", "override text as typed; empty clears")
	rootCmd.AddCommand(overrideCmd)
}
