package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-cli/internal/metrics"
	"github.com/sells-group/advisor-cli/internal/model"
	"github.com/sells-group/advisor-cli/internal/store"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect report history",
	Long:  "Commands for listing reports, viewing details, and rebuilding derived client metrics.",
}

// -- reports list --

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		client, _ := cmd.Flags().GetString("client")
		status, _ := cmd.Flags().GetString("status")
		typ, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.ReportFilter{
			ClientID: client,
			Status:   model.ReportStatus(status),
			Type:     model.ReportType(typ),
			Limit:    limit,
		}

		reports, err := st.ListReports(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "reports list")
		}

		if len(reports) == 0 {
			fmt.Fprintln(os.Stderr, "No reports found.")
			return nil
		}

		formatReportsList(os.Stdout, reports)
		return nil
	},
}

// -- reports show --

var reportsShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Show full details of a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		report, err := st.GetReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "reports show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

// -- reports rebuild-metrics --

var reportsRebuildCmd = &cobra.Command{
	Use:   "rebuild-metrics",
	Short: "Rebuild derived per-day client metrics from report activity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		client, _ := cmd.Flags().GetString("client")
		days, _ := cmd.Flags().GetInt("days")
		if client == "" {
			return eris.New("--client is required")
		}

		since := time.Now().UTC().AddDate(0, 0, -days)
		activity, err := st.CountsByDay(ctx, client, since)
		if err != nil {
			return eris.Wrap(err, "counts by day")
		}

		rows := metrics.BuildClientMetrics(client, activity)
		if err := st.UpsertClientMetrics(ctx, rows); err != nil {
			return eris.Wrap(err, "upsert client metrics")
		}

		zap.L().Info("client metrics rebuilt",
			zap.String("client_id", client),
			zap.Int("days", days),
			zap.Int("rows", len(rows)),
		)
		fmt.Printf("Rebuilt %d day(s) of metrics for %s.\n", len(rows), client)
		return nil
	},
}

// -- reports trends --

var reportsTrendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show a per-day activity series for a client",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		client, _ := cmd.Flags().GetString("client")
		days, _ := cmd.Flags().GetInt("days")
		metricName, _ := cmd.Flags().GetString("metric")
		if client == "" {
			return eris.New("--client is required")
		}
		metric := model.TrendMetric(metricName)
		switch metric {
		case model.TrendRecommendations, model.TrendSavings, model.TrendReports:
		default:
			return eris.Errorf("unknown metric: %s", metricName)
		}

		now := time.Now().UTC()
		activity, err := st.CountsByDay(ctx, client, now.AddDate(0, 0, -days))
		if err != nil {
			return eris.Wrap(err, "counts by day")
		}

		series := metrics.TrendSeries(activity, days, metric, now)
		formatTrendSeries(os.Stdout, metric, series)
		return nil
	},
}

func init() {
	reportsListCmd.Flags().String("client", "", "filter by client ID")
	reportsListCmd.Flags().String("status", "", "filter by status (pending, processing, imported, generating, completed, failed)")
	reportsListCmd.Flags().String("type", "", "filter by report type")
	reportsListCmd.Flags().Int("limit", 50, "max number of reports to display")

	reportsRebuildCmd.Flags().String("client", "", "client ID to rebuild (required)")
	reportsRebuildCmd.Flags().Int("days", 30, "window of activity to aggregate")

	reportsTrendsCmd.Flags().String("client", "", "client ID (required)")
	reportsTrendsCmd.Flags().Int("days", 30, "window size; the series has days+1 entries")
	reportsTrendsCmd.Flags().String("metric", "recommendations", "series metric (recommendations, savings, reports)")

	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsShowCmd)
	reportsCmd.AddCommand(reportsRebuildCmd)
	reportsCmd.AddCommand(reportsTrendsCmd)
	rootCmd.AddCommand(reportsCmd)
}

// formatReportsList writes a tabular list of reports to w.
func formatReportsList(out io.Writer, reports []model.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCLIENT\tTYPE\tSTATUS\tROWS\tRETRIES\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t----\t------\t----\t-------\t-------")

	for _, r := range reports {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			truncateID(r.ID),
			r.ClientID,
			r.Type,
			r.Status,
			r.RowsProcessed,
			r.RetryCount,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatTrendSeries writes a per-day series to w, zero-filled days included.
func formatTrendSeries(out io.Writer, metric model.TrendMetric, series []model.TrendPoint) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "DATE\t%s\n", strings.ToUpper(string(metric)))
	for _, p := range series {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", p.Date.Format("2006-01-02"), p.Value.String())
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
