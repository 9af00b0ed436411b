package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-cli/internal/model"
)

var (
	ingestClientID string
	ingestType     string
	ingestFile     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Create a report from an Advisor CSV export",
	Long:  "Stores the CSV and creates a pending report. Processing is picked up by the worker, or run synchronously with the run command.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ, ok := model.ParseReportType(ingestType)
		if !ok {
			return eris.Errorf("unknown report type: %s", ingestType)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		blobs, err := initBlobs()
		if err != nil {
			return eris.Wrap(err, "open artifact store")
		}

		data, err := os.ReadFile(ingestFile)
		if err != nil {
			return eris.Wrapf(err, "read %s", ingestFile)
		}
		if int64(len(data)) > cfg.Ingest.MaxFileBytes {
			return eris.Errorf("file exceeds %d byte limit", cfg.Ingest.MaxFileBytes)
		}

		report, err := st.CreateReport(ctx, ingestClientID, typ, "")
		if err != nil {
			return eris.Wrap(err, "create report")
		}

		ref, err := blobs.Save(report.ID, "csv", data)
		if err != nil {
			return eris.Wrap(err, "store csv")
		}
		if err := st.SetReportCSVRef(ctx, report.ID, ref); err != nil {
			return eris.Wrap(err, "set csv ref")
		}

		zap.L().Info("report created",
			zap.String("report_id", report.ID),
			zap.String("client_id", ingestClientID),
			zap.String("report_type", string(typ)),
			zap.Int("csv_bytes", len(data)),
		)
		fmt.Println(report.ID)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestClientID, "client", "", "client identifier (required)")
	ingestCmd.Flags().StringVar(&ingestType, "type", "", "report type: detailed, executive, cost, security, operations (required)")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "path to the Advisor CSV export (required)")
	_ = ingestCmd.MarkFlagRequired("client")
	_ = ingestCmd.MarkFlagRequired("type")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}
