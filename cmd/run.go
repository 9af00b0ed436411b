package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-cli/internal/model"
)

var (
	runClientID string
	runType     string
	runFile     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest a CSV and generate its report in one pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ, ok := model.ParseReportType(runType)
		if !ok {
			return eris.Errorf("unknown report type: %s", runType)
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(runFile)
		if err != nil {
			return eris.Wrapf(err, "read %s", runFile)
		}
		if int64(len(data)) > cfg.Ingest.MaxFileBytes {
			return eris.Errorf("file exceeds %d byte limit", cfg.Ingest.MaxFileBytes)
		}

		report, err := env.Store.CreateReport(ctx, runClientID, typ, "")
		if err != nil {
			return eris.Wrap(err, "create report")
		}
		ref, err := env.Blobs.Save(report.ID, "csv", data)
		if err != nil {
			return eris.Wrap(err, "store csv")
		}
		if err := env.Store.SetReportCSVRef(ctx, report.ID, ref); err != nil {
			return eris.Wrap(err, "set csv ref")
		}

		if err := env.Pipeline.Run(ctx, report.ID); err != nil {
			return eris.Wrapf(err, "run %s", report.ID)
		}

		final, err := env.Store.GetReport(ctx, report.ID)
		if err != nil {
			return eris.Wrap(err, "reload report")
		}

		zap.L().Info("report complete",
			zap.String("report_id", final.ID),
			zap.String("html_ref", final.HTMLRef),
			zap.String("pdf_ref", final.PDFRef),
			zap.Int("rows_processed", final.RowsProcessed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(final)
	},
}

func init() {
	runCmd.Flags().StringVar(&runClientID, "client", "", "client identifier (required)")
	runCmd.Flags().StringVar(&runType, "type", "", "report type: detailed, executive, cost, security, operations (required)")
	runCmd.Flags().StringVar(&runFile, "file", "", "path to the Advisor CSV export (required)")
	_ = runCmd.MarkFlagRequired("client")
	_ = runCmd.MarkFlagRequired("type")
	_ = runCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(runCmd)
}
