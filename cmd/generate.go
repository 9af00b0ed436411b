package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var generateCmd = &cobra.Command{
	Use:   "generate <report-id>",
	Short: "Process an existing report through the full pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		reportID := args[0]
		if err := env.Pipeline.Run(ctx, reportID); err != nil {
			return eris.Wrapf(err, "generate %s", reportID)
		}

		report, err := env.Store.GetReport(ctx, reportID)
		if err != nil {
			return eris.Wrap(err, "reload report")
		}

		zap.L().Info("report generated",
			zap.String("report_id", report.ID),
			zap.String("html_ref", report.HTMLRef),
			zap.String("pdf_ref", report.PDFRef),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report.StatusView())
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
