// Package pipeline drives a report through its lifecycle: CSV ingestion,
// analysis assembly, HTML/PDF rendering, and artifact persistence.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-cli/internal/assemble"
	"github.com/sells-group/advisor-cli/internal/config"
	"github.com/sells-group/advisor-cli/internal/ingest"
	"github.com/sells-group/advisor-cli/internal/model"
	"github.com/sells-group/advisor-cli/internal/store"
	"github.com/sells-group/advisor-cli/pkg/blob"
	"github.com/sells-group/advisor-cli/pkg/renderer"
)

// Pipeline orchestrates report generation end to end.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	ingestor  *ingest.Ingestor
	assembler *assemble.Assembler
	renderer  renderer.Client
	blobs     blob.Store
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	assembler *assemble.Assembler,
	rendererClient renderer.Client,
	blobs blob.Store,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		ingestor:  ingest.NewIngestor(st, cfg.Ingest),
		assembler: assembler,
		renderer:  rendererClient,
		blobs:     blobs,
	}
}

// Run executes the full lifecycle for one report. It is safe to call on
// a failed report with retry budget remaining; the re-run re-ingests
// from the stored CSV and replaces prior findings.
func (p *Pipeline) Run(ctx context.Context, reportID string) error {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("report_id", reportID))

	report, err := p.store.GetReport(ctx, reportID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: load report %s", reportID)
	}

	if report.Status == model.StatusFailed && !CanRetry(report, p.cfg.Pipeline.MaxRetries) {
		return eris.Errorf("pipeline: report %s exhausted %d retries", reportID, p.cfg.Pipeline.MaxRetries)
	}
	if err := ValidateTransition(report.Status, model.StatusProcessing); err != nil {
		return err
	}
	if report.Status == model.StatusFailed {
		if _, err := p.store.IncrementRetry(ctx, reportID); err != nil {
			return eris.Wrap(err, "pipeline: increment retry")
		}
	}
	if err := p.setStatus(ctx, report, model.StatusProcessing); err != nil {
		return err
	}
	log.Info("processing started",
		zap.String("report_type", string(report.Type)),
		zap.Int("retry_count", report.RetryCount),
	)

	summary, err := p.ingestStage(ctx, report)
	if err != nil {
		return p.fail(ctx, report, log, err)
	}
	// Once processing has started, a status write failure must not strand
	// the report mid-lifecycle; record it so the retry edge applies.
	if err := p.setStatus(ctx, report, model.StatusImported); err != nil {
		return p.fail(ctx, report, log, &model.ProcessingError{Stage: "status", Err: err})
	}
	log.Info("ingestion complete",
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
	)

	if err := p.setStatus(ctx, report, model.StatusGenerating); err != nil {
		return p.fail(ctx, report, log, &model.ProcessingError{Stage: "status", Err: err})
	}
	if err := p.generateStage(ctx, report, summary, log); err != nil {
		return p.fail(ctx, report, log, err)
	}

	if err := p.setStatus(ctx, report, model.StatusCompleted); err != nil {
		return p.fail(ctx, report, log, &model.GenerationError{Stage: "status", Err: err})
	}
	log.Info("report completed")
	return nil
}

// RunGenerate renders and persists artifacts for a report whose findings
// are already imported, skipping ingestion. Only legal from the imported
// state.
func (p *Pipeline) RunGenerate(ctx context.Context, reportID string) error {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("report_id", reportID))

	report, err := p.store.GetReport(ctx, reportID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: load report %s", reportID)
	}

	if err := p.setStatus(ctx, report, model.StatusGenerating); err != nil {
		return err
	}

	summary := report.Summary
	if summary == nil {
		summary = &model.IngestSummary{Imported: report.RowsProcessed}
	}
	if err := p.generateStage(ctx, report, summary, log); err != nil {
		return p.fail(ctx, report, log, err)
	}

	if err := p.setStatus(ctx, report, model.StatusCompleted); err != nil {
		return p.fail(ctx, report, log, &model.GenerationError{Stage: "status", Err: err})
	}
	log.Info("report completed")
	return nil
}

// setStatus advances the lifecycle, validating the edge first.
func (p *Pipeline) setStatus(ctx context.Context, report *model.Report, to model.ReportStatus) error {
	if err := ValidateTransition(report.Status, to); err != nil {
		return err
	}
	if err := p.store.UpdateReportStatus(ctx, report.ID, to); err != nil {
		return eris.Wrapf(err, "pipeline: set status %s", to)
	}
	report.Status = to
	return nil
}

// fail records the failure and returns the original error. Validation
// errors are terminal; everything else may be retried by the queue.
func (p *Pipeline) fail(ctx context.Context, report *model.Report, log *zap.Logger, cause error) error {
	log.Error("report failed",
		zap.Bool("retryable", model.IsRetryable(cause)),
		zap.Error(cause),
	)
	if err := p.store.SetReportError(ctx, report.ID, cause.Error()); err != nil {
		log.Warn("failed to record error state", zap.Error(err))
	}
	report.Status = model.StatusFailed
	return cause
}

func (p *Pipeline) ingestStage(ctx context.Context, report *model.Report) (*model.IngestSummary, error) {
	f, err := p.blobs.Open(report.CSVRef)
	if err != nil {
		return nil, &model.ProcessingError{Stage: "ingest", Err: eris.Wrap(err, "open csv")}
	}
	defer f.Close()

	summary, err := p.ingestor.Ingest(ctx, report.ID, f)
	if err != nil {
		if model.IsValidationError(err) {
			return nil, err
		}
		return nil, &model.ProcessingError{Stage: "ingest", Err: err}
	}
	return summary, nil
}

func (p *Pipeline) generateStage(ctx context.Context, report *model.Report, summary *model.IngestSummary, log *zap.Logger) error {
	recs, err := p.store.ListRecommendations(ctx, report.ID)
	if err != nil {
		return &model.GenerationError{Stage: "load", Err: err}
	}

	renderCtx, err := p.assembler.Assemble(report, recs, time.Now())
	if err != nil {
		return &model.GenerationError{Stage: "assemble", Err: err}
	}

	html, err := p.renderer.RenderHTML(ctx, renderer.RenderRequest{
		ReportType: string(report.Type),
		Context:    renderCtx,
	})
	if err != nil {
		return &model.GenerationError{Stage: "render", Err: err}
	}

	pdf, err := p.renderer.HTMLToPDF(ctx, html)
	if err != nil {
		return &model.GenerationError{Stage: "pdf", Err: err}
	}

	htmlRef, err := p.blobs.Save(report.ID, "html", html)
	if err != nil {
		return &model.GenerationError{Stage: "store_html", Err: err}
	}
	pdfRef, err := p.blobs.Save(report.ID, "pdf", pdf)
	if err != nil {
		return &model.GenerationError{Stage: "store_pdf", Err: err}
	}
	if err := p.store.SetReportArtifacts(ctx, report.ID, htmlRef, pdfRef); err != nil {
		return &model.GenerationError{Stage: "artifacts", Err: err}
	}

	if err := p.store.SetReportAnalysis(ctx, report.ID, renderCtx.Analysis(), summary); err != nil {
		return &model.GenerationError{Stage: "analysis", Err: err}
	}

	log.Info("artifacts stored",
		zap.String("html_ref", htmlRef),
		zap.String("pdf_ref", pdfRef),
		zap.Int("findings", len(recs)),
	)
	return nil
}
