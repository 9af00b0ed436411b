package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-cli/internal/config"
	"github.com/sells-group/advisor-cli/internal/model"
)

// Store is the persistence surface the ingestor needs. The report store
// satisfies it.
type Store interface {
	DeleteRecommendations(ctx context.Context, reportID string) error
	InsertRecommendations(ctx context.Context, recs []model.Recommendation) error
	UpdateReportProgress(ctx context.Context, reportID string, rowsProcessed int) error
}

// Ingestor orchestrates chunked CSV reads, normalization, and bulk
// persistence for one report.
type Ingestor struct {
	store     Store
	cfg       config.IngestConfig
	validator *SchemaValidator
}

// NewIngestor creates an ingestor with the given store and bounds.
func NewIngestor(store Store, cfg config.IngestConfig) *Ingestor {
	return &Ingestor{
		store:     store,
		cfg:       cfg,
		validator: NewSchemaValidator(cfg),
	}
}

// Ingest validates and imports one CSV file for a report.
//
// Chunks are written strictly in order: chunk N+1 is not read before chunk
// N's bulk write completes, so source row numbers and error-rate accounting
// stay consistent. Re-ingesting the same report first discards any
// previously persisted rows, making retries idempotent.
//
// Row errors are collected without aborting; if the cumulative invalid-row
// ratio exceeds the configured limit at end of ingestion, the import fails
// with a ValidationError and all persisted rows are rolled back.
func (ing *Ingestor) Ingest(ctx context.Context, reportID string, r io.Reader) (*model.IngestSummary, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("report_id", reportID))

	res, err := ing.validator.Validate(r)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: validate")
	}
	log.Info("schema validated",
		zap.Int("rows", res.RowCount),
		zap.String("encoding", res.Encoding),
	)

	// Idempotency: drop anything a previous attempt persisted.
	if err := ing.store.DeleteRecommendations(ctx, reportID); err != nil {
		return nil, eris.Wrap(err, "ingest: clear previous rows")
	}

	reader := csv.NewReader(bytes.NewReader(res.Decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	// Skip the validated header.
	if _, err := reader.Read(); err != nil {
		return nil, eris.Wrap(err, "ingest: re-read header")
	}

	normalizer := NewNormalizer(res.Columns)
	summary := &model.IngestSummary{}
	batch := make([]model.Recommendation, 0, ing.cfg.ChunkSize)
	rowNumber := 0

	flush := func() error {
		if len(batch) > 0 {
			if err := ing.store.InsertRecommendations(ctx, batch); err != nil {
				return eris.Wrap(err, "ingest: persist chunk")
			}
			batch = batch[:0]
		}
		if err := ing.store.UpdateReportProgress(ctx, reportID, rowNumber); err != nil {
			return eris.Wrap(err, "ingest: update progress")
		}
		return nil
	}

	for {
		// Cancellation is checked between rows; chunk writes themselves are
		// not interrupted.
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "ingest: cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNumber++
		if err != nil {
			summary.Errors = append(summary.Errors, model.RowError{
				Row:     rowNumber,
				Message: "malformed CSV row",
			})
			continue
		}

		rec, rowErr := normalizer.Normalize(record, rowNumber)
		if rowErr != nil {
			summary.Errors = append(summary.Errors, *rowErr)
			continue
		}

		rec.ReportID = reportID
		batch = append(batch, *rec)
		if len(batch) >= ing.cfg.ChunkSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	summary.Skipped = len(summary.Errors)
	summary.Imported = rowNumber - summary.Skipped

	// Error-rate policy: a few malformed rows from manual CSV editing are
	// tolerated; a systematically corrupt export fails the whole import.
	if rowNumber > 0 {
		rate := float64(summary.Skipped) / float64(rowNumber)
		if rate > ing.cfg.ErrorRateLimit {
			if delErr := ing.store.DeleteRecommendations(ctx, reportID); delErr != nil {
				log.Error("rollback after error-rate breach failed", zap.Error(delErr))
			}
			return nil, eris.Wrap(
				model.NewValidationError("invalid rows %d of %d (%.1f%%) exceed the %.1f%% limit",
					summary.Skipped, rowNumber, rate*100, ing.cfg.ErrorRateLimit*100),
				"ingest",
			)
		}
	}

	log.Info("ingest complete",
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}
