package store

import (
	"context"
	"time"

	"github.com/sells-group/advisor-cli/internal/model"
)

// ReportFilter specifies criteria for listing reports.
type ReportFilter struct {
	ClientID string             `json:"client_id,omitempty"`
	Status   model.ReportStatus `json:"status,omitempty"`
	Type     model.ReportType   `json:"report_type,omitempty"`
	Limit    int                `json:"limit,omitempty"`
	Offset   int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the report pipeline.
type Store interface {
	// Reports
	CreateReport(ctx context.Context, clientID string, typ model.ReportType, csvRef string) (*model.Report, error)
	GetReport(ctx context.Context, reportID string) (*model.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error)
	UpdateReportStatus(ctx context.Context, reportID string, status model.ReportStatus) error
	SetReportCSVRef(ctx context.Context, reportID, csvRef string) error
	UpdateReportProgress(ctx context.Context, reportID string, rowsProcessed int) error
	SetReportError(ctx context.Context, reportID string, msg string) error
	IncrementRetry(ctx context.Context, reportID string) (int, error)
	SetReportArtifacts(ctx context.Context, reportID, htmlRef, pdfRef string) error
	SetReportAnalysis(ctx context.Context, reportID string, analysis *model.AnalysisData, summary *model.IngestSummary) error

	// Recommendations
	InsertRecommendations(ctx context.Context, recs []model.Recommendation) error
	DeleteRecommendations(ctx context.Context, reportID string) error
	ListRecommendations(ctx context.Context, reportID string) ([]model.Recommendation, error)

	// Trend read model
	CountsByDay(ctx context.Context, clientID string, since time.Time) ([]model.DayActivity, error)
	UpsertClientMetrics(ctx context.Context, rows []model.ClientMetrics) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
