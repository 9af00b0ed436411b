package model

import (
	"strings"
	"time"
)

// ReportType selects which audience-specific report is generated.
type ReportType string

const (
	ReportDetailed   ReportType = "detailed"
	ReportExecutive  ReportType = "executive"
	ReportCost       ReportType = "cost"
	ReportSecurity   ReportType = "security"
	ReportOperations ReportType = "operations"
)

// ReportTypes lists all valid report types.
func ReportTypes() []ReportType {
	return []ReportType{ReportDetailed, ReportExecutive, ReportCost, ReportSecurity, ReportOperations}
}

// ParseReportType maps a user-supplied string to a report type.
func ParseReportType(s string) (ReportType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "detailed":
		return ReportDetailed, true
	case "executive":
		return ReportExecutive, true
	case "cost":
		return ReportCost, true
	case "security":
		return ReportSecurity, true
	case "operations", "operational_excellence", "opex":
		return ReportOperations, true
	}
	return "", false
}

// ReportStatus is the report lifecycle state. Transitions are monotonic
// except the explicit failed -> processing retry edge.
type ReportStatus string

const (
	StatusPending    ReportStatus = "pending"
	StatusProcessing ReportStatus = "processing"
	StatusImported   ReportStatus = "imported"
	StatusGenerating ReportStatus = "generating"
	StatusCompleted  ReportStatus = "completed"
	StatusFailed     ReportStatus = "failed"
)

// Report is one generation job: an uploaded CSV, its ingested findings,
// and the rendered artifacts.
type Report struct {
	ID                    string        `json:"id"`
	ClientID              string        `json:"client_id"`
	Type                  ReportType    `json:"report_type"`
	Status                ReportStatus  `json:"status"`
	CSVRef                string        `json:"csv_ref"`
	HTMLRef               string        `json:"html_ref,omitempty"`
	PDFRef                string        `json:"pdf_ref,omitempty"`
	Analysis              *AnalysisData `json:"analysis,omitempty"`
	Summary               *IngestSummary `json:"ingest_summary,omitempty"`
	ErrorMessage          string        `json:"error_message,omitempty"`
	RetryCount            int           `json:"retry_count"`
	RowsProcessed         int           `json:"rows_processed"`
	ProcessingStartedAt   *time.Time    `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time    `json:"processing_completed_at,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// StatusView is the minimal read model exposed to polling clients.
type StatusView struct {
	Status        ReportStatus `json:"status"`
	RowsProcessed int          `json:"rows_processed"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	RetryCount    int          `json:"retry_count"`
}

// StatusView projects the polling fields from a report.
func (r *Report) StatusView() StatusView {
	return StatusView{
		Status:        r.Status,
		RowsProcessed: r.RowsProcessed,
		ErrorMessage:  r.ErrorMessage,
		RetryCount:    r.RetryCount,
	}
}

// RowError records one invalid CSV row. Row errors are collected, not fatal,
// unless the aggregate invalid-row rate exceeds the configured threshold.
type RowError struct {
	Row     int    `json:"row"` // 1-based source row number
	Column  string `json:"column,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// IngestSummary is the outcome of one CSV ingestion.
type IngestSummary struct {
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors,omitempty"`
}
