package model

import "time"

// AnalysisVersion is bumped whenever the analysis snapshot schema changes.
const AnalysisVersion = 1

// AnalysisData is the versioned computed-metrics snapshot persisted with a
// report. Exactly one of the per-type sections is set, keyed by ReportType.
type AnalysisData struct {
	Version     int        `json:"version"`
	ReportType  ReportType `json:"report_type"`
	GeneratedAt time.Time  `json:"generated_at"`

	Detailed   *DetailedAnalysis   `json:"detailed,omitempty"`
	Executive  *ExecutiveAnalysis  `json:"executive,omitempty"`
	Cost       *CostAnalysis       `json:"cost,omitempty"`
	Security   *SecurityAnalysis   `json:"security,omitempty"`
	Operations *OperationsAnalysis `json:"operations,omitempty"`
}

// DetailedAnalysis backs the full technical report.
type DetailedAnalysis struct {
	TotalFindings        int                             `json:"total_findings"`
	CategoryDistribution map[Category]CategoryStats      `json:"category_distribution"`
	ImpactDistribution   map[BusinessImpact]ImpactStats  `json:"impact_distribution"`
	Score                AdvisorScore                    `json:"advisor_score"`
	TimeSavings          TimeSavings                     `json:"time_savings"`
}

// ExecutiveAnalysis backs the leadership summary.
type ExecutiveAnalysis struct {
	TotalFindings        int                            `json:"total_findings"`
	HighImpactFindings   int                            `json:"high_impact_findings"`
	CategoryDistribution map[Category]CategoryStats     `json:"category_distribution"`
	ImpactDistribution   map[BusinessImpact]ImpactStats `json:"impact_distribution"`
	Score                AdvisorScore                   `json:"advisor_score"`
	ROI                  ROIMetrics                     `json:"roi"`
}

// CostAnalysis backs the cost-optimization report.
type CostAnalysis struct {
	TotalFindings int             `json:"total_findings"`
	QuickWins     int             `json:"quick_wins"`
	Medium        int             `json:"medium"`
	Major         int             `json:"major"`
	ROI           ROIMetrics      `json:"roi"`
	TimeSavings   TimeSavings     `json:"time_savings"`
}

// SecurityAnalysis backs the security posture report.
type SecurityAnalysis struct {
	TotalFindings int          `json:"total_findings"`
	Critical      int          `json:"critical"`
	Moderate      int          `json:"moderate"`
	Low           int          `json:"low"`
	Score         AdvisorScore `json:"advisor_score"`
}

// OperationsAnalysis backs the operational-excellence report.
type OperationsAnalysis struct {
	TotalFindings int                        `json:"total_findings"`
	ByCategory    map[Category]CategoryStats `json:"by_category"`
	Score         AdvisorScore               `json:"advisor_score"`
	TimeSavings   TimeSavings                `json:"time_savings"`
}
