package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryStats summarizes one category's findings. Savings are keyed by
// ISO-4217 currency code; amounts in different currencies are never summed
// together.
type CategoryStats struct {
	Count           int                        `json:"count"`
	TotalSavings    map[string]decimal.Decimal `json:"total_savings"`
	AvgScoreImpact  decimal.Decimal            `json:"avg_advisor_score_impact"`
}

// ImpactStats summarizes one business-impact tier.
type ImpactStats struct {
	Count        int                        `json:"count"`
	Percentage   decimal.Decimal            `json:"percentage"` // 2dp, 0 when total is 0
	TotalSavings map[string]decimal.Decimal `json:"total_savings"`
	AvgSavings   map[string]decimal.Decimal `json:"avg_savings"`
}

// CategoryScore is the per-category advisor score contribution.
type CategoryScore struct {
	TotalImpact decimal.Decimal `json:"total_impact"`
	Improvement decimal.Decimal `json:"potential_improvement"` // impact * 0.5
}

// AdvisorScore is the 0-100 composite best-practice score.
type AdvisorScore struct {
	Current     decimal.Decimal            `json:"current_score"`
	Potential   decimal.Decimal            `json:"potential_score"` // capped at 100.00
	Improvement decimal.Decimal            `json:"potential_improvement"`
	ByCategory  map[Category]CategoryScore `json:"by_category,omitempty"`
}

// ROIMetrics projects return on implementing the recommendations.
type ROIMetrics struct {
	TotalSavings       decimal.Decimal `json:"total_savings"`
	ImplementationCost decimal.Decimal `json:"implementation_cost"`
	MonthlySavings     decimal.Decimal `json:"monthly_savings"`
	PaybackMonths      decimal.Decimal `json:"payback_months"`
	ThreeYearROIPct    decimal.Decimal `json:"three_year_roi_pct"`
	BreakEvenDate      time.Time       `json:"break_even_date"`
}

// CategoryHours is the estimated remediation effort for one category.
type CategoryHours struct {
	Count int             `json:"count"`
	Hours decimal.Decimal `json:"hours"`
}

// TimeSavings estimates engineering effort represented by the findings.
type TimeSavings struct {
	TotalHours     decimal.Decimal            `json:"total_hours"`
	Weeks          decimal.Decimal            `json:"weeks"`
	LaborCostSaved decimal.Decimal            `json:"labor_cost_saved"`
	ByCategory     map[Category]CategoryHours `json:"by_category,omitempty"`
}

// TrendMetric selects which event series a trend is computed over.
type TrendMetric string

const (
	TrendRecommendations TrendMetric = "recommendations"
	TrendSavings         TrendMetric = "savings"
	TrendReports         TrendMetric = "reports"
)

// TrendPoint is one calendar-day bucket in a trend series. Series are
// zero-filled: every date in the window appears even with no activity.
type TrendPoint struct {
	Date  time.Time       `json:"date"` // midnight UTC
	Value decimal.Decimal `json:"value"`
}

// DayActivity is one day's raw event counts, as read from the store.
// Trend series and the client-metrics aggregate are derived from it.
type DayActivity struct {
	Date            time.Time       `json:"date"` // midnight UTC
	Reports         int             `json:"reports"`
	Recommendations int             `json:"recommendations"`
	Savings         decimal.Decimal `json:"savings"`
}

// ClientMetrics is a derived per-client per-day aggregate. It is a read-side
// cache only: recomputable at any time from the recommendations table and
// safe to drop and rebuild.
type ClientMetrics struct {
	ClientID        string          `json:"client_id"`
	Day             time.Time       `json:"day"`
	Reports         int             `json:"reports"`
	Recommendations int             `json:"recommendations"`
	TotalSavings    decimal.Decimal `json:"total_savings"`
}
