// Package model defines the core domain types shared across ingestion,
// metrics, assembly, and the report pipeline.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is one of the five Azure Advisor pillars.
type Category string

const (
	CategoryCost           Category = "cost"
	CategorySecurity       Category = "security"
	CategoryReliability    Category = "reliability"
	CategoryOperationalExc Category = "operational_excellence"
	CategoryPerformance    Category = "performance"
)

// Categories lists all valid categories in display order.
func Categories() []Category {
	return []Category{
		CategoryCost,
		CategorySecurity,
		CategoryReliability,
		CategoryOperationalExc,
		CategoryPerformance,
	}
}

// ParseCategory maps a raw CSV category string to its canonical value.
// Matching is case-insensitive and tolerant of surrounding whitespace.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cost":
		return CategoryCost, true
	case "security":
		return CategorySecurity, true
	case "reliability", "high availability":
		return CategoryReliability, true
	case "operational excellence", "operational_excellence", "operationalexcellence":
		return CategoryOperationalExc, true
	case "performance":
		return CategoryPerformance, true
	}
	return "", false
}

// BusinessImpact is the severity tier attached to a recommendation.
type BusinessImpact string

const (
	ImpactHigh   BusinessImpact = "high"
	ImpactMedium BusinessImpact = "medium"
	ImpactLow    BusinessImpact = "low"
)

// ParseBusinessImpact maps a raw CSV impact string to its canonical value.
func ParseBusinessImpact(s string) (BusinessImpact, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ImpactHigh, true
	case "medium":
		return ImpactMedium, true
	case "low":
		return ImpactLow, true
	}
	return "", false
}

// Rank orders impacts for sorting: high > medium > low.
func (b BusinessImpact) Rank() int {
	switch b {
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	case ImpactLow:
		return 1
	}
	return 0
}

// Recommendation is one Azure Advisor finding, immutable once persisted.
// Regeneration replaces the full set for a report, never mutates in place.
type Recommendation struct {
	ID                 int64           `json:"id,omitempty"`
	ReportID           string          `json:"report_id"`
	Category           Category        `json:"category"`
	BusinessImpact     BusinessImpact  `json:"business_impact"`
	Recommendation     string          `json:"recommendation"`
	SubscriptionID     string          `json:"subscription_id"`
	SubscriptionName   string          `json:"subscription_name"`
	ResourceGroup      string          `json:"resource_group,omitempty"`
	ResourceName       string          `json:"resource_name,omitempty"` // may be "*" (multi-resource)
	ResourceType       string          `json:"resource_type,omitempty"`
	PotentialSavings   decimal.Decimal `json:"potential_savings"`
	Currency           string          `json:"currency"`
	PotentialBenefits  string          `json:"potential_benefits,omitempty"`
	AdvisorScoreImpact decimal.Decimal `json:"advisor_score_impact"`
	RetirementDate     *time.Time      `json:"retirement_date,omitempty"`
	RetiringFeature    string          `json:"retiring_feature,omitempty"`
	SourceRowNumber    int             `json:"source_row_number"` // 1-based CSV row for traceability
}
