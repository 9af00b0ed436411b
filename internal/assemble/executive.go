package assemble

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/advisor-cli/internal/metrics"
	"github.com/sells-group/advisor-cli/internal/model"
)

// CategoryPriority ranks a category by the total savings it carries.
type CategoryPriority struct {
	Category     model.Category
	TotalSavings decimal.Decimal
	Findings     int
}

// ExecutiveContext backs the leadership summary: the highest-value
// opportunities plus category priorities and the ROI story.
type ExecutiveContext struct {
	Report           *model.Report
	TopOpportunities []model.Recommendation
	Priorities       []CategoryPriority
	Snapshot         *model.AnalysisData
}

func (c *ExecutiveContext) ReportType() model.ReportType  { return model.ReportExecutive }
func (c *ExecutiveContext) Analysis() *model.AnalysisData { return c.Snapshot }

func (a *Assembler) assembleExecutive(report *model.Report, recs []model.Recommendation, now time.Time) *ExecutiveContext {
	high := filterImpact(recs, model.ImpactHigh)
	sortBySavings(high)
	top := high
	if len(top) > a.tuning.ExecutiveTopN {
		top = top[:a.tuning.ExecutiveTopN]
	}

	priorities := make([]CategoryPriority, 0, len(model.Categories()))
	for _, cat := range model.Categories() {
		members := filterCategory(recs, cat)
		if len(members) == 0 {
			continue
		}
		priorities = append(priorities, CategoryPriority{
			Category:     cat,
			TotalSavings: totalSavings(members),
			Findings:     len(members),
		})
	}
	sort.SliceStable(priorities, func(i, j int) bool {
		return priorities[i].TotalSavings.GreaterThan(priorities[j].TotalSavings)
	})

	return &ExecutiveContext{
		Report:           report,
		TopOpportunities: top,
		Priorities:       priorities,
		Snapshot: &model.AnalysisData{
			Version:     model.AnalysisVersion,
			ReportType:  model.ReportExecutive,
			GeneratedAt: now.UTC(),
			Executive: &model.ExecutiveAnalysis{
				TotalFindings:        len(recs),
				HighImpactFindings:   len(high),
				CategoryDistribution: metrics.CategoryDistribution(recs),
				ImpactDistribution:   metrics.ImpactDistribution(recs),
				Score:                metrics.Score(recs),
				ROI:                  metrics.ROI(recs, nil, now),
			},
		},
	}
}
