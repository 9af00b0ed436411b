package assemble

import (
	"time"

	"github.com/sells-group/advisor-cli/internal/metrics"
	"github.com/sells-group/advisor-cli/internal/model"
)

// CategoryGroup holds one category's findings, ordered for display.
type CategoryGroup struct {
	Category        model.Category
	Recommendations []model.Recommendation
}

// DetailedContext backs the full technical report: every finding,
// grouped by category, with the complete metrics set.
type DetailedContext struct {
	Report   *model.Report
	Groups   []CategoryGroup
	Snapshot *model.AnalysisData
}

func (c *DetailedContext) ReportType() model.ReportType  { return model.ReportDetailed }
func (c *DetailedContext) Analysis() *model.AnalysisData { return c.Snapshot }

func (a *Assembler) assembleDetailed(report *model.Report, recs []model.Recommendation, now time.Time) *DetailedContext {
	groups := make([]CategoryGroup, 0, len(model.Categories()))
	for _, cat := range model.Categories() {
		members := filterCategory(recs, cat)
		if len(members) == 0 {
			continue
		}
		sortByImpact(members)
		groups = append(groups, CategoryGroup{Category: cat, Recommendations: members})
	}

	return &DetailedContext{
		Report: report,
		Groups: groups,
		Snapshot: &model.AnalysisData{
			Version:     model.AnalysisVersion,
			ReportType:  model.ReportDetailed,
			GeneratedAt: now.UTC(),
			Detailed: &model.DetailedAnalysis{
				TotalFindings:        len(recs),
				CategoryDistribution: metrics.CategoryDistribution(recs),
				ImpactDistribution:   metrics.ImpactDistribution(recs),
				Score:                metrics.Score(recs),
				TimeSavings:          metrics.TimeSavings(recs),
			},
		},
	}
}
