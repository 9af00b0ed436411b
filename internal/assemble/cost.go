package assemble

import (
	"sort"
	"time"

	"github.com/sells-group/advisor-cli/internal/metrics"
	"github.com/sells-group/advisor-cli/internal/model"
)

// ResourceGroup holds one resource type's cost findings.
type ResourceGroup struct {
	ResourceType    string
	Recommendations []model.Recommendation
}

// CostContext backs the cost-optimization report. Findings are
// bucketed by savings size so the reader can sequence the work.
type CostContext struct {
	Report     *model.Report
	QuickWins  []model.Recommendation
	Medium     []model.Recommendation
	Major      []model.Recommendation
	ByResource []ResourceGroup
	Snapshot   *model.AnalysisData
}

func (c *CostContext) ReportType() model.ReportType  { return model.ReportCost }
func (c *CostContext) Analysis() *model.AnalysisData { return c.Snapshot }

func (a *Assembler) assembleCost(report *model.Report, recs []model.Recommendation, now time.Time) *CostContext {
	costRecs := filterCategory(recs, model.CategoryCost)
	sortBySavings(costRecs)

	quickMax := a.tuning.quickWinMax()
	majorMin := a.tuning.majorMin()

	var quick, medium, major []model.Recommendation
	for _, r := range costRecs {
		switch {
		case r.PotentialSavings.GreaterThan(majorMin):
			major = append(major, r)
		case r.PotentialSavings.GreaterThan(quickMax):
			medium = append(medium, r)
		default:
			quick = append(quick, r)
		}
	}

	byType := make(map[string][]model.Recommendation)
	for _, r := range costRecs {
		byType[r.ResourceType] = append(byType[r.ResourceType], r)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	groups := make([]ResourceGroup, 0, len(types))
	for _, t := range types {
		groups = append(groups, ResourceGroup{ResourceType: t, Recommendations: byType[t]})
	}

	return &CostContext{
		Report:     report,
		QuickWins:  quick,
		Medium:     medium,
		Major:      major,
		ByResource: groups,
		Snapshot: &model.AnalysisData{
			Version:     model.AnalysisVersion,
			ReportType:  model.ReportCost,
			GeneratedAt: now.UTC(),
			Cost: &model.CostAnalysis{
				TotalFindings: len(costRecs),
				QuickWins:     len(quick),
				Medium:        len(medium),
				Major:         len(major),
				ROI:           metrics.ROI(costRecs, nil, now),
				TimeSavings:   metrics.TimeSavings(costRecs),
			},
		},
	}
}
