package assemble

import (
	"time"

	"github.com/sells-group/advisor-cli/internal/metrics"
	"github.com/sells-group/advisor-cli/internal/model"
)

// OperationsContext backs the operational-excellence report, covering
// reliability, operational excellence, and performance findings.
type OperationsContext struct {
	Report      *model.Report
	Reliability []model.Recommendation
	Operational []model.Recommendation
	Performance []model.Recommendation
	Snapshot    *model.AnalysisData
}

func (c *OperationsContext) ReportType() model.ReportType  { return model.ReportOperations }
func (c *OperationsContext) Analysis() *model.AnalysisData { return c.Snapshot }

func (a *Assembler) assembleOperations(report *model.Report, recs []model.Recommendation, now time.Time) *OperationsContext {
	opsRecs := filterCategory(recs,
		model.CategoryReliability,
		model.CategoryOperationalExc,
		model.CategoryPerformance,
	)
	sortByScore(opsRecs)

	byCategory := make(map[model.Category][]model.Recommendation)
	for _, r := range opsRecs {
		byCategory[r.Category] = append(byCategory[r.Category], r)
	}

	analysis := metrics.CategoryDistribution(opsRecs)
	scoped := make(map[model.Category]model.CategoryStats, 3)
	for _, cat := range []model.Category{
		model.CategoryReliability,
		model.CategoryOperationalExc,
		model.CategoryPerformance,
	} {
		scoped[cat] = analysis[cat]
	}

	return &OperationsContext{
		Report:      report,
		Reliability: byCategory[model.CategoryReliability],
		Operational: byCategory[model.CategoryOperationalExc],
		Performance: byCategory[model.CategoryPerformance],
		Snapshot: &model.AnalysisData{
			Version:     model.AnalysisVersion,
			ReportType:  model.ReportOperations,
			GeneratedAt: now.UTC(),
			Operations: &model.OperationsAnalysis{
				TotalFindings: len(opsRecs),
				ByCategory:    scoped,
				Score:         metrics.Score(opsRecs),
				TimeSavings:   metrics.TimeSavings(opsRecs),
			},
		},
	}
}
