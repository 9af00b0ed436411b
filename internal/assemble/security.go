package assemble

import (
	"time"

	"github.com/sells-group/advisor-cli/internal/metrics"
	"github.com/sells-group/advisor-cli/internal/model"
)

// SecurityContext backs the security posture report. Findings are
// tiered by business impact: high maps to critical, medium to
// moderate, low to low.
type SecurityContext struct {
	Report   *model.Report
	Critical []model.Recommendation
	Moderate []model.Recommendation
	Low      []model.Recommendation
	Snapshot *model.AnalysisData
}

func (c *SecurityContext) ReportType() model.ReportType  { return model.ReportSecurity }
func (c *SecurityContext) Analysis() *model.AnalysisData { return c.Snapshot }

func (a *Assembler) assembleSecurity(report *model.Report, recs []model.Recommendation, now time.Time) *SecurityContext {
	secRecs := filterCategory(recs, model.CategorySecurity)
	sortByImpactThenScore(secRecs)

	critical := filterImpact(secRecs, model.ImpactHigh)
	moderate := filterImpact(secRecs, model.ImpactMedium)
	low := filterImpact(secRecs, model.ImpactLow)

	return &SecurityContext{
		Report:   report,
		Critical: critical,
		Moderate: moderate,
		Low:      low,
		Snapshot: &model.AnalysisData{
			Version:     model.AnalysisVersion,
			ReportType:  model.ReportSecurity,
			GeneratedAt: now.UTC(),
			Security: &model.SecurityAnalysis{
				TotalFindings: len(secRecs),
				Critical:      len(critical),
				Moderate:      len(moderate),
				Low:           len(low),
				Score:         metrics.Score(secRecs),
			},
		},
	}
}
