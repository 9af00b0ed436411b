package assemble

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/advisor-cli/internal/model"
)

// RenderContext is the typed payload handed to the HTML renderer.
// Each report type has its own concrete context.
type RenderContext interface {
	ReportType() model.ReportType
	// Analysis returns the snapshot persisted alongside the report.
	Analysis() *model.AnalysisData
}

// Assembler builds render contexts from a report's recommendation set.
type Assembler struct {
	tuning Tuning
}

// New returns an Assembler with the given tuning.
func New(tuning Tuning) *Assembler {
	return &Assembler{tuning: tuning}
}

// Assemble dispatches to the strategy for the report's type. An empty
// recommendation set yields a valid context with zeroed metrics.
func (a *Assembler) Assemble(report *model.Report, recs []model.Recommendation, now time.Time) (RenderContext, error) {
	switch report.Type {
	case model.ReportDetailed:
		return a.assembleDetailed(report, recs, now), nil
	case model.ReportExecutive:
		return a.assembleExecutive(report, recs, now), nil
	case model.ReportCost:
		return a.assembleCost(report, recs, now), nil
	case model.ReportSecurity:
		return a.assembleSecurity(report, recs, now), nil
	case model.ReportOperations:
		return a.assembleOperations(report, recs, now), nil
	default:
		return nil, eris.Errorf("assemble: unknown report type %q", report.Type)
	}
}

// sortByImpact orders by business impact desc, then savings desc,
// then score impact desc. Stable so equal rows keep CSV order.
func sortByImpact(recs []model.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if ri, rj := recs[i].BusinessImpact.Rank(), recs[j].BusinessImpact.Rank(); ri != rj {
			return ri > rj
		}
		if c := recs[i].PotentialSavings.Cmp(recs[j].PotentialSavings); c != 0 {
			return c > 0
		}
		return recs[i].AdvisorScoreImpact.GreaterThan(recs[j].AdvisorScoreImpact)
	})
}

// sortBySavings orders by potential savings desc.
func sortBySavings(recs []model.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].PotentialSavings.GreaterThan(recs[j].PotentialSavings)
	})
}

// sortByImpactThenScore orders by business impact desc, then advisor
// score impact desc.
func sortByImpactThenScore(recs []model.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if ri, rj := recs[i].BusinessImpact.Rank(), recs[j].BusinessImpact.Rank(); ri != rj {
			return ri > rj
		}
		return recs[i].AdvisorScoreImpact.GreaterThan(recs[j].AdvisorScoreImpact)
	})
}

// sortByScore orders by advisor score impact desc.
func sortByScore(recs []model.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].AdvisorScoreImpact.GreaterThan(recs[j].AdvisorScoreImpact)
	})
}

func filterCategory(recs []model.Recommendation, cats ...model.Category) []model.Recommendation {
	out := make([]model.Recommendation, 0, len(recs))
	for _, r := range recs {
		for _, c := range cats {
			if r.Category == c {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func filterImpact(recs []model.Recommendation, impact model.BusinessImpact) []model.Recommendation {
	out := make([]model.Recommendation, 0, len(recs))
	for _, r := range recs {
		if r.BusinessImpact == impact {
			out = append(out, r)
		}
	}
	return out
}

func totalSavings(recs []model.Recommendation) decimal.Decimal {
	total := decimal.Zero
	for _, r := range recs {
		total = total.Add(r.PotentialSavings)
	}
	return total.Round(2)
}
