package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/advisor-cli/internal/model"
)

var (
	scoreBaseline   = decimal.RequireFromString("70.00")
	scoreCeiling    = decimal.RequireFromString("100.00")
	scoreMultiplier = decimal.RequireFromString("0.5")
)

// Score computes the advisor score from the findings' score impacts.
// The potential score is baseline + half the total impact, capped at 100.
// An empty set means nothing left to fix: current = potential = 100.
func Score(recs []model.Recommendation) model.AdvisorScore {
	if len(recs) == 0 {
		return model.AdvisorScore{
			Current:     scoreCeiling,
			Potential:   scoreCeiling,
			Improvement: decimal.Zero,
			ByCategory:  map[model.Category]model.CategoryScore{},
		}
	}

	byCategory := make(map[model.Category]model.CategoryScore)
	totalImpact := decimal.Zero
	for _, rec := range recs {
		totalImpact = totalImpact.Add(rec.AdvisorScoreImpact)
		cs := byCategory[rec.Category]
		cs.TotalImpact = cs.TotalImpact.Add(rec.AdvisorScoreImpact)
		byCategory[rec.Category] = cs
	}

	for cat, cs := range byCategory {
		cs.TotalImpact = cs.TotalImpact.Round(2)
		cs.Improvement = cs.TotalImpact.Mul(scoreMultiplier).Round(2)
		byCategory[cat] = cs
	}

	potential := scoreBaseline.Add(totalImpact.Mul(scoreMultiplier)).Round(2)
	if potential.GreaterThan(scoreCeiling) {
		potential = scoreCeiling
	}

	return model.AdvisorScore{
		Current:     scoreBaseline,
		Potential:   potential,
		Improvement: potential.Sub(scoreBaseline),
		ByCategory:  byCategory,
	}
}
