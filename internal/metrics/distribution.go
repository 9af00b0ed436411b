// Package metrics computes optimization metrics over a set of
// recommendations. All functions are pure: they depend only on the data
// model and never touch storage.
package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/advisor-cli/internal/model"
)

var hundred = decimal.NewFromInt(100)

// CategoryDistribution groups findings by category. Every category appears
// in the result, including those with no findings. Savings are aggregated
// per currency key and never summed across currencies.
func CategoryDistribution(recs []model.Recommendation) map[model.Category]model.CategoryStats {
	out := make(map[model.Category]model.CategoryStats, len(model.Categories()))
	sums := make(map[model.Category]decimal.Decimal)

	for _, c := range model.Categories() {
		out[c] = model.CategoryStats{TotalSavings: map[string]decimal.Decimal{}}
	}

	for _, rec := range recs {
		stats, ok := out[rec.Category]
		if !ok {
			// Unknown categories cannot occur once rows pass normalization,
			// but a stale store row must not be silently dropped.
			stats = model.CategoryStats{TotalSavings: map[string]decimal.Decimal{}}
		}
		stats.Count++
		stats.TotalSavings[rec.Currency] = stats.TotalSavings[rec.Currency].Add(rec.PotentialSavings)
		sums[rec.Category] = sums[rec.Category].Add(rec.AdvisorScoreImpact)
		out[rec.Category] = stats
	}

	for cat, stats := range out {
		if stats.Count > 0 {
			stats.AvgScoreImpact = sums[cat].Div(decimal.NewFromInt(int64(stats.Count))).Round(2)
			out[cat] = stats
		}
	}

	return out
}

// ImpactDistribution groups findings by business impact. Percentages are
// rounded to 2dp; a zero total yields zero percentages, not a division
// error.
func ImpactDistribution(recs []model.Recommendation) map[model.BusinessImpact]model.ImpactStats {
	out := map[model.BusinessImpact]model.ImpactStats{
		model.ImpactHigh:   {TotalSavings: map[string]decimal.Decimal{}, AvgSavings: map[string]decimal.Decimal{}},
		model.ImpactMedium: {TotalSavings: map[string]decimal.Decimal{}, AvgSavings: map[string]decimal.Decimal{}},
		model.ImpactLow:    {TotalSavings: map[string]decimal.Decimal{}, AvgSavings: map[string]decimal.Decimal{}},
	}

	currencyCounts := map[model.BusinessImpact]map[string]int{
		model.ImpactHigh:   {},
		model.ImpactMedium: {},
		model.ImpactLow:    {},
	}

	total := len(recs)
	for _, rec := range recs {
		stats, ok := out[rec.BusinessImpact]
		if !ok {
			// Unknown impacts cannot occur once rows pass normalization,
			// but a stale store row must not be silently dropped.
			stats = model.ImpactStats{TotalSavings: map[string]decimal.Decimal{}, AvgSavings: map[string]decimal.Decimal{}}
			currencyCounts[rec.BusinessImpact] = map[string]int{}
		}
		stats.Count++
		stats.TotalSavings[rec.Currency] = stats.TotalSavings[rec.Currency].Add(rec.PotentialSavings)
		currencyCounts[rec.BusinessImpact][rec.Currency]++
		out[rec.BusinessImpact] = stats
	}

	for impact, stats := range out {
		if total > 0 {
			stats.Percentage = decimal.NewFromInt(int64(stats.Count)).
				Mul(hundred).
				Div(decimal.NewFromInt(int64(total))).
				Round(2)
		}
		for currency, sum := range stats.TotalSavings {
			if n := currencyCounts[impact][currency]; n > 0 {
				stats.AvgSavings[currency] = sum.Div(decimal.NewFromInt(int64(n))).Round(2)
			}
		}
		out[impact] = stats
	}

	return out
}
