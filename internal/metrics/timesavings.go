package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/advisor-cli/internal/model"
)

// Remediation effort per recommendation, in hours, by category.
var hoursPerCategory = map[model.Category]decimal.Decimal{
	model.CategoryCost:           decimal.RequireFromString("2.5"),
	model.CategorySecurity:       decimal.RequireFromString("4.0"),
	model.CategoryReliability:    decimal.RequireFromString("3.5"),
	model.CategoryOperationalExc: decimal.RequireFromString("3.0"),
	model.CategoryPerformance:    decimal.RequireFromString("2.0"),
}

var (
	defaultHours = decimal.RequireFromString("2.5")
	weekHours    = decimal.NewFromInt(40)
	laborRate    = decimal.NewFromInt(75) // USD per engineering hour
)

// TimeSavings estimates the engineering effort an advisor engagement saves
// compared to discovering each finding manually.
func TimeSavings(recs []model.Recommendation) model.TimeSavings {
	counts := make(map[model.Category]int)
	for _, rec := range recs {
		counts[rec.Category]++
	}

	byCategory := make(map[model.Category]model.CategoryHours, len(counts))
	total := decimal.Zero
	for cat, count := range counts {
		hours, ok := hoursPerCategory[cat]
		if !ok {
			hours = defaultHours
		}
		catHours := hours.Mul(decimal.NewFromInt(int64(count)))
		byCategory[cat] = model.CategoryHours{Count: count, Hours: catHours}
		total = total.Add(catHours)
	}

	return model.TimeSavings{
		TotalHours:     total,
		Weeks:          zeroSafeDiv(total, weekHours),
		LaborCostSaved: total.Mul(laborRate).Round(2),
		ByCategory:     byCategory,
	}
}

func zeroSafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() || a.IsZero() {
		return decimal.Zero
	}
	return a.Div(b).Round(2)
}
