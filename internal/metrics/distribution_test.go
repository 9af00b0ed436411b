package metrics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/advisor-cli/internal/model"
)

func rec(cat model.Category, impact model.BusinessImpact, savings string, scoreImpact string) model.Recommendation {
	return model.Recommendation{
		Category:           cat,
		BusinessImpact:     impact,
		Currency:           "USD",
		PotentialSavings:   decimal.RequireFromString(savings),
		AdvisorScoreImpact: decimal.RequireFromString(scoreImpact),
	}
}

// Mirrors a 20-row advisor export: 7 cost rows carrying all the savings,
// 13 rows in other categories with none.
func sampleSet() []model.Recommendation {
	recs := []model.Recommendation{
		rec(model.CategoryCost, model.ImpactHigh, "2400.00", "1.2"),
		rec(model.CategoryCost, model.ImpactHigh, "1500.10", "1.0"),
		rec(model.CategoryCost, model.ImpactHigh, "900.00", "0.8"),
		rec(model.CategoryCost, model.ImpactMedium, "644.00", "0.6"),
		rec(model.CategoryCost, model.ImpactMedium, "400.00", "0.5"),
		rec(model.CategoryCost, model.ImpactMedium, "200.00", "0.4"),
		rec(model.CategoryCost, model.ImpactLow, "100.00", "0.2"),
	}
	for i := 0; i < 4; i++ {
		recs = append(recs, rec(model.CategorySecurity, model.ImpactHigh, "0", "2.0"))
	}
	for i := 0; i < 4; i++ {
		recs = append(recs, rec(model.CategoryReliability, model.ImpactMedium, "0", "1.5"))
	}
	for i := 0; i < 2; i++ {
		recs = append(recs, rec(model.CategoryOperationalExc, model.ImpactMedium, "0", "1.0"))
	}
	for i := 0; i < 3; i++ {
		recs = append(recs, rec(model.CategoryPerformance, model.ImpactLow, "0", "0.5"))
	}
	return recs // High:7, Medium:9, Low:4
}

func TestCategoryDistribution_SavingsStayInCategory(t *testing.T) {
	dist := CategoryDistribution(sampleSet())

	total := 0
	for _, stats := range dist {
		total += stats.Count
	}
	assert.Equal(t, 20, total, "counts must sum to the input size")

	assert.Equal(t, 7, dist[model.CategoryCost].Count)
	assert.True(t, dist[model.CategoryCost].TotalSavings["USD"].Equal(decimal.RequireFromString("6144.10")),
		"got %s", dist[model.CategoryCost].TotalSavings["USD"])

	for _, cat := range []model.Category{model.CategorySecurity, model.CategoryReliability, model.CategoryOperationalExc, model.CategoryPerformance} {
		assert.True(t, dist[cat].TotalSavings["USD"].IsZero(), "category %s should carry no savings", cat)
	}
}

func TestCategoryDistribution_AllCategoriesPresent(t *testing.T) {
	dist := CategoryDistribution(nil)
	require.Len(t, dist, 5)
	for _, cat := range model.Categories() {
		assert.Zero(t, dist[cat].Count)
		assert.Empty(t, dist[cat].TotalSavings)
		assert.True(t, dist[cat].AvgScoreImpact.IsZero())
	}
}

func TestCategoryDistribution_AvgScoreImpact(t *testing.T) {
	recs := []model.Recommendation{
		rec(model.CategorySecurity, model.ImpactHigh, "0", "4.0"),
		rec(model.CategorySecurity, model.ImpactHigh, "0", "2.0"),
	}
	dist := CategoryDistribution(recs)
	assert.True(t, dist[model.CategorySecurity].AvgScoreImpact.Equal(decimal.RequireFromString("3.00")))
}

func TestCategoryDistribution_MixedCurrenciesNeverSummed(t *testing.T) {
	recs := []model.Recommendation{
		rec(model.CategoryCost, model.ImpactHigh, "100.00", "1.0"),
		{Category: model.CategoryCost, BusinessImpact: model.ImpactHigh, Currency: "EUR",
			PotentialSavings: decimal.RequireFromString("200.00"), AdvisorScoreImpact: decimal.NewFromInt(1)},
	}
	dist := CategoryDistribution(recs)
	stats := dist[model.CategoryCost]
	assert.True(t, stats.TotalSavings["USD"].Equal(decimal.RequireFromString("100.00")))
	assert.True(t, stats.TotalSavings["EUR"].Equal(decimal.RequireFromString("200.00")))
	assert.Len(t, stats.TotalSavings, 2)
}

func TestImpactDistribution_Percentages(t *testing.T) {
	dist := ImpactDistribution(sampleSet())

	assert.Equal(t, 7, dist[model.ImpactHigh].Count)
	assert.Equal(t, 9, dist[model.ImpactMedium].Count)
	assert.Equal(t, 4, dist[model.ImpactLow].Count)

	assert.True(t, dist[model.ImpactHigh].Percentage.Equal(decimal.RequireFromString("35.00")), "got %s", dist[model.ImpactHigh].Percentage)
	assert.True(t, dist[model.ImpactMedium].Percentage.Equal(decimal.RequireFromString("45.00")))
	assert.True(t, dist[model.ImpactLow].Percentage.Equal(decimal.RequireFromString("20.00")))

	// Percentages sum to 100 within rounding tolerance.
	sum := decimal.Zero
	for _, stats := range dist {
		sum = sum.Add(stats.Percentage)
	}
	diff := sum.Sub(decimal.NewFromInt(100)).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.1")), "sum: %s", sum)
}

func TestImpactDistribution_EmptyInput(t *testing.T) {
	dist := ImpactDistribution(nil)
	require.Len(t, dist, 3)
	for _, stats := range dist {
		assert.Zero(t, stats.Count)
		assert.True(t, stats.Percentage.IsZero(), "zero total must yield zero percentage")
	}
}

func TestImpactDistribution_AvgSavings(t *testing.T) {
	recs := []model.Recommendation{
		rec(model.CategoryCost, model.ImpactHigh, "100.00", "1.0"),
		rec(model.CategoryCost, model.ImpactHigh, "300.00", "1.0"),
	}
	dist := ImpactDistribution(recs)
	assert.True(t, dist[model.ImpactHigh].TotalSavings["USD"].Equal(decimal.RequireFromString("400.00")))
	assert.True(t, dist[model.ImpactHigh].AvgSavings["USD"].Equal(decimal.RequireFromString("200.00")))
}

func TestImpactDistribution_UnknownImpactNotDropped(t *testing.T) {
	// Rows scanned from storage bypass normalization, so an out-of-enum
	// impact must be aggregated under its own key, not panic or vanish.
	recs := []model.Recommendation{
		rec(model.CategoryCost, model.ImpactHigh, "100.00", "1.0"),
		rec(model.CategoryCost, model.BusinessImpact("critical"), "50.00", "1.0"),
		rec(model.CategoryCost, model.BusinessImpact("critical"), "25.00", "1.0"),
	}

	dist := ImpactDistribution(recs)
	require.Len(t, dist, 4)

	got := dist[model.BusinessImpact("critical")]
	assert.Equal(t, 2, got.Count)
	assert.True(t, got.TotalSavings["USD"].Equal(decimal.RequireFromString("75.00")), "got %s", got.TotalSavings["USD"])
	assert.True(t, got.AvgSavings["USD"].Equal(decimal.RequireFromString("37.50")), "got %s", got.AvgSavings["USD"])
	assert.True(t, got.Percentage.Equal(decimal.RequireFromString("66.67")), "got %s", got.Percentage)

	assert.Equal(t, 1, dist[model.ImpactHigh].Count)
}
