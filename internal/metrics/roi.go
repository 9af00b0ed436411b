package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/advisor-cli/internal/model"
)

var (
	defaultCostRatio = decimal.RequireFromString("0.20")
	twelve           = decimal.NewFromInt(12)
	three            = decimal.NewFromInt(3)
)

// ROI projects return on implementing the findings. When no implementation
// cost is supplied it is estimated at 20% of total savings. All divisions
// are zero-safe: zero savings or zero cost yield zero ratios rather than
// errors.
//
// Savings are summed as-is; Advisor exports carry a single currency per
// subscription, so cross-currency mixing is not expected here.
func ROI(recs []model.Recommendation, implementationCost *decimal.Decimal, now time.Time) model.ROIMetrics {
	total := decimal.Zero
	for _, rec := range recs {
		total = total.Add(rec.PotentialSavings)
	}
	total = total.Round(2)

	var cost decimal.Decimal
	if implementationCost != nil {
		cost = implementationCost.Round(2)
	} else {
		cost = total.Mul(defaultCostRatio).Round(2)
	}

	monthly := decimal.Zero
	if !total.IsZero() {
		monthly = total.Div(twelve).Round(2)
	}

	payback := decimal.Zero
	if !monthly.IsZero() {
		payback = cost.Div(monthly).Round(2)
	}

	roiPct := decimal.Zero
	if !cost.IsZero() {
		roiPct = three.Mul(total).Sub(cost).Div(cost).Mul(hundred).Round(2)
	}

	paybackDays := int(payback.Mul(decimal.NewFromInt(30)).IntPart())

	return model.ROIMetrics{
		TotalSavings:       total,
		ImplementationCost: cost,
		MonthlySavings:     monthly,
		PaybackMonths:      payback,
		ThreeYearROIPct:    roiPct,
		BreakEvenDate:      now.UTC().AddDate(0, 0, paybackDays),
	}
}
