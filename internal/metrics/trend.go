package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/advisor-cli/internal/model"
)

// TrendSeries buckets activity by calendar date over [today-days, today].
// Every date in the window appears in the output, zero-filled when there
// was no activity: chart consumers rely on a gap-free series of exactly
// days+1 contiguous entries.
func TrendSeries(activity []model.DayActivity, days int, metric model.TrendMetric, today time.Time) []model.TrendPoint {
	if days < 0 {
		days = 0
	}

	byDay := make(map[time.Time]decimal.Decimal, len(activity))
	for _, a := range activity {
		day := truncateDay(a.Date)
		var v decimal.Decimal
		switch metric {
		case model.TrendSavings:
			v = a.Savings
		case model.TrendReports:
			v = decimal.NewFromInt(int64(a.Reports))
		default: // model.TrendRecommendations
			v = decimal.NewFromInt(int64(a.Recommendations))
		}
		byDay[day] = byDay[day].Add(v)
	}

	end := truncateDay(today)
	start := end.AddDate(0, 0, -days)

	series := make([]model.TrendPoint, 0, days+1)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		series = append(series, model.TrendPoint{Date: day, Value: byDay[day]})
	}
	return series
}

// BuildClientMetrics converts daily activity into derived aggregate rows
// for one client. The output can be bulk-upserted and rebuilt at will.
func BuildClientMetrics(clientID string, activity []model.DayActivity) []model.ClientMetrics {
	out := make([]model.ClientMetrics, 0, len(activity))
	for _, a := range activity {
		out = append(out, model.ClientMetrics{
			ClientID:        clientID,
			Day:             truncateDay(a.Date),
			Reports:         a.Reports,
			Recommendations: a.Recommendations,
			TotalSavings:    a.Savings.Round(2),
		})
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
