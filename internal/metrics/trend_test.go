package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/advisor-cli/internal/model"
)

var trendToday = time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC)

func day(offset int) time.Time {
	return time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestTrendSeries_ZeroFill(t *testing.T) {
	activity := []model.DayActivity{
		{Date: day(-5), Recommendations: 12},
		{Date: day(-1), Recommendations: 3},
	}
	series := TrendSeries(activity, 30, model.TrendRecommendations, trendToday)

	require.Len(t, series, 31, "30 days back plus today")
	for i := 1; i < len(series); i++ {
		assert.Equal(t, series[i-1].Date.AddDate(0, 0, 1), series[i].Date, "dates must be contiguous")
	}
	assert.Equal(t, day(-30), series[0].Date)
	assert.Equal(t, day(0), series[len(series)-1].Date)

	nonZero := 0
	for _, p := range series {
		if !p.Value.IsZero() {
			nonZero++
		}
	}
	assert.Equal(t, 2, nonZero)
}

func TestTrendSeries_Metrics(t *testing.T) {
	activity := []model.DayActivity{
		{Date: day(0), Reports: 2, Recommendations: 40, Savings: decimal.RequireFromString("99.50")},
	}

	recsSeries := TrendSeries(activity, 0, model.TrendRecommendations, trendToday)
	require.Len(t, recsSeries, 1)
	assert.True(t, recsSeries[0].Value.Equal(decimal.NewFromInt(40)))

	savings := TrendSeries(activity, 0, model.TrendSavings, trendToday)
	assert.True(t, savings[0].Value.Equal(decimal.RequireFromString("99.50")))

	reports := TrendSeries(activity, 0, model.TrendReports, trendToday)
	assert.True(t, reports[0].Value.Equal(decimal.NewFromInt(2)))
}

func TestTrendSeries_EmptyActivity(t *testing.T) {
	series := TrendSeries(nil, 7, model.TrendSavings, trendToday)
	require.Len(t, series, 8)
	for _, p := range series {
		assert.True(t, p.Value.IsZero())
	}
}

func TestTrendSeries_ActivityOutsideWindowIgnored(t *testing.T) {
	activity := []model.DayActivity{
		{Date: day(-40), Recommendations: 100},
		{Date: day(-2), Recommendations: 5},
	}
	series := TrendSeries(activity, 7, model.TrendRecommendations, trendToday)
	total := decimal.Zero
	for _, p := range series {
		total = total.Add(p.Value)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(5)))
}

func TestBuildClientMetrics(t *testing.T) {
	activity := []model.DayActivity{
		{Date: trendToday, Reports: 1, Recommendations: 20, Savings: decimal.RequireFromString("6144.104")},
	}
	rows := BuildClientMetrics("client-1", activity)
	require.Len(t, rows, 1)
	assert.Equal(t, "client-1", rows[0].ClientID)
	assert.Equal(t, day(0), rows[0].Day, "days are truncated to midnight UTC")
	assert.True(t, rows[0].TotalSavings.Equal(decimal.RequireFromString("6144.10")))
}
