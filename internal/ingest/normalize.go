package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/advisor-cli/internal/model"
)

// CSV column names as emitted by the Azure Advisor export.
const (
	colCategory        = "Category"
	colBusinessImpact  = "Business Impact"
	colRecommendation  = "Recommendation"
	colSubscriptionID  = "Subscription ID"
	colSubscription    = "Subscription Name"
	colResourceGroup   = "Resource Group"
	colResourceName    = "Resource Name"
	colResourceType    = "Resource Type"
	colSavings         = "Potential Annual Cost Savings"
	colCurrency        = "Currency"
	colBenefits        = "Potential Benefits"
	colScoreImpact     = "Advisor Score Impact"
	colRetirementDate  = "Retirement Date"
	colRetiringFeature = "Retiring Feature"
)

var maxScoreImpact = decimal.NewFromInt(10)

// Normalizer maps one raw CSV row to a canonical Recommendation record.
type Normalizer struct {
	columns map[string]int
}

// NewNormalizer creates a normalizer bound to a validated header map.
func NewNormalizer(columns map[string]int) *Normalizer {
	return &Normalizer{columns: columns}
}

// Normalize converts a raw record into a Recommendation. A nil *RowError
// means the row is valid. Row errors never abort the file; they are
// collected by the ingestor and counted against the error-rate threshold.
func (n *Normalizer) Normalize(record []string, rowNumber int) (*model.Recommendation, *model.RowError) {
	col := func(name string) string { return getCol(record, n.columns, name) }

	category, ok := model.ParseCategory(col(colCategory))
	if !ok {
		return nil, rowErr(rowNumber, colCategory, col(colCategory), "unrecognized category")
	}

	impact, ok := model.ParseBusinessImpact(col(colBusinessImpact))
	if !ok {
		return nil, rowErr(rowNumber, colBusinessImpact, col(colBusinessImpact), "unrecognized business impact")
	}

	savings, err := parseMoney(col(colSavings))
	if err != nil {
		return nil, rowErr(rowNumber, colSavings, col(colSavings), err.Error())
	}
	if savings.IsNegative() {
		return nil, rowErr(rowNumber, colSavings, col(colSavings), "negative savings")
	}

	scoreImpact, err := parseMoney(col(colScoreImpact))
	if err != nil {
		return nil, rowErr(rowNumber, colScoreImpact, col(colScoreImpact), err.Error())
	}
	if scoreImpact.IsNegative() || scoreImpact.GreaterThan(maxScoreImpact) {
		return nil, rowErr(rowNumber, colScoreImpact, col(colScoreImpact), "advisor score impact outside 0-10")
	}

	currency, cerr := parseCurrency(col(colCurrency))
	if cerr != nil {
		return nil, rowErr(rowNumber, colCurrency, col(colCurrency), cerr.Error())
	}

	retirement, derr := parseDate(col(colRetirementDate))
	if derr != nil {
		return nil, rowErr(rowNumber, colRetirementDate, col(colRetirementDate), derr.Error())
	}

	return &model.Recommendation{
		Category:           category,
		BusinessImpact:     impact,
		Recommendation:     strings.TrimSpace(col(colRecommendation)),
		SubscriptionID:     strings.TrimSpace(col(colSubscriptionID)),
		SubscriptionName:   strings.TrimSpace(col(colSubscription)),
		// "", "N/A", and "*" are semantically meaningful (multi-resource or
		// subscription-level findings) and are preserved verbatim.
		ResourceGroup:      strings.TrimSpace(col(colResourceGroup)),
		ResourceName:       strings.TrimSpace(col(colResourceName)),
		ResourceType:       strings.TrimSpace(col(colResourceType)),
		PotentialSavings:   savings.Round(2),
		Currency:           currency,
		PotentialBenefits:  strings.TrimSpace(col(colBenefits)),
		AdvisorScoreImpact: scoreImpact,
		RetirementDate:     retirement,
		RetiringFeature:    strings.TrimSpace(col(colRetiringFeature)),
		SourceRowNumber:    rowNumber,
	}, nil
}

func rowErr(row int, column, value, message string) *model.RowError {
	return &model.RowError{Row: row, Column: column, Value: value, Message: message}
}

// moneyStrip removes currency symbols, thousands separators, and whitespace
// before decimal parsing: "$1,234.56" -> "1234.56".
var moneyStrip = strings.NewReplacer(
	"$", "", "€", "", "£", "", "¥", "", "₹", "",
	",", "", " ", "", " ", "",
)

// parseMoney parses a decimal amount. Absent or empty values are 0.00.
func parseMoney(s string) (decimal.Decimal, error) {
	s = moneyStrip.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	return d, nil
}

// parseCurrency validates an ISO-4217 alphabetic code. Empty defaults to USD
// (exports omit the currency on rows with no savings).
func parseCurrency(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "USD", nil
	}
	if len(s) != 3 {
		return "", fmt.Errorf("invalid currency code")
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("invalid currency code")
		}
	}
	return s, nil
}

// parseDate parses an ISO-8601 date. Empty is valid (no retirement).
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unparsable date")
}
