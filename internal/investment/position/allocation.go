package position

import (
	"sort"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/shopspring/decimal"
)

// Allocation splits total cost by display name, largest first. Percentages
// are rounded to two places.
func Allocation(transactions []models.Transaction) []models.AllocationSlice {
	costs := make(map[string]decimal.Decimal)
	var total decimal.Decimal
	for _, t := range transactions {
		name := strings.TrimSpace(t.Name)
		if name == "" || !usable(t.Total) {
			continue
		}
		amount := decimal.NewFromFloat(t.Total)
		costs[name] = costs[name].Add(amount)
		total = total.Add(amount)
	}

	slices := make([]models.AllocationSlice, 0, len(costs))
	for name, cost := range costs {
		s := models.AllocationSlice{Name: name, Cost: cost.InexactFloat64()}
		if !total.IsZero() {
			s.Percent = cost.Div(total).Mul(hundred).Round(2).InexactFloat64()
		}
		slices = append(slices, s)
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Cost != slices[j].Cost {
			return slices[i].Cost > slices[j].Cost
		}
		return slices[i].Name < slices[j].Name
	})
	return slices
}

// Convert re-expresses every amount of summary in another currency using
// rate units of currency per unit of the summary's currency. Rates and share
// counts are unchanged. The input is not modified.
func Convert(summary models.PortfolioSummary, rate float64, currency string) models.PortfolioSummary {
	r := decimal.NewFromFloat(rate)
	scale := func(v float64) float64 {
		return decimal.NewFromFloat(v).Mul(r).InexactFloat64()
	}
	scalePtr := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		f := scale(*v)
		return &f
	}

	out := summary
	out.Currency = strings.ToUpper(currency)
	out.TotalCost = scale(summary.TotalCost)
	out.PricedCost = scale(summary.PricedCost)
	out.MarketValue = scale(summary.MarketValue)
	out.AbsoluteProfit = scale(summary.AbsoluteProfit)
	out.Unpriced = append([]string(nil), summary.Unpriced...)

	out.Positions = make([]models.Position, len(summary.Positions))
	for i, p := range summary.Positions {
		p.TotalCost = scale(p.TotalCost)
		p.AverageCost = scalePtr(p.AverageCost)
		p.CurrentPrice = scalePtr(p.CurrentPrice)
		p.MarketValue = scalePtr(p.MarketValue)
		p.AbsoluteProfit = scalePtr(p.AbsoluteProfit)
		out.Positions[i] = p
	}
	return out
}

// FormatMoney renders value with the symbol and minor-unit precision of the
// ISO currency code, e.g. "$1,234.50".
func FormatMoney(value float64, currency string) string {
	cur := *money.New(0, strings.ToUpper(currency)).Currency()
	minor := decimal.NewFromFloat(value).Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// FormatOptional is FormatMoney for values that may be unknown.
func FormatOptional(value *float64, currency string) string {
	if value == nil {
		return "n/a"
	}
	return FormatMoney(*value, currency)
}
