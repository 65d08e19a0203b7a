// Package position folds transactions and cached prices into holdings and
// portfolio totals. Every function here is pure.
package position

import (
	"math"
	"sort"

	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type group struct {
	name   string
	count  int
	shares decimal.Decimal
	cost   decimal.Decimal
}

// symbolOf is the grouping key of t: its symbol, or its name when the symbol is blank.
func symbolOf(t models.Transaction) string {
	if s := models.CanonicalSymbol(t.Symbol); s != "" {
		return s
	}
	return models.CanonicalSymbol(t.Name)
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Aggregate groups transactions by canonical symbol and values each group at
// its cached price. Positions without a positive cached price keep their
// valuation fields nil, and their cost is left out of the portfolio profit
// rate. Records with unusable shares or total are counted in Skipped.
func Aggregate(transactions []models.Transaction, prices map[string]models.PriceEntry) models.PortfolioSummary {
	groups := make(map[string]*group)
	skipped := 0

	for _, t := range transactions {
		key := symbolOf(t)
		if key == "" || !usable(t.Shares) || !usable(t.Total) {
			skipped++
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{name: t.Name}
			groups[key] = g
		}
		g.count++
		g.shares = g.shares.Add(decimal.NewFromFloat(t.Shares))
		g.cost = g.cost.Add(decimal.NewFromFloat(t.Total))
	}

	symbols := make([]string, 0, len(groups))
	for s := range groups {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	summary := models.PortfolioSummary{
		Positions: make([]models.Position, 0, len(symbols)),
		Unpriced:  []string{},
		Skipped:   skipped,
	}
	var totalCost, pricedCost, marketValue, profit decimal.Decimal

	for _, s := range symbols {
		g := groups[s]
		p := models.Position{
			Symbol:       s,
			Name:         g.name,
			Transactions: g.count,
			TotalShares:  g.shares.InexactFloat64(),
			TotalCost:    g.cost.InexactFloat64(),
		}
		if !g.shares.IsZero() {
			p.AverageCost = floatPtr(g.cost.Div(g.shares))
		}
		totalCost = totalCost.Add(g.cost)

		entry, ok := lookup(prices, s)
		if !ok {
			summary.Unpriced = append(summary.Unpriced, s)
			summary.Positions = append(summary.Positions, p)
			continue
		}

		price := decimal.NewFromFloat(entry.Price)
		value := g.shares.Mul(price)
		gain := value.Sub(g.cost)
		updatedAt := entry.UpdatedAt

		p.CurrentPrice = floatPtr(price)
		p.PriceUpdatedAt = &updatedAt
		p.MarketValue = floatPtr(value)
		p.AbsoluteProfit = floatPtr(gain)
		if !g.cost.IsZero() {
			p.ProfitRate = floatPtr(gain.Div(g.cost).Mul(hundred))
		}

		pricedCost = pricedCost.Add(g.cost)
		marketValue = marketValue.Add(value)
		profit = profit.Add(gain)
		summary.Positions = append(summary.Positions, p)
	}

	summary.TotalCost = totalCost.InexactFloat64()
	summary.PricedCost = pricedCost.InexactFloat64()
	summary.MarketValue = marketValue.InexactFloat64()
	summary.AbsoluteProfit = profit.InexactFloat64()
	if !pricedCost.IsZero() {
		summary.ProfitRate = floatPtr(profit.Div(pricedCost).Mul(hundred))
	}
	return summary
}

// lookup returns the entry for symbol when it carries a usable price.
func lookup(prices map[string]models.PriceEntry, symbol string) (models.PriceEntry, bool) {
	entry, ok := prices[symbol]
	if !ok {
		return models.PriceEntry{}, false
	}
	if math.IsNaN(entry.Price) || math.IsInf(entry.Price, 0) || entry.Price <= 0 {
		return models.PriceEntry{}, false
	}
	return entry, true
}

func floatPtr(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	return &f
}
