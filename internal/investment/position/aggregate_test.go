package position

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var priceTime = time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)

func scenarioTransactions() []models.Transaction {
	return []models.Transaction{
		{Name: "Triple A", Symbol: "AAA", Date: "2024-01-02", Total: 100, Price: 10, Shares: 10},
		{Name: "Triple A", Symbol: "aaa", Date: "2024-02-02", Total: 50, Price: 12.5, Shares: 4},
	}
}

func TestAggregate_UnknownPrice(t *testing.T) {
	summary := Aggregate(scenarioTransactions(), nil)

	require.Len(t, summary.Positions, 1)
	p := summary.Positions[0]
	assert.Equal(t, "AAA", p.Symbol)
	assert.Equal(t, 2, p.Transactions)
	assert.Equal(t, 14.0, p.TotalShares)
	assert.Equal(t, 150.0, p.TotalCost)
	require.NotNil(t, p.AverageCost)
	assert.InDelta(t, 10.714, *p.AverageCost, 0.001)
	assert.Nil(t, p.CurrentPrice)
	assert.Nil(t, p.MarketValue)
	assert.Nil(t, p.AbsoluteProfit)
	assert.Nil(t, p.ProfitRate)

	assert.Equal(t, 150.0, summary.TotalCost)
	assert.Zero(t, summary.PricedCost)
	assert.Nil(t, summary.ProfitRate)
	assert.Equal(t, []string{"AAA"}, summary.Unpriced)
}

func TestAggregate_KnownPrice(t *testing.T) {
	prices := map[string]models.PriceEntry{"AAA": {Symbol: "AAA", Price: 12, UpdatedAt: priceTime}}
	summary := Aggregate(scenarioTransactions(), prices)

	p := summary.Positions[0]
	require.NotNil(t, p.MarketValue)
	assert.Equal(t, 12.0, *p.CurrentPrice)
	assert.Equal(t, 168.0, *p.MarketValue)
	assert.Equal(t, 18.0, *p.AbsoluteProfit)
	assert.InDelta(t, 12.0, *p.ProfitRate, 1e-9)
	assert.True(t, priceTime.Equal(*p.PriceUpdatedAt))

	assert.Equal(t, 168.0, summary.MarketValue)
	assert.Equal(t, 18.0, summary.AbsoluteProfit)
	require.NotNil(t, summary.ProfitRate)
	assert.InDelta(t, 12.0, *summary.ProfitRate, 1e-9)
	assert.Empty(t, summary.Unpriced)
}

func TestAggregate_UnpricedCostExcludedFromRate(t *testing.T) {
	transactions := append(scenarioTransactions(),
		models.Transaction{Name: "Bee", Symbol: "BBB", Total: 100, Price: 5, Shares: 20},
	)
	prices := map[string]models.PriceEntry{"AAA": {Symbol: "AAA", Price: 12, UpdatedAt: priceTime}}

	summary := Aggregate(transactions, prices)
	require.Len(t, summary.Positions, 2)
	assert.Equal(t, "AAA", summary.Positions[0].Symbol)
	assert.Equal(t, "BBB", summary.Positions[1].Symbol)

	assert.Equal(t, 250.0, summary.TotalCost)
	assert.Equal(t, 150.0, summary.PricedCost)
	assert.Equal(t, 168.0, summary.MarketValue)
	assert.InDelta(t, 12.0, *summary.ProfitRate, 1e-9)
	assert.Equal(t, []string{"BBB"}, summary.Unpriced)
}

func TestAggregate_NeverDividesByZero(t *testing.T) {
	transactions := []models.Transaction{
		{Name: "Gift", Symbol: "FREE", Total: 0, Price: 1, Shares: 0},
	}
	prices := map[string]models.PriceEntry{"FREE": {Symbol: "FREE", Price: 3, UpdatedAt: priceTime}}

	summary := Aggregate(transactions, prices)
	p := summary.Positions[0]
	assert.Nil(t, p.AverageCost)
	assert.Nil(t, p.ProfitRate)
	require.NotNil(t, p.MarketValue)
	assert.Zero(t, *p.MarketValue)
	assert.Nil(t, summary.ProfitRate)

	_, err := json.Marshal(summary)
	assert.NoError(t, err, "no NaN or Inf may reach the encoder")
}

func TestAggregate_SkipsMalformedRecords(t *testing.T) {
	transactions := append(scenarioTransactions(),
		models.Transaction{Name: "Broken", Symbol: "BRK", Total: 10, Shares: math.NaN()},
		models.Transaction{Name: "Negative", Symbol: "NEG", Total: -5, Shares: 1},
		models.Transaction{Name: "", Symbol: "", Total: 5, Shares: 1},
	)
	summary := Aggregate(transactions, map[string]models.PriceEntry{
		"BAD": {Symbol: "BAD", Price: -1},
	})

	assert.Equal(t, 3, summary.Skipped)
	require.Len(t, summary.Positions, 1)
	assert.Equal(t, 150.0, summary.TotalCost)
}

func TestAggregate_NonPositivePriceIsUnknown(t *testing.T) {
	prices := map[string]models.PriceEntry{"AAA": {Symbol: "AAA", Price: 0, UpdatedAt: priceTime}}
	summary := Aggregate(scenarioTransactions(), prices)
	assert.Nil(t, summary.Positions[0].MarketValue)
	assert.Equal(t, []string{"AAA"}, summary.Unpriced)
}

func TestAggregate_SymbolDefaultsToName(t *testing.T) {
	summary := Aggregate([]models.Transaction{
		{Name: "gold", Total: 20, Price: 2, Shares: 10},
		{Name: "Gold", Symbol: "GOLD", Total: 30, Price: 3, Shares: 10},
	}, nil)
	require.Len(t, summary.Positions, 1)
	assert.Equal(t, "GOLD", summary.Positions[0].Symbol)
	assert.Equal(t, 50.0, summary.Positions[0].TotalCost)
}

func TestAggregate_IsPure(t *testing.T) {
	transactions := append(scenarioTransactions(),
		models.Transaction{Name: "Bee", Symbol: "BBB", Total: 100, Price: 5, Shares: 20},
	)
	prices := map[string]models.PriceEntry{"AAA": {Symbol: "AAA", Price: 12, UpdatedAt: priceTime}}

	first, err := json.Marshal(Aggregate(transactions, prices))
	require.NoError(t, err)

	// grouping is insensitive to transaction order
	reversed := []models.Transaction{transactions[2], transactions[1], transactions[0]}
	second, err := json.Marshal(Aggregate(reversed, prices))
	require.NoError(t, err)
	third, err := json.Marshal(Aggregate(transactions, prices))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(third))
	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, 12.0, prices["AAA"].Price)
	assert.Len(t, transactions, 3)
}

func TestAggregate_Empty(t *testing.T) {
	summary := Aggregate(nil, nil)
	assert.Empty(t, summary.Positions)
	assert.NotNil(t, summary.Unpriced)
	assert.Zero(t, summary.TotalCost)
	assert.Nil(t, summary.ProfitRate)
}
