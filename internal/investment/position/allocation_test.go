package position

import (
	"testing"

	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocation(t *testing.T) {
	slices := Allocation([]models.Transaction{
		{Name: "Apple", Total: 300},
		{Name: "Bond ETF", Total: 100},
		{Name: "Apple", Total: 100},
		{Name: "  ", Total: 50},
	})

	require.Len(t, slices, 2)
	assert.Equal(t, models.AllocationSlice{Name: "Apple", Cost: 400, Percent: 80}, slices[0])
	assert.Equal(t, models.AllocationSlice{Name: "Bond ETF", Cost: 100, Percent: 20}, slices[1])
}

func TestAllocation_ZeroCost(t *testing.T) {
	slices := Allocation([]models.Transaction{{Name: "Gift", Total: 0}})
	require.Len(t, slices, 1)
	assert.Zero(t, slices[0].Percent)
}

func TestConvert(t *testing.T) {
	prices := map[string]models.PriceEntry{"AAA": {Symbol: "AAA", Price: 12, UpdatedAt: priceTime}}
	usd := Aggregate(append(scenarioTransactions(),
		models.Transaction{Name: "Bee", Symbol: "BBB", Total: 100, Price: 5, Shares: 20},
	), prices)

	cny := Convert(usd, 7, "cny")
	assert.Equal(t, "CNY", cny.Currency)
	assert.Equal(t, 1750.0, cny.TotalCost)
	assert.Equal(t, 1176.0, cny.MarketValue)
	assert.Equal(t, 126.0, cny.AbsoluteProfit)
	assert.InDelta(t, *usd.ProfitRate, *cny.ProfitRate, 1e-9)

	aaa := cny.Positions[0]
	assert.Equal(t, 84.0, *aaa.CurrentPrice)
	assert.Equal(t, 14.0, aaa.TotalShares)
	assert.Nil(t, cny.Positions[1].MarketValue)

	// input untouched
	assert.Equal(t, 150.0, usd.Positions[0].TotalCost)
	assert.Equal(t, 12.0, *usd.Positions[0].CurrentPrice)
	assert.Empty(t, usd.Currency)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", FormatMoney(1234.5, "USD"))
	assert.Equal(t, "$0.00", FormatMoney(0, "usd"))
	assert.Equal(t, "n/a", FormatOptional(nil, "USD"))
	v := 10.714285
	assert.Equal(t, "$10.71", FormatOptional(&v, "USD"))
}
