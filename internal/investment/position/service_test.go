package position

import (
	"context"
	"errors"
	"testing"

	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTransactions struct {
	records []models.Transaction
	err     error
}

func (s staticTransactions) ListTransactions(context.Context) ([]models.Transaction, error) {
	return s.records, s.err
}

type staticPrices map[string]models.PriceEntry

func (p staticPrices) Snapshot(context.Context) (map[string]models.PriceEntry, error) { return p, nil }

func TestService_Summary(t *testing.T) {
	svc := NewService(staticTransactions{records: scenarioTransactions()},
		staticPrices{"AAA": {Symbol: "AAA", Price: 12, UpdatedAt: priceTime}})

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 168.0, summary.MarketValue)

	allocation, err := svc.Allocation(context.Background())
	require.NoError(t, err)
	require.Len(t, allocation, 1)
	assert.Equal(t, 100.0, allocation[0].Percent)
}

func TestService_StoreFailure(t *testing.T) {
	svc := NewService(staticTransactions{err: errors.New("disk full")}, staticPrices{})

	_, err := svc.Summary(context.Background())
	assert.Error(t, err)
	_, err = svc.Allocation(context.Background())
	assert.Error(t, err)
}
