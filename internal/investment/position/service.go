package position

import (
	"context"

	"github.com/sebuszqo/InvestLog/internal/investment/models"
)

type TransactionLister interface {
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
}

// PriceSnapshotter returns the last known price of every cached symbol.
type PriceSnapshotter interface {
	Snapshot(ctx context.Context) (map[string]models.PriceEntry, error)
}

// Service reads the stores and hands them to the pure aggregation functions.
// It never triggers a price lookup.
type Service struct {
	transactions TransactionLister
	prices       PriceSnapshotter
}

func NewService(transactions TransactionLister, prices PriceSnapshotter) *Service {
	return &Service{transactions: transactions, prices: prices}
}

func (s *Service) Summary(ctx context.Context) (models.PortfolioSummary, error) {
	records, err := s.transactions.ListTransactions(ctx)
	if err != nil {
		return models.PortfolioSummary{}, err
	}
	prices, err := s.prices.Snapshot(ctx)
	if err != nil {
		return models.PortfolioSummary{}, err
	}
	return Aggregate(records, prices), nil
}

func (s *Service) Allocation(ctx context.Context) ([]models.AllocationSlice, error) {
	records, err := s.transactions.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return Allocation(records), nil
}
