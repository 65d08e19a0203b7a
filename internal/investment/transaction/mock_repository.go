package transactions

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
)

// MockTransactionRepository keeps transactions in memory. Err, when set, is
// returned by every call.
type MockTransactionRepository struct {
	mu           sync.Mutex
	Transactions []models.Transaction
	Err          error
}

func (m *MockTransactionRepository) ListAll(_ context.Context) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.Transaction, len(m.Transactions))
	copy(out, m.Transactions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (m *MockTransactionRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, t := range m.Transactions {
		if t.ID == id {
			found := t
			return &found, nil
		}
	}
	return nil, investErrors.ErrNotFound
}

func (m *MockTransactionRepository) Create(_ context.Context, transaction *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Transactions = append(m.Transactions, *transaction)
	return nil
}

func (m *MockTransactionRepository) CreateBatch(_ context.Context, transactions []models.Transaction) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	m.Transactions = append(m.Transactions, transactions...)
	return len(transactions), nil
}

func (m *MockTransactionRepository) Update(_ context.Context, transaction *models.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	for i, t := range m.Transactions {
		if t.ID == transaction.ID {
			m.Transactions[i] = *transaction
			return true, nil
		}
	}
	return false, nil
}

func (m *MockTransactionRepository) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	for i, t := range m.Transactions {
		if t.ID == id {
			m.Transactions = append(m.Transactions[:i], m.Transactions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MockTransactionRepository) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	n := int64(len(m.Transactions))
	m.Transactions = nil
	return n, nil
}

func (m *MockTransactionRepository) ReplaceAll(_ context.Context, transactions []models.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	n := int64(len(m.Transactions))
	m.Transactions = append([]models.Transaction(nil), transactions...)
	return n, nil
}

func (m *MockTransactionRepository) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.Transactions), nil
}
