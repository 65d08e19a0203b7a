package transactions

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/shopspring/decimal"
)

// SharesPrecision is the number of decimal places kept for derived share counts.
const SharesPrecision = 6

type Service interface {
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	CreateTransaction(ctx context.Context, input models.TransactionInput) (*models.Transaction, error)
	CreateTransactions(ctx context.Context, inputs []models.TransactionInput) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, input models.TransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	DeleteAllTransactions(ctx context.Context) (int64, error)
	ReplaceTransactions(ctx context.Context, inputs []models.TransactionInput) (int64, int, error)
	HeldSymbols(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

type service struct {
	transactionRepo TransactionRepository
	now             func() time.Time
}

func NewTransactionService(repo TransactionRepository) Service {
	return &service{
		transactionRepo: repo,
		now:             time.Now,
	}
}

// ValidateInput returns every problem found in input, in field order.
func ValidateInput(input models.TransactionInput) []string {
	var problems []string
	if strings.TrimSpace(input.Name) == "" {
		problems = append(problems, "Name is required")
	}
	if _, err := time.Parse(models.DateLayout, strings.TrimSpace(input.Date)); err != nil {
		problems = append(problems, "Date must be in YYYY-MM-DD format")
	}
	if !isFinite(input.Total) || input.Total < 0 {
		problems = append(problems, "Total must be a non-negative number")
	}
	if !isFinite(input.Price) || input.Price <= 0 {
		problems = append(problems, "Price must be greater than 0")
	}
	if input.Shares != nil && (!isFinite(*input.Shares) || *input.Shares < 0) {
		problems = append(problems, "Shares must be a non-negative number")
	}
	return problems
}

// DeriveShares returns total/price rounded to SharesPrecision decimal places.
func DeriveShares(total, price float64) float64 {
	return decimal.NewFromFloat(total).
		Div(decimal.NewFromFloat(price)).
		Round(SharesPrecision).
		InexactFloat64()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// build turns a validated input into a stored record. The caller sets ID and CreatedAt.
func build(input models.TransactionInput, now time.Time) models.Transaction {
	name := strings.TrimSpace(input.Name)
	symbol := strings.TrimSpace(input.Symbol)
	if symbol == "" {
		symbol = name
	}

	shares := DeriveShares(input.Total, input.Price)
	if input.Shares != nil {
		shares = *input.Shares
	}

	return models.Transaction{
		Name:      name,
		Symbol:    symbol,
		Date:      strings.TrimSpace(input.Date),
		Total:     input.Total,
		Price:     input.Price,
		Shares:    shares,
		UpdatedAt: now,
	}
}

func (s *service) newTransaction(input models.TransactionInput, now time.Time) models.Transaction {
	t := build(input, now)
	t.ID = uuid.New()
	t.CreatedAt = now
	return t
}

// buildBatch validates every input and reports all failures at once.
func (s *service) buildBatch(inputs []models.TransactionInput) ([]models.Transaction, error) {
	if len(inputs) == 0 {
		return nil, investErrors.NewValidationError("At least one transaction is required")
	}

	validationErrors := &investErrors.ValidationErrors{}
	for i, input := range inputs {
		for _, problem := range ValidateInput(input) {
			validationErrors.Add(investErrors.NewIndexedValidationError(i+1, problem))
		}
	}
	if err := validationErrors.OrNil(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	transactions := make([]models.Transaction, len(inputs))
	for i, input := range inputs {
		transactions[i] = s.newTransaction(input, now)
	}
	return transactions, nil
}

func (s *service) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	return s.transactionRepo.ListAll(ctx)
}

func (s *service) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return s.transactionRepo.GetByID(ctx, id)
}

func (s *service) CreateTransaction(ctx context.Context, input models.TransactionInput) (*models.Transaction, error) {
	if problems := ValidateInput(input); len(problems) > 0 {
		return nil, investErrors.NewValidationError(strings.Join(problems, "; "))
	}

	t := s.newTransaction(input, s.now().UTC())
	if err := s.transactionRepo.Create(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *service) CreateTransactions(ctx context.Context, inputs []models.TransactionInput) ([]models.Transaction, error) {
	transactions, err := s.buildBatch(inputs)
	if err != nil {
		return nil, err
	}
	if _, err := s.transactionRepo.CreateBatch(ctx, transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (s *service) UpdateTransaction(ctx context.Context, id uuid.UUID, input models.TransactionInput) (*models.Transaction, error) {
	if problems := ValidateInput(input); len(problems) > 0 {
		return nil, investErrors.NewValidationError(strings.Join(problems, "; "))
	}

	existing, err := s.transactionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	t := build(input, s.now().UTC())
	t.ID = existing.ID
	t.CreatedAt = existing.CreatedAt

	updated, err := s.transactionRepo.Update(ctx, &t)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, investErrors.ErrNotFound
	}
	return &t, nil
}

func (s *service) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.transactionRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return investErrors.ErrNotFound
	}
	return nil
}

func (s *service) DeleteAllTransactions(ctx context.Context) (int64, error) {
	return s.transactionRepo.DeleteAll(ctx)
}

// ReplaceTransactions validates inputs, then swaps the stored set for them.
// Nothing is removed when validation fails.
func (s *service) ReplaceTransactions(ctx context.Context, inputs []models.TransactionInput) (int64, int, error) {
	transactions, err := s.buildBatch(inputs)
	if err != nil {
		return 0, 0, err
	}
	deleted, err := s.transactionRepo.ReplaceAll(ctx, transactions)
	if err != nil {
		return 0, 0, err
	}
	return deleted, len(transactions), nil
}

// HeldSymbols returns the distinct canonical symbols across all transactions, sorted.
func (s *service) HeldSymbols(ctx context.Context) ([]string, error) {
	transactions, err := s.transactionRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(transactions))
	symbols := make([]string, 0, len(transactions))
	for _, t := range transactions {
		symbol := models.CanonicalSymbol(t.Symbol)
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *service) Count(ctx context.Context) (int, error) {
	return s.transactionRepo.Count(ctx)
}

// IsNotFound reports whether err means the referenced transaction does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, investErrors.ErrNotFound)
}
