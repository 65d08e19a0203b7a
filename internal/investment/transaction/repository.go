package transactions

import (
	"context"
	"database/sql"
	"errors"
	"github.com/google/uuid"
	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
)

type TransactionRepository interface {
	ListAll(ctx context.Context) ([]models.Transaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Create(ctx context.Context, transaction *models.Transaction) error
	CreateBatch(ctx context.Context, transactions []models.Transaction) (int, error)
	Update(ctx context.Context, transaction *models.Transaction) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
	ReplaceAll(ctx context.Context, transactions []models.Transaction) (int64, error)
	Count(ctx context.Context) (int, error)
}

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

const selectColumns = `SELECT id, name, symbol, date, total, price, shares, created_at, updated_at FROM transactions`

const insertQuery = `
	INSERT INTO transactions (id, name, symbol, date, total, price, shares, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.Name, &t.Symbol, &t.Date, &t.Total, &t.Price, &t.Shares, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func insert(ctx context.Context, db execer, t *models.Transaction) error {
	_, err := db.ExecContext(ctx, insertQuery, t.ID, t.Name, t.Symbol, t.Date, t.Total, t.Price, t.Shares,
		t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *transactionRepository) ListAll(ctx context.Context) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY date DESC, created_at DESC`)
	if err != nil {
		return nil, investErrors.NewStorageError("list transactions", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, investErrors.NewStorageError("scan transaction", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, investErrors.NewStorageError("list transactions", rows.Err())
}

func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, investErrors.ErrNotFound
		}
		return nil, investErrors.NewStorageError("get transaction", err)
	}
	return &t, nil
}

func (r *transactionRepository) Create(ctx context.Context, transaction *models.Transaction) error {
	return investErrors.NewStorageError("create transaction", insert(ctx, r.db, transaction))
}

// CreateBatch inserts all transactions or none of them.
func (r *transactionRepository) CreateBatch(ctx context.Context, transactions []models.Transaction) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, investErrors.NewStorageError("begin batch", err)
	}
	defer tx.Rollback()

	for i := range transactions {
		if err := insert(ctx, tx, &transactions[i]); err != nil {
			return 0, investErrors.NewStorageError("create batch", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, investErrors.NewStorageError("commit batch", err)
	}
	return len(transactions), nil
}

func (r *transactionRepository) Update(ctx context.Context, t *models.Transaction) (bool, error) {
	query := `
		UPDATE transactions
		SET name = $1, symbol = $2, date = $3, total = $4, price = $5, shares = $6, updated_at = $7
		WHERE id = $8
	`
	res, err := r.db.ExecContext(ctx, query, t.Name, t.Symbol, t.Date, t.Total, t.Price, t.Shares, t.UpdatedAt, t.ID)
	if err != nil {
		return false, investErrors.NewStorageError("update transaction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, investErrors.NewStorageError("update transaction", err)
	}
	return n > 0, nil
}

func (r *transactionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return false, investErrors.NewStorageError("delete transaction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, investErrors.NewStorageError("delete transaction", err)
	}
	return n > 0, nil
}

func (r *transactionRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, investErrors.NewStorageError("delete all transactions", err)
	}
	n, err := res.RowsAffected()
	return n, investErrors.NewStorageError("delete all transactions", err)
}

// ReplaceAll swaps the whole table for transactions in one SQL transaction
// and reports how many rows were removed.
func (r *transactionRepository) ReplaceAll(ctx context.Context, transactions []models.Transaction) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, investErrors.NewStorageError("begin replace", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, investErrors.NewStorageError("replace transactions", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, investErrors.NewStorageError("replace transactions", err)
	}

	for i := range transactions {
		if err := insert(ctx, tx, &transactions[i]); err != nil {
			return 0, investErrors.NewStorageError("replace transactions", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, investErrors.NewStorageError("commit replace", err)
	}
	return deleted, nil
}

func (r *transactionRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, investErrors.NewStorageError("count transactions", err)
}
