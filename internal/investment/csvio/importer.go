package csvio

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
	transactions "github.com/sebuszqo/InvestLog/internal/investment/transaction"
)

// PreviewSize is the number of parsed rows echoed back by Validate.
const PreviewSize = 5

type ValidationReport struct {
	Valid   bool                      `json:"valid"`
	Count   int                       `json:"count"`
	Errors  []string                  `json:"errors,omitempty"`
	Preview []models.TransactionInput `json:"preview,omitempty"`
}

type ImportResult struct {
	Imported int   `json:"imported"`
	Deleted  int64 `json:"deleted"`
}

type Importer struct {
	transactions transactions.Service
	log          zerolog.Logger
}

func NewImporter(service transactions.Service, log zerolog.Logger) *Importer {
	return &Importer{transactions: service, log: log.With().Str("component", "csv").Logger()}
}

// Validate parses text without storing anything.
func (i *Importer) Validate(text string) ValidationReport {
	inputs, err := Parse(text)
	if err != nil {
		return ValidationReport{Errors: messages(err)}
	}
	preview := inputs
	if len(preview) > PreviewSize {
		preview = preview[:PreviewSize]
	}
	return ValidationReport{Valid: true, Count: len(inputs), Preview: preview}
}

// Import stores the transactions in text. With appendMode the rows are added
// to the existing ones, otherwise they replace them in one atomic step.
// Invalid input leaves the store untouched.
func (i *Importer) Import(ctx context.Context, text string, appendMode bool) (ImportResult, error) {
	inputs, err := Parse(text)
	if err != nil {
		return ImportResult{}, err
	}

	if appendMode {
		created, err := i.transactions.CreateTransactions(ctx, inputs)
		if err != nil {
			return ImportResult{}, err
		}
		i.log.Info().Int("imported", len(created)).Msg("csv appended")
		return ImportResult{Imported: len(created)}, nil
	}

	deleted, inserted, err := i.transactions.ReplaceTransactions(ctx, inputs)
	if err != nil {
		return ImportResult{}, err
	}
	i.log.Info().Int("imported", inserted).Int64("deleted", deleted).Msg("csv replaced transactions")
	return ImportResult{Imported: inserted, Deleted: deleted}, nil
}

// Export writes every stored transaction to w.
func (i *Importer) Export(ctx context.Context, w io.Writer) (int, error) {
	records, err := i.transactions.ListTransactions(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), Serialize(w, records)
}

// messages flattens validation failures into user-facing strings.
func messages(err error) []string {
	if ve, ok := err.(*investErrors.ValidationErrors); ok {
		return ve.Messages()
	}
	return []string{err.Error()}
}
