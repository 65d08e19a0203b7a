// Package csvio reads and writes the transaction CSV format:
//
//	name,symbol,date,total,price,shares
//
// Exports start with a UTF-8 byte-order mark so spreadsheet tools detect the
// encoding. Imports accept the header in any case and column order.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
	transactions "github.com/sebuszqo/InvestLog/internal/investment/transaction"
)

const bom = "\ufeff"

var (
	Header          = []string{"name", "symbol", "date", "total", "price", "shares"}
	requiredColumns = []string{"name", "date", "total", "price"}
)

// Parse decodes text into transaction inputs. Every row is validated and all
// problems are returned together as *errors.ValidationErrors, each prefixed
// with its line number.
func Parse(text string) ([]models.TransactionInput, error) {
	text = strings.TrimPrefix(text, bom)

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, investErrors.NewValidationError("CSV file is empty")
	}
	if err != nil {
		return nil, investErrors.NewValidationError(fmt.Sprintf("Invalid CSV: %v", err))
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := columns[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, investErrors.NewValidationError("Missing required columns: " + strings.Join(missing, ", "))
	}

	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var inputs []models.TransactionInput
	validationErrors := &investErrors.ValidationErrors{}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, investErrors.NewValidationError(fmt.Sprintf("Invalid CSV: %v", err))
		}
		if blank(row) {
			continue
		}
		line, _ := r.FieldPos(0)

		input, problems := decodeRow(row, field)
		problems = append(problems, transactions.ValidateInput(input)...)
		for _, p := range dedupe(problems) {
			validationErrors.Add(investErrors.NewValidationError(fmt.Sprintf("Line %d: %s", line, p)))
		}
		inputs = append(inputs, input)
	}

	if err := validationErrors.OrNil(); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, investErrors.NewValidationError("CSV contains no transactions")
	}
	return inputs, nil
}

func decodeRow(row []string, field func([]string, string) string) (models.TransactionInput, []string) {
	var problems []string
	number := func(name, problem string) float64 {
		raw := field(row, name)
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			problems = append(problems, problem)
			return 0
		}
		return v
	}

	input := models.TransactionInput{
		Name:   field(row, "name"),
		Symbol: field(row, "symbol"),
		Date:   field(row, "date"),
		Total:  number("total", "Total must be a non-negative number"),
		Price:  number("price", "Price must be greater than 0"),
	}
	if raw := field(row, "shares"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			problems = append(problems, "Shares must be a non-negative number")
		} else {
			input.Shares = &v
		}
	}
	return input, problems
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func dedupe(problems []string) []string {
	seen := make(map[string]struct{}, len(problems))
	out := problems[:0]
	for _, p := range problems {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Serialize writes the byte-order mark, the header and one row per transaction.
func Serialize(w io.Writer, records []models.Transaction) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, t := range records {
		if err := cw.Write([]string{
			t.Name,
			t.Symbol,
			t.Date,
			formatFloat(t.Total),
			formatFloat(t.Price),
			formatFloat(t.Shares),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
