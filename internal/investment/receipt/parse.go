package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
)

// number accepts both JSON numbers and numeric strings, which models emit
// interchangeably.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		s = strings.TrimLeft(s, "$¥€£")
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = number(v)
	return nil
}

type item struct {
	AssetName   string `json:"assetName"`
	Date        string `json:"date"`
	TotalAmount number `json:"totalAmount"`
	UnitPrice   number `json:"unitPrice"`
	Shares      number `json:"shares"`
}

// ParseRecords decodes the model answer into transaction inputs. Markdown
// code fences are stripped and a single object is treated as a one-element
// array. Items without a name or a positive total are dropped. The unit price
// falls back to total/shares and the date to today.
func ParseRecords(text string, today time.Time) ([]models.TransactionInput, error) {
	text = stripFences(text)
	if text == "" {
		return nil, investErrors.NewValidationError("No records recognized")
	}

	var items []item
	if strings.HasPrefix(text, "{") {
		var single item
		if err := json.Unmarshal([]byte(text), &single); err != nil {
			return nil, investErrors.NewValidationError(fmt.Sprintf("Unreadable AI response: %v", err))
		}
		items = []item{single}
	} else if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, investErrors.NewValidationError(fmt.Sprintf("Unreadable AI response: %v", err))
	}

	var inputs []models.TransactionInput
	for _, it := range items {
		name := strings.TrimSpace(it.AssetName)
		total := float64(it.TotalAmount)
		if name == "" || !positive(total) {
			continue
		}

		price := float64(it.UnitPrice)
		if !positive(price) && positive(float64(it.Shares)) {
			price = total / float64(it.Shares)
		}
		if !positive(price) {
			continue
		}

		date := strings.TrimSpace(it.Date)
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			date = today.Format(models.DateLayout)
		}

		input := models.TransactionInput{Name: name, Symbol: name, Date: date, Total: total, Price: price}
		if shares := float64(it.Shares); positive(shares) {
			input.Shares = &shares
		}
		inputs = append(inputs, input)
	}

	if len(inputs) == 0 {
		return nil, investErrors.NewValidationError("No records recognized")
	}
	return inputs, nil
}

func stripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
